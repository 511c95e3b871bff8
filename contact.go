package kroute

import (
	"net/netip"
	"time"
)

// Contact is the routing table's record of a peer.
type Contact struct {
	Id       NodeId         // The node id.
	AddrPort netip.AddrPort // The address and port of the node.
	SeenAt   time.Time      // SeenAt is the time this node was last seen.
}

type Contacts []Contact

// Returns the index of the contact with provided id if it exists, returns -1 otherwise.
func (c Contacts) indexOf(id NodeId) int {
	for i, v := range c {
		if v.Id.Equal(id) {
			return i
		}
	}

	return -1
}

// Ids returns the ids of the contacts, in order.
func (c Contacts) Ids() []NodeId {
	ids := make([]NodeId, len(c))
	for i, v := range c {
		ids[i] = v.Id
	}

	return ids
}

// Compare two contacts. The result will be true if a == b, false otherwise.
// SeenAt is not taken into account.
func (a Contact) compare(b Contact) bool {
	if !a.Id.Equal(b.Id) {
		return false
	}

	return CompareAddrPorts(a.AddrPort, b.AddrPort)
}
