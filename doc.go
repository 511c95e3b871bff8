/*
# KRoute

Kademlia DHT routing table implemented as a binary trie of k-buckets.

Every node of a Kademlia network keeps a routing table of the peers it knows
about. Peers are named by fixed-length ids (160 bits by default) and the
distance between two ids is their bitwise XOR. The table is a binary trie over
id bits whose leaves are buckets of at most K contacts (K defaults to 20).
Only the bucket that covers the local node's own id is ever split, so the
table holds O(K * L) contacts for L-bit ids however large the network grows.

Contacts enter the table through RoutingTable.See, which is meant to be called
for every request or reply received from a peer. Buckets are ordered from the
least-recently seen contact (head) to the most-recently seen (tail). When a new
contact arrives at a full bucket, the head is probed through the configured
Prober; it is evicted only if it does not answer within the probe timeout.
Live contacts are never evicted.

RoutingTable.Closest returns the contacts nearest to a target id, for building
the candidate set of an iterative lookup.

RoutingTable events:

	kbucket.added
			contact Contact: The new contact that was added.
		Emitted only when "contact" was added to the table and it was not stored
		in it before.

	kbucket.ping
			old Contact: The least-recently seen contact that is being probed.
			new Contact: The new contact to be added if "old" does not respond.
		Emitted every time a contact arrives at a full bucket.

	kbucket.removed
			contact Contact: The contact that was removed.
		Emitted when "contact" was evicted or removed from the table.

	kbucket.updated
			old Contact: The contact that was stored prior to the update.
			new Contact: The new contact that is now stored after the update.
		Emitted when a known contact was seen again from a different address.

	kbucket.split
			depth int: The depth of the bucket that was split.
		Emitted when the bucket covering the local node id was split.
*/
package kroute
