package kroute

import (
	"context"
	"time"
)

// Outcome describes what InsertOrUpdate did with a contact.
type Outcome int

const (
	OutcomeUpdated       Outcome = iota // The contact was known; its address was refreshed.
	OutcomeInserted                     // The contact was appended to a bucket with free space.
	OutcomeEvicted                      // The unreachable head was evicted and the contact appended.
	OutcomeDiscarded                    // The bucket is full of live contacts; the contact was dropped.
	OutcomeSplitRequired                // The bucket is full of live contacts and may be split.
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeInserted:
		return "inserted"
	case OutcomeEvicted:
		return "evicted"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeSplitRequired:
		return "split-required"
	default:
		return "unknown"
	}
}

// Bucket holds up to size contacts for one region of the id space, ordered
// from least-recently seen (head) to most-recently seen (tail).
//
// Bucket is not safe for concurrent use; RoutingTable serializes access.
type Bucket struct {
	size     int
	contacts Contacts
}

// NewBucket creates an empty bucket holding at most size contacts.
func NewBucket(size int) *Bucket {
	return &Bucket{
		size:     size,
		contacts: make(Contacts, 0, size),
	}
}

// Len returns the number of contacts in the bucket.
func (b *Bucket) Len() int {
	return len(b.contacts)
}

// Size returns the capacity of the bucket.
func (b *Bucket) Size() int {
	return b.size
}

// Head returns the least-recently seen contact.
func (b *Bucket) Head() (Contact, bool) {
	if len(b.contacts) == 0 {
		return Contact{}, false
	}

	return b.contacts[0], true
}

// Contacts returns a copy of the contacts, head first.
func (b *Bucket) Contacts() Contacts {
	return append(Contacts(nil), b.contacts...)
}

// Contains returns true if a contact with the given id is in the bucket.
func (b *Bucket) Contains(id NodeId) bool {
	return b.contacts.indexOf(id) >= 0
}

// Touch marks the contact with the given id as the most recently seen.
// Returns false and leaves the bucket unchanged if the id is unknown.
func (b *Bucket) Touch(id NodeId) bool {
	i := b.contacts.indexOf(id)
	if i < 0 {
		return false
	}

	c := b.contacts[i]
	c.SeenAt = time.Now()
	b.moveToTail(i, c)

	return true
}

// Remove removes the contact with the given id, keeping the order of the
// remaining contacts.
func (b *Bucket) Remove(id NodeId) (Contact, bool) {
	i := b.contacts.indexOf(id)
	if i < 0 {
		return Contact{}, false
	}

	c := b.contacts[i]
	b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)

	return c, true
}

// InsertOrUpdate applies the least-recently seen eviction policy to contact.
// When the bucket is full, the head is probed through prober for at most
// timeout, or DefaultProbeTimeout if timeout is not positive. An unreachable
// head is replaced by contact. A reachable head is moved to the tail and
// contact is dropped, unless splittable is set, in which case
// OutcomeSplitRequired asks the caller to split the bucket and retry.
func (b *Bucket) InsertOrUpdate(ctx context.Context, contact Contact, prober Prober, timeout time.Duration, splittable bool) Outcome {
	if outcome, ok := b.add(contact); ok {
		return outcome
	}

	head, _ := b.Head()
	liveness := probe(ctx, prober, head.AddrPort, timeout)

	return b.resolve(head, liveness, contact, splittable)
}

// add updates or appends contact. It returns false if the bucket is full and
// the head has to be probed before anything can change.
func (b *Bucket) add(contact Contact) (Outcome, bool) {
	contact.SeenAt = time.Now()

	if i := b.contacts.indexOf(contact.Id); i >= 0 {
		b.moveToTail(i, contact)
		return OutcomeUpdated, true
	}

	if len(b.contacts) < b.size {
		b.contacts = append(b.contacts, contact)
		return OutcomeInserted, true
	}

	return 0, false
}

// resolve finishes an add that found the bucket full, once the head's
// liveness is known.
func (b *Bucket) resolve(head Contact, liveness Liveness, contact Contact, splittable bool) Outcome {
	if liveness == Unreachable {
		b.Remove(head.Id)

		if outcome, ok := b.add(contact); ok {
			if outcome == OutcomeInserted {
				return OutcomeEvicted
			}
			return outcome
		}

		// The head was removed by someone else and the bucket refilled.
		return OutcomeDiscarded
	}

	b.Touch(head.Id)

	if splittable {
		return OutcomeSplitRequired
	}

	return OutcomeDiscarded
}

func (b *Bucket) moveToTail(i int, c Contact) {
	copy(b.contacts[i:], b.contacts[i+1:])
	b.contacts[len(b.contacts)-1] = c
}
