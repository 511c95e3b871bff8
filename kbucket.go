package kroute

// Kademlia DHT routing table implemented as a binary trie of k-buckets.
// The trie layout and event names follow Tristan Slominski's k-bucket
// (https://github.com/tristanls/k-bucket).
//
// The MIT License (MIT)
//
// Copyright (c) 2022 Attila Buti
// Copyright (c) Tristan Slominski
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/attilabuti/eventemitter/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"
)

const (
	// DefaultNodesPerKBucket is the default bucket capacity (K).
	DefaultNodesPerKBucket = 20

	// DefaultProbeTimeout bounds how long a full bucket waits for its head to
	// answer a probe.
	DefaultProbeTimeout = 2 * time.Second
)

type RoutingTable struct {
	mutex   sync.RWMutex
	id      NodeId                // The local node ID.
	length  int                   // The length of every id in the table, in bytes.
	timeout time.Duration         // How long to wait for a probed node to answer.
	trie    *bucketTrie           // The buckets, keyed by id prefix.
	prober  Prober                // Checks the least-recently seen node of a full bucket.
	emitter *eventemitter.Emitter // The emitter to use for emitting events.
	log     zerolog.Logger
}

type Options struct {
	// An optional id of the local node. If not provided, a local node id will be
	// created via "RandomId(IdLength)". (Default: randomly generated)
	LocalNodeId NodeId

	// The length of node ids in bytes. If LocalNodeId is set, its length is used.
	// (Default: 20)
	IdLength int

	// The number of nodes that a bucket can contain before being full or split.
	// (Default: 20)
	NodesPerKBucket int

	// How long a full bucket waits for its least-recently seen node to answer
	// before treating it as gone. (Default: 2s)
	ProbeTimeout time.Duration

	// Prober is used to check whether the least-recently seen node of a full
	// bucket is still alive. Required.
	Prober Prober

	// Logger used for debug output. (Default: no logging)
	Logger *zerolog.Logger
}

// NewRoutingTable creates a new RoutingTable with the given options. Events are
// emitted on emitter; a nil emitter is replaced by a fresh one.
func NewRoutingTable(options Options, emitter *eventemitter.Emitter) (*RoutingTable, error) {
	options, err := setDefaultsOptions(options)
	if err != nil {
		return nil, err
	}

	if emitter == nil {
		emitter = eventemitter.New()
	}

	logger := zerolog.Nop()
	if options.Logger != nil {
		logger = *options.Logger
	}

	id := append(NodeId(nil), options.LocalNodeId...)

	return &RoutingTable{
		id:      id,
		length:  len(id),
		timeout: options.ProbeTimeout,
		trie:    newBucketTrie(options.NodesPerKBucket, id.BitLen()),
		prober:  options.Prober,
		emitter: emitter,
		log:     logger.With().Str("component", "kroute").Str("local", id.String()).Logger(),
	}, nil
}

func setDefaultsOptions(options Options) (Options, error) {
	if options.Prober == nil {
		return Options{}, ErrNoProber
	}

	if options.IdLength < 1 {
		options.IdLength = DefaultIdLength
		if len(options.LocalNodeId) > 0 {
			options.IdLength = len(options.LocalNodeId)
		}
	}

	if len(options.LocalNodeId) == 0 {
		id, err := RandomId(options.IdLength)
		if err != nil {
			return Options{}, xerrors.Errorf("generate local node id: %w", err)
		}

		options.LocalNodeId = id
	}

	if len(options.LocalNodeId) != options.IdLength {
		return Options{}, xerrors.Errorf("local node id has %d bytes, want %d: %w",
			len(options.LocalNodeId), options.IdLength, ErrLengthMismatch)
	}

	if options.NodesPerKBucket < 1 {
		options.NodesPerKBucket = DefaultNodesPerKBucket
	}

	if options.ProbeTimeout <= 0 {
		options.ProbeTimeout = DefaultProbeTimeout
	}

	return options, nil
}

// GetId returns the local node id.
func (b *RoutingTable) GetId() NodeId {
	return b.id
}

// See records that a message was received from contact. It is the only way
// contacts enter the table:
//
//   - a known contact gets its address updated and becomes the most recently seen;
//   - a new contact is appended to its bucket if there is room;
//   - otherwise the least-recently seen contact of the bucket is probed. If it
//     does not answer in time, it is evicted in favor of the new contact. If it
//     answers and the bucket covers the local id, the bucket is split and the
//     insertion retried; if it answers and the bucket cannot be split, the new
//     contact is discarded.
//
// While a bucket's head is being probed, no other goroutine can modify that
// bucket; See waits for it, or until ctx is done.
func (b *RoutingTable) See(ctx context.Context, contact Contact) (Outcome, error) {
	if err := b.validate(contact.Id); err != nil {
		return 0, err
	}

	contact.Id = append(NodeId(nil), contact.Id...)

	for {
		outcome, err := b.see(ctx, contact)
		if err != nil || outcome != OutcomeSplitRequired {
			return outcome, err
		}
	}
}

// see makes a single insertion attempt into the leaf currently covering the
// contact.
func (b *RoutingTable) see(ctx context.Context, contact Contact) (Outcome, error) {
	idx, sem, err := b.lockLeaf(ctx, contact.Id)
	if err != nil {
		return 0, err
	}
	defer sem.Release(1)

	b.mutex.Lock()

	bucket := b.trie.nodes[idx].bucket
	i := bucket.contacts.indexOf(contact.Id)
	var old Contact
	if i >= 0 {
		old = bucket.contacts[i]
	}

	if outcome, ok := bucket.add(contact); ok {
		b.mutex.Unlock()

		if outcome == OutcomeUpdated {
			if !old.compare(contact) {
				// Event "kbucket.updated" emitted when a previously existing contact was
				// seen again from a different address.
				b.emitter.Emit("kbucket.updated", old, contact)
			}
		} else {
			// Event "kbucket.added" emitted only when contact was added to the table
			// and it was not stored in it before.
			b.emitter.Emit("kbucket.added", contact)
		}

		return outcome, nil
	}

	head, _ := bucket.Head()
	splittable := b.trie.splittable(idx)

	b.mutex.Unlock()

	// Event "kbucket.ping" emitted every time the head of a full bucket is
	// probed on behalf of a new contact.
	b.emitter.Emit("kbucket.ping", head, contact)

	liveness := probe(ctx, b.prober, head.AddrPort, b.timeout)

	b.mutex.Lock()

	outcome := bucket.resolve(head, liveness, contact, splittable)
	depth := b.trie.nodes[idx].depth
	if outcome == OutcomeSplitRequired {
		err = b.trie.split(idx, b.id)
	}

	b.mutex.Unlock()

	b.log.Debug().
		Str("id", contact.Id.String()).
		Str("head", head.Id.String()).
		Str("liveness", liveness.String()).
		Str("outcome", outcome.String()).
		Int("depth", depth).
		Msg("full bucket")

	switch outcome {
	case OutcomeEvicted:
		b.emitter.Emit("kbucket.removed", head)
		b.emitter.Emit("kbucket.added", contact)
	case OutcomeSplitRequired:
		if err != nil {
			return 0, err
		}
		b.emitter.Emit("kbucket.split", depth)
	}

	return outcome, nil
}

// lockLeaf acquires the semaphore of the leaf covering id and returns the
// leaf's index. The leaf cannot be split by anyone else until the semaphore
// is released.
func (b *RoutingTable) lockLeaf(ctx context.Context, id NodeId) (int, *semaphore.Weighted, error) {
	for {
		b.mutex.RLock()
		idx, err := b.trie.findLeaf(id)
		var sem *semaphore.Weighted
		if err == nil {
			sem = b.trie.nodes[idx].sem
		}
		b.mutex.RUnlock()

		if err != nil {
			return 0, nil, err
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return 0, nil, xerrors.Errorf("wait for bucket: %w", err)
		}

		b.mutex.RLock()
		leaf := b.trie.nodes[idx].isLeaf()
		b.mutex.RUnlock()

		if leaf {
			return idx, sem, nil
		}

		// Split while we were waiting; look again.
		sem.Release(1)
	}
}

// Has returns true if the contact with the given id is in the table, false otherwise.
func (b *RoutingTable) Has(id NodeId) bool {
	_, ok := b.Get(id)
	return ok
}

// Get a contact by its exact id.
func (b *RoutingTable) Get(id NodeId) (Contact, bool) {
	if len(id) != b.length {
		return Contact{}, false
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	idx, err := b.trie.findLeaf(id)
	if err != nil {
		return Contact{}, false
	}

	contacts := b.trie.nodes[idx].bucket.contacts
	if i := contacts.indexOf(id); i >= 0 {
		return contacts[i], true
	}

	return Contact{}, false
}

// Remove removes the contact with the provided id. Returns true if it was found.
func (b *RoutingTable) Remove(id NodeId) bool {
	if len(id) != b.length {
		return false
	}

	idx, sem, err := b.lockLeaf(context.Background(), id)
	if err != nil {
		return false
	}
	defer sem.Release(1)

	b.mutex.Lock()
	contact, ok := b.trie.nodes[idx].bucket.Remove(id)
	b.mutex.Unlock()

	if ok {
		// Event "kbucket.removed" emitted when contact was removed from the table.
		b.emitter.Emit("kbucket.removed", contact)
	}

	return ok
}

// Touch marks the contact as the most recently seen without changing its
// address. Returns true if the contact was found, false otherwise.
func (b *RoutingTable) Touch(id NodeId) bool {
	if len(id) != b.length {
		return false
	}

	idx, sem, err := b.lockLeaf(context.Background(), id)
	if err != nil {
		return false
	}
	defer sem.Release(1)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.trie.nodes[idx].bucket.Touch(id)
}

// Closest returns at most n contacts closest to id according to the XOR
// metric, nearest first. Contacts at equal distance are ordered by id.
//
// Buckets are visited from the leaf covering id outwards: every contact in
// the sibling subtree branching off at depth d is at a distance of at least
// 2^(L-d-1), so the walk stops as soon as n contacts closer than that are known.
func (b *RoutingTable) Closest(id NodeId, n uint) Contacts {
	if n == 0 || len(id) != b.length {
		return Contacts{}
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	path, err := b.trie.route(id)
	if err != nil {
		return Contacts{}
	}

	contacts := b.trie.collect(path[len(path)-1], nil)

	for i := len(path) - 2; i >= 0; i-- {
		node := &b.trie.nodes[path[i]]

		if uint(len(contacts)) >= n {
			sortByDistance(contacts, id)
			if distanceBound(b.length, node.depth).Compare(contacts[n-1].Id.Xor(id)) > 0 {
				break
			}
		}

		sibling := node.children[1-id.bit(node.depth)]
		contacts = b.trie.collect(sibling, contacts)
	}

	sortByDistance(contacts, id)

	if n < uint(len(contacts)) {
		contacts = contacts[:n]
	}

	return contacts
}

// BucketIndex returns the number of leading bits id shares with the local node
// id, i.e. the index of the bucket id would fall into in a flat table.
func (b *RoutingTable) BucketIndex(id NodeId) (int, error) {
	if err := b.validate(id); err != nil {
		return 0, err
	}

	return b.id.Xor(id).LeadingZeros(), nil
}

// Count returns the number of contacts in the table.
func (b *RoutingTable) Count() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.trie.count()
}

// Depth returns the depth of the deepest bucket, i.e. how many times the
// bucket covering the local node id has been split.
func (b *RoutingTable) Depth() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.trie.depth()
}

// ToSlice returns a slice with all contacts in the table.
func (b *RoutingTable) ToSlice() Contacts {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.trie.collect(0, Contacts{})
}

func (b *RoutingTable) validate(id NodeId) error {
	if len(id) != b.length {
		return xerrors.Errorf("id %s has %d bytes, want %d: %w", id, len(id), b.length, ErrLengthMismatch)
	}

	if id.Equal(b.id) {
		return ErrSelfReferential
	}

	return nil
}

// distanceBound returns the smallest distance of an id whose first differing
// bit from the target is at depth.
func distanceBound(length int, depth int) NodeId {
	d := make(NodeId, length)
	d[depth>>3] = 1 << (7 - uint(depth%8))

	return d
}

func sortByDistance(contacts Contacts, id NodeId) {
	distances := make(map[string]NodeId, len(contacts))
	for _, c := range contacts {
		distances[string(c.Id)] = c.Id.Xor(id)
	}

	sort.Slice(contacts, func(i, j int) bool {
		if cmp := distances[string(contacts[i].Id)].Compare(distances[string(contacts[j].Id)]); cmp != 0 {
			return cmp < 0
		}
		return contacts[i].Id.Compare(contacts[j].Id) < 0
	})
}
