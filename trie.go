package kroute

import (
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"
)

// trieNode is either a leaf holding a bucket or an inner node with two
// children, addressed by their index in bucketTrie.nodes.
type trieNode struct {
	depth     int     // Number of id bits consumed on the path from the root.
	bucket    *Bucket // Nil for inner nodes.
	children  [2]int  // Child for bit 0 and bit 1 of the id at depth.
	dontSplit bool    // The leaf does not cover the local node id.

	// Held by whoever is inserting into the bucket, including while its head
	// is being probed.
	sem *semaphore.Weighted
}

func (n *trieNode) isLeaf() bool {
	return n.bucket != nil
}

// bucketTrie is a binary trie over id bits whose leaves are buckets. Nodes
// live in a slice and are never removed: a split turns a leaf into an inner
// node in place and appends its two children.
type bucketTrie struct {
	nodes  []trieNode
	size   int
	bitLen int
}

func newBucketTrie(size int, bitLen int) *bucketTrie {
	t := &bucketTrie{size: size, bitLen: bitLen}
	t.nodes = append(t.nodes, t.createLeaf(0, false))

	return t
}

func (t *bucketTrie) createLeaf(depth int, dontSplit bool) trieNode {
	return trieNode{
		depth:     depth,
		bucket:    NewBucket(t.size),
		dontSplit: dontSplit,
		sem:       semaphore.NewWeighted(1),
	}
}

// route returns the indices of the nodes visited from the root to the leaf
// covering id.
func (t *bucketTrie) route(id NodeId) ([]int, error) {
	path := []int{0}

	for n := &t.nodes[0]; !n.isLeaf(); {
		if n.depth >= id.BitLen() {
			return nil, xerrors.Errorf("route %s at depth %d: %w", id, n.depth, ErrBitIndexOutOfRange)
		}

		next := n.children[id.bit(n.depth)]
		path = append(path, next)
		n = &t.nodes[next]
	}

	return path, nil
}

// findLeaf returns the index of the leaf covering id.
func (t *bucketTrie) findLeaf(id NodeId) (int, error) {
	path, err := t.route(id)
	if err != nil {
		return 0, err
	}

	return path[len(path)-1], nil
}

// splittable reports whether the leaf at idx covers the local node id and
// still has bits left to divide on.
func (t *bucketTrie) splittable(idx int) bool {
	n := &t.nodes[idx]
	return n.isLeaf() && !n.dontSplit && n.depth < t.bitLen
}

// split turns the leaf at idx into an inner node with two fresh leaves,
// redistributing the contacts by their bit at the leaf's depth. The child that
// does not lie on the path to local is marked as dontSplit.
func (t *bucketTrie) split(idx int, local NodeId) error {
	if !t.splittable(idx) {
		return xerrors.Errorf("split node %d at depth %d: not a splittable leaf", idx, t.nodes[idx].depth)
	}

	depth := t.nodes[idx].depth
	localBit := local.bit(depth)

	var children [2]int
	for b := 0; b < 2; b++ {
		children[b] = len(t.nodes)
		t.nodes = append(t.nodes, t.createLeaf(depth+1, b != localBit))
	}

	// t.nodes may have been reallocated by the appends above.
	n := &t.nodes[idx]
	for _, c := range n.bucket.contacts {
		child := t.nodes[children[c.Id.bit(depth)]].bucket
		child.contacts = append(child.contacts, c)
	}

	n.bucket = nil
	n.children = children

	return nil
}

// each calls fn for every leaf, low branch first.
func (t *bucketTrie) each(fn func(idx int, n *trieNode)) {
	for stack := []int{0}; len(stack) > 0; {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[idx]
		if n.isLeaf() {
			fn(idx, n)
			continue
		}

		stack = append(stack, n.children[1], n.children[0])
	}
}

// collect appends every contact below the node at idx to contacts.
func (t *bucketTrie) collect(idx int, contacts Contacts) Contacts {
	for stack := []int{idx}; len(stack) > 0; {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if n.isLeaf() {
			contacts = append(contacts, n.bucket.contacts...)
			continue
		}

		stack = append(stack, n.children[1], n.children[0])
	}

	return contacts
}

// count returns the number of contacts stored in the trie.
func (t *bucketTrie) count() int {
	count := 0
	t.each(func(_ int, n *trieNode) {
		count += n.bucket.Len()
	})

	return count
}

// depth returns the depth of the deepest leaf.
func (t *bucketTrie) depth() int {
	depth := 0
	t.each(func(_ int, n *trieNode) {
		if n.depth > depth {
			depth = n.depth
		}
	})

	return depth
}
