package kroute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBucketTrie(t *testing.T) {
	trie := newBucketTrie(20, 160)

	require.Len(t, trie.nodes, 1)
	assert.True(t, trie.nodes[0].isLeaf())
	assert.Equal(t, 0, trie.nodes[0].depth)
	assert.False(t, trie.nodes[0].dontSplit)
	assert.True(t, trie.splittable(0))
}

func TestBucketTrieSplit(t *testing.T) {
	local := NodeId{0x00}
	trie := newBucketTrie(4, 8)

	for _, b := range []byte{0x80, 0x01, 0xc0, 0x02} {
		trie.nodes[0].bucket.add(contactFor(b))
	}

	require.NoError(t, trie.split(0, local))

	root := &trie.nodes[0]
	assert.False(t, root.isLeaf())
	assert.Equal(t, 0, root.depth)

	low, high := &trie.nodes[root.children[0]], &trie.nodes[root.children[1]]
	assert.Equal(t, 1, low.depth)
	assert.Equal(t, 1, high.depth)

	// Contacts are redistributed by their first bit, keeping their order.
	assert.Equal(t, []NodeId{{0x01}, {0x02}}, low.bucket.Contacts().Ids())
	assert.Equal(t, []NodeId{{0x80}, {0xc0}}, high.bucket.Contacts().Ids())

	// Only the half covering the local id may be split again.
	assert.False(t, low.dontSplit)
	assert.True(t, high.dontSplit)
	assert.True(t, trie.splittable(root.children[0]))
	assert.False(t, trie.splittable(root.children[1]))
	assert.False(t, trie.splittable(0))

	assert.Equal(t, 4, trie.count())
	assert.Equal(t, 1, trie.depth())
}

func TestBucketTrieSplitErrors(t *testing.T) {
	local := NodeId{0xff}
	trie := newBucketTrie(4, 8)

	require.NoError(t, trie.split(0, local))

	// Inner node.
	assert.Error(t, trie.split(0, local))

	// Far away leaf.
	far := trie.nodes[0].children[0]
	assert.Error(t, trie.split(far, local))
}

// The leaf covering the local id can be split until every bit is consumed.
func TestBucketTrieSplitToFullDepth(t *testing.T) {
	local := NodeId{0x5a}
	trie := newBucketTrie(1, 8)

	idx := 0
	for depth := 0; depth < 8; depth++ {
		require.NoError(t, trie.split(idx, local))
		idx = trie.nodes[idx].children[local.bit(depth)]
	}

	assert.Equal(t, 8, trie.nodes[idx].depth)
	assert.False(t, trie.splittable(idx))
	assert.Error(t, trie.split(idx, local))

	leaf, err := trie.findLeaf(local)
	require.NoError(t, err)
	assert.Equal(t, idx, leaf)
	assert.Equal(t, 8, trie.depth())
}

func TestBucketTrieRoute(t *testing.T) {
	local := NodeId{0x00}
	trie := newBucketTrie(4, 8)

	require.NoError(t, trie.split(0, local))
	low := trie.nodes[0].children[0]
	require.NoError(t, trie.split(low, local))

	path, err := trie.route(NodeId{0x40})
	require.NoError(t, err)
	assert.Equal(t, []int{0, low, trie.nodes[low].children[1]}, path)

	path, err = trie.route(NodeId{0x80})
	require.NoError(t, err)
	assert.Equal(t, []int{0, trie.nodes[0].children[1]}, path)

	// An id too short for the trie cannot be routed.
	_, err = trie.route(NodeId{})
	assert.True(t, errors.Is(err, ErrBitIndexOutOfRange))
}

// Every id in the space is covered by exactly one leaf.
func TestBucketTriePartition(t *testing.T) {
	local := NodeId{0x37}
	trie := newBucketTrie(1, 8)

	idx := 0
	for depth := 0; depth < 5; depth++ {
		require.NoError(t, trie.split(idx, local))
		idx = trie.nodes[idx].children[local.bit(depth)]
	}

	widths := 0
	trie.each(func(_ int, n *trieNode) {
		widths += 1 << (8 - n.depth)
	})
	assert.Equal(t, 256, widths)

	for i := 0; i < 256; i++ {
		leaf, err := trie.findLeaf(NodeId{byte(i)})
		require.NoError(t, err)
		assert.True(t, trie.nodes[leaf].isLeaf())
	}
}
