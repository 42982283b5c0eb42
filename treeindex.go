package oram

import (
	"encoding/binary"
	"io"
	"math/bits"
)

// Sort keys reserved during eviction. Real levels occupy [0, h]; the
// two top values mark blocks bound for the stash overflow and slots
// with no assignment at all, so that sorting by key groups path
// levels first and leftovers last.
const (
	levelOverflow   = ^TreeIndex(0) - 1
	levelUnassigned = ^TreeIndex(0)
)

// depth returns floor(log2(n)), the depth of node n (the root has
// depth 0). n must be nonzero. bits.Len64 lowers to a leading-zero
// count, so the computation is data-independent.
func depth(n TreeIndex) uint64 {
	return uint64(bits.Len64(n) - 1)
}

// nodeOnPath returns the ancestor at depth d of a leaf of a tree of
// height h. The k-th ancestor of a node is the node shifted right k
// times.
func nodeOnPath(leaf TreeIndex, d, h uint64) TreeIndex {
	return leaf >> (h - d)
}

// commonAncestorDepth returns the depth of the deepest common ancestor
// of two leaves of a tree of height h: XOR the leaves and count the
// differing suffix bits.
func commonAncestorDepth(a, b TreeIndex, h uint64) uint64 {
	return h - uint64(bits.Len64(a^b))
}

// isLeaf reports whether n is a leaf of a tree of height h.
func isLeaf(n TreeIndex, h uint64) bool {
	return n != 0 && depth(n) == h
}

// randomLeaf draws a leaf of a tree of height h uniformly from rand.
// The leaf range [2^h, 2^(h+1)) has power-of-two size, so masking the
// low h bits of one random word is exact.
func randomLeaf(h uint64, rand io.Reader) (TreeIndex, error) {
	var buf [8]byte
	if _, err := io.ReadFull(rand, buf[:]); err != nil {
		return 0, err
	}
	r := binary.LittleEndian.Uint64(buf[:])
	return (1 << h) | (r & (1<<h - 1)), nil
}
