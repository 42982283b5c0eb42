package oram

import (
	"encoding/binary"
	"io"
	"math/bits"
)

// Oblivious sorting. A bitonic network's comparator schedule is fixed
// by the input length, and every comparator runs a constant-time
// compare-and-swap, so the full sort touches memory in an order
// independent of the data being sorted.

// forEachComparator visits every comparator of the bitonic sorting
// network for n elements, n a power of two. visit(i, j) must order the
// pair so that element i ends up with the smaller key.
func forEachComparator(n int, visit func(i, j int)) {
	for k := 2; k <= n; k <<= 1 {
		for j := k >> 1; j > 0; j >>= 1 {
			for i := 0; i < n; i++ {
				l := i ^ j
				if l <= i {
					continue
				}
				if i&k == 0 {
					visit(i, l)
				} else {
					visit(l, i)
				}
			}
		}
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// bitonicSortByKeys sorts values by keys, ascending. len(values) must
// equal len(keys) and be a power of two.
func bitonicSortByKeys(values, keys []uint64) {
	forEachComparator(len(values), func(i, j int) {
		c := ctLess64(keys[j], keys[i])
		ctSwap64(&keys[i], &keys[j], c)
		ctSwap64(&values[i], &values[j], c)
	})
}

// bitonicSortBlocksByKeys sorts blocks by keys, ascending, in place.
// Lengths that are not powers of two are padded with maximum-key dummy
// blocks; since every maximum-key payload is an identical dummy block,
// truncating the sorted result back to the original length drops only
// padding.
func bitonicSortBlocksByKeys(blocks []Block, keys []TreeIndex, blockSize int) {
	n := len(blocks)
	m := nextPowerOfTwo(n)
	work, workKeys := blocks, keys
	if m != n {
		work = make([]Block, m)
		workKeys = make([]TreeIndex, m)
		copy(work, blocks)
		copy(workKeys, keys)
		for i := n; i < m; i++ {
			work[i] = dummyBlock(blockSize)
			workKeys[i] = levelUnassigned
		}
	}
	forEachComparator(m, func(i, j int) {
		c := ctLess64(workKeys[j], workKeys[i])
		ctSwap64(&workKeys[i], &workKeys[j], c)
		ctSwapBlocks(&work[i], &work[j], c)
	})
	if m != n {
		copy(blocks, work[:n])
		copy(keys, workKeys[:n])
	}
}

// randomPermutation returns a uniform random permutation of [0, n),
// n a power of two, by tagging each element with a fresh random word
// and obliviously sorting by the tags. Tag collisions only bias the
// distribution by a negligible amount.
func randomPermutation(n int, rand io.Reader) ([]uint64, error) {
	values := make([]uint64, n)
	keys := make([]uint64, n)
	buf := make([]byte, 8*n)
	if _, err := io.ReadFull(rand, buf); err != nil {
		return nil, err
	}
	for i := range values {
		values[i] = uint64(i)
		keys[i] = binary.LittleEndian.Uint64(buf[8*i:])
	}
	bitonicSortByKeys(values, keys)
	return values, nil
}

// invertPermutation computes the inverse of pi by the same oblivious
// method: the pairs (pi[i], i) are sorted by their first component.
func invertPermutation(pi []uint64) []uint64 {
	keys := make([]uint64, len(pi))
	values := make([]uint64, len(pi))
	copy(keys, pi)
	for i := range values {
		values[i] = uint64(i)
	}
	bitonicSortByKeys(values, keys)
	return values
}
