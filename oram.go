// Package oram implements a doubly-oblivious Path ORAM for secure
// enclave applications.
//
// An ORAM stores an indexed array of fixed-size blocks and serves
// reads and writes with a physical memory-access pattern that is
// indistinguishable across logical access sequences of the same
// length. This package assumes the enclave encrypts memory: it does
// not encrypt on write (see Encryptor for deployments that need it),
// but both the bucket tree and the client-side stash and position map
// are accessed with data-independent control flow.
package oram

import "io"

// PathORAM implements the Path ORAM protocol over an in-memory bucket
// tree, with an obliviously scanned stash and a recursive position
// map.
//
// A PathORAM is exclusively owned by its caller: accesses are
// synchronous, run to completion, and must not be issued concurrently.
type PathORAM struct {
	cfg      Config
	capacity Address
	height   uint64
	phys     *CountingStorage
	stash    *ObliviousStash
	posMap   *PositionMap
	rand     io.Reader
}

// New creates a Path ORAM holding blockCapacity blocks of
// cfg.BlockSize bytes each, every address initialized to the zero
// value. blockCapacity must be a power of two and at least 2.
//
// rand must be cryptographically secure in production; it is retained
// and drawn from on every access.
func New(blockCapacity Address, cfg Config, rand io.Reader) (*PathORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if blockCapacity < 2 || blockCapacity&(blockCapacity-1) != 0 {
		return nil, ErrInvalidConfiguration
	}
	storage, err := NewInMemoryStorage(blockCapacity, cfg.BucketSize, cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	return NewWithStorage(blockCapacity, cfg, storage, rand)
}

// NewWithStorage is New with caller-supplied physical memory, for
// wrapping the bucket array in decorators such as WithEncryption.
// storage must be dimensioned for blockCapacity buckets of
// cfg.BucketSize slots of cfg.BlockSize-byte values, all dummy.
func NewWithStorage(blockCapacity Address, cfg Config, storage Storage, rand io.Reader) (*PathORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if blockCapacity < 2 || blockCapacity&(blockCapacity-1) != 0 {
		return nil, ErrInvalidConfiguration
	}
	if storage.Capacity() != blockCapacity ||
		storage.BucketSize() != cfg.BucketSize ||
		storage.BlockSize() != cfg.BlockSize {
		return nil, ErrInvalidConfiguration
	}

	// A tree of height h has 2^(h+1)-1 nodes; with one bucket per node
	// and slot 0 unused, blockCapacity buckets give height log2(C)-1
	// and C/2 leaves. The original Path ORAM paper's experiments found
	// C/2 leaves sufficient to keep the stash small with high
	// probability.
	height := depth(blockCapacity) - 1
	pathSize := cfg.BucketSize * int(height+1)

	stash, err := NewObliviousStash(pathSize, cfg.OverflowSize, cfg.BucketSize, cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	posMap, err := newPositionMap(blockCapacity, cfg, rand)
	if err != nil {
		return nil, err
	}

	o := &PathORAM{
		cfg:      cfg,
		capacity: blockCapacity,
		height:   height,
		phys:     NewCountingStorage(storage),
		stash:    stash,
		posMap:   posMap,
		rand:     rand,
	}
	if err := o.initialize(); err != nil {
		return nil, err
	}
	return o, nil
}

// initialize populates the tree and position map so that every address
// holds one real zero-valued block. Addresses are dealt to leaf slots
// by a random permutation drawn with an oblivious shuffle, two blocks
// per leaf; the inverse permutation, computed by the same oblivious
// method, yields each address's leaf for the position map.
func (o *PathORAM) initialize() error {
	n, err := toInt(o.capacity)
	if err != nil {
		return err
	}
	slotToAddr, err := randomPermutation(n, o.rand)
	if err != nil {
		return err
	}
	addrToSlot := invertPermutation(slotToAddr)

	firstLeaf := TreeIndex(1) << o.height
	for leaf := firstLeaf; leaf < 2*firstLeaf; leaf++ {
		bucket := make([]Block, o.cfg.BucketSize)
		for slot := range bucket {
			bucket[slot] = dummyBlock(o.cfg.BlockSize)
		}
		for slot := 0; slot < 2; slot++ {
			bucket[slot] = Block{
				Address:  slotToAddr[(leaf-firstLeaf)*2+uint64(slot)],
				Position: leaf,
				Value:    make([]byte, o.cfg.BlockSize),
			}
		}
		if err := o.phys.WriteBucket(leaf, bucket); err != nil {
			return err
		}
	}

	// The position block size need not divide the capacity; pad the
	// inverse with zeros up to a whole block. Padding entries are
	// never read back.
	ab := Address(o.cfg.PositionBlockSize)
	numBlocks := o.capacity / ab
	if o.capacity%ab != 0 {
		numBlocks++
		padded := make([]uint64, numBlocks*ab)
		copy(padded, addrToSlot)
		addrToSlot = padded
	}
	for bi := Address(0); bi < numBlocks; bi++ {
		labels := make([]TreeIndex, ab)
		for i := Address(0); i < ab; i++ {
			labels[i] = firstLeaf + addrToSlot[bi*ab+i]/2
		}
		if err := o.posMap.WritePositionBlock(bi*ab, labels); err != nil {
			return err
		}
	}
	return nil
}

// BlockCapacity returns the number of logical blocks this ORAM holds.
func (o *PathORAM) BlockCapacity() Address {
	return o.capacity
}

// BlockSize returns the configured block size in bytes.
func (o *PathORAM) BlockSize() int {
	return o.cfg.BlockSize
}

// Height returns the height of the bucket tree.
func (o *PathORAM) Height() uint64 {
	return o.height
}

// StashOccupancy returns the number of real blocks awaiting eviction
// in the stash overflow region.
func (o *PathORAM) StashOccupancy() int {
	return o.stash.Occupancy()
}

// PhysicalAccessCounts returns the cumulative bucket read and write
// totals at this recursion layer, including initialization traffic.
func (o *PathORAM) PhysicalAccessCounts() (reads, writes uint64) {
	return o.phys.ReadCount(), o.phys.WriteCount()
}

// Access performs one oblivious access: the value previously stored at
// addr is returned, and callback(previous) replaces it. For in-place
// updates this is about twice as fast as a Read followed by a Write.
//
// callback must be pure and data-oblivious; it is evaluated once per
// stash slot regardless of where (or whether) addr matches.
func (o *PathORAM) Access(addr Address, callback func([]byte) []byte) ([]byte, error) {
	// Leaks only whether the address is well-formed.
	if addr >= o.capacity {
		return nil, ErrAddressOutOfBounds
	}

	newPos, err := randomLeaf(o.height, o.rand)
	if err != nil {
		return nil, err
	}
	oldPos, err := o.posMap.Write(addr, newPos)
	if err != nil {
		return nil, err
	}
	if err := o.stash.ReadPath(o.phys, oldPos); err != nil {
		return nil, err
	}
	result, err := o.stash.Access(addr, newPos, callback)
	if err != nil {
		return nil, err
	}
	if err := o.stash.WritePath(o.phys, oldPos); err != nil {
		return nil, err
	}
	return result, nil
}

// Read obliviously reads the value stored at addr.
func (o *PathORAM) Read(addr Address) ([]byte, error) {
	return o.Access(addr, func(v []byte) []byte { return v })
}

// Write obliviously stores value at addr and returns the previous
// value.
func (o *PathORAM) Write(addr Address, value []byte) ([]byte, error) {
	if len(value) != o.cfg.BlockSize {
		return nil, ErrInvalidDataSize
	}
	return o.Access(addr, func([]byte) []byte { return value })
}
