package oram

import "log"

// ObliviousStash buffers blocks between path reads and evictions.
// Slots [0, pathSize) mirror the most recently touched path, deepest
// bucket last; the remaining slots are the overflow region, holding
// real blocks that could not be evicted. The final slot is reserved
// for initializing a block when an address is accessed for the first
// time, and is a dummy whenever no access is in progress.
//
// Access and WritePath touch every slot and route all conditional
// behavior through constant-time selects, so the memory trace they
// produce is independent of the secret address and of block contents.
// The single exception is stash growth: when an eviction cannot fill
// the path with the dummies on hand, the stash is extended by a fixed
// increment and the fill pass reruns. The retry is observable and
// leaks that an overflow happened. The alternative is to fail the
// access; with a sane overflow budget the event has negligible
// probability.
type ObliviousStash struct {
	blocks     []Block
	pathSize   int // bucketSize * (height+1)
	bucketSize int
	blockSize  int
}

// NewObliviousStash creates a stash of pathSize + overflowSize dummy
// blocks.
func NewObliviousStash(pathSize, overflowSize, bucketSize, blockSize int) (*ObliviousStash, error) {
	if pathSize <= 0 || overflowSize < 1 || bucketSize <= 0 || blockSize <= 0 {
		return nil, ErrInvalidConfiguration
	}
	if pathSize%bucketSize != 0 {
		return nil, ErrInvalidConfiguration
	}
	blocks := make([]Block, pathSize+overflowSize)
	for i := range blocks {
		blocks[i] = dummyBlock(blockSize)
	}
	return &ObliviousStash{
		blocks:     blocks,
		pathSize:   pathSize,
		bucketSize: bucketSize,
		blockSize:  blockSize,
	}, nil
}

// Size returns the current number of stash slots, including the path
// region. It can exceed the constructed size after overflow growth.
func (s *ObliviousStash) Size() int {
	return len(s.blocks)
}

// Occupancy returns the number of real blocks held beyond the path
// region.
func (s *ObliviousStash) Occupancy() int {
	n := 0
	for i := s.pathSize; i < len(s.blocks); i++ {
		if !s.blocks[i].isDummy() {
			n++
		}
	}
	return n
}

// ReadPath reads the buckets on the root-to-leaf path into the path
// region of the stash, deepest bucket first. Which path is read is
// public; the path contents are not inspected here.
func (s *ObliviousStash) ReadPath(phys Storage, leaf TreeIndex) error {
	height := depth(leaf)
	for d := s.pathSize/s.bucketSize - 1; d >= 0; d-- {
		bucket, err := phys.ReadBucket(nodeOnPath(leaf, uint64(d), height))
		if err != nil {
			return err
		}
		for slot := 0; slot < s.bucketSize; slot++ {
			s.blocks[d*s.bucketSize+slot] = bucket[slot]
		}
	}
	return nil
}

// Access scans the entire stash for addr in constant time. At the
// matching slot the current value is copied into the result, the
// position is rewritten to newPos, and the value is replaced with
// f(result). If no slot matches, a block {addr, newPos, f(default)} is
// installed in the reserved last slot. This scan is the only point in
// an ORAM access where the secret address is consumed.
//
// f must be pure: it is evaluated at every slot and its result is
// discarded everywhere but the match.
func (s *ObliviousStash) Access(addr Address, newPos TreeIndex, f func([]byte) []byte) ([]byte, error) {
	result := make([]byte, s.blockSize)
	var found uint64
	for i := range s.blocks {
		b := &s.blocks[i]
		match := ctEq64(b.Address, addr)
		found |= match
		ctAssignBytes(result, b.Value, match)
		ctAssign64(&b.Position, newPos, match)
		valueToWrite := f(result)
		if len(valueToWrite) != s.blockSize {
			return nil, ErrInvalidDataSize
		}
		ctAssignBytes(b.Value, valueToWrite, match)
	}

	initValue := f(result)
	if len(initValue) != s.blockSize {
		return nil, ErrInvalidDataSize
	}
	initial := Block{Address: addr, Position: newPos, Value: initValue}
	ctAssignBlock(&s.blocks[len(s.blocks)-1], &initial, 1^found)

	return result, nil
}

// WritePath evicts the stash into the buckets on the root-to-leaf
// path.
func (s *ObliviousStash) WritePath(phys Storage, leaf TreeIndex) error {
	height := depth(leaf)
	z := uint64(s.bucketSize)
	levelAssignments := make([]TreeIndex, len(s.blocks))
	for i := range levelAssignments {
		levelAssignments[i] = levelUnassigned
	}
	levelCounts := make([]uint64, height+1)

	// Stage 1: assign each real block to the deepest non-full bucket
	// on the path whose subtree contains the block's leaf, scanning
	// levels leaf to root. Blocks that fit nowhere go to the overflow.
	for i := range s.blocks {
		b := &s.blocks[i]
		isDummy := b.ctIsDummy()
		// Dummies run the same arithmetic on an arbitrary leaf.
		pos := ctSelect64(b.Position, 1<<height, isDummy)
		var assigned uint64
		for d := int(height); d >= 0; d-- {
			du := uint64(d)
			full := ctEq64(levelCounts[d], z)
			onPath := ctEq64(nodeOnPath(pos, du, height), nodeOnPath(leaf, du, height))
			shouldAssign := onPath & (1 ^ full) & (1 ^ isDummy) & (1 ^ assigned)
			assigned |= shouldAssign
			ctAssign64(&levelCounts[d], levelCounts[d]+1, shouldAssign)
			ctAssign64(&levelAssignments[i], du, shouldAssign)
		}
		ctAssign64(&levelAssignments[i], levelOverflow, (1^assigned)&(1^isDummy))
	}

	// Stage 2: pad the remaining bucket slots with dummies, scanning
	// levels root to leaf. Unless the stash overflows this loop body
	// runs once; a rerun after growth is the observable leak described
	// on the type.
	firstUnassigned := 0
	for {
		for i := firstUnassigned; i < len(s.blocks)-1; i++ { // last slot stays reserved
			b := &s.blocks[i]
			free := b.ctIsDummy()
			var assigned uint64
			for d := 0; d <= int(height); d++ {
				full := ctEq64(levelCounts[d], z)
				noOp := assigned | full | (1 ^ free)
				ctAssign64(&levelAssignments[i], uint64(d), 1^noOp)
				ctAssign64(&levelCounts[d], levelCounts[d]+1, 1^noOp)
				assigned |= 1 ^ noOp
			}
		}

		var unfilled uint64
		for d := range levelCounts {
			unfilled |= 1 ^ ctEq64(levelCounts[d], z)
		}
		if unfilled == 0 {
			break
		}

		// Out of dummies: the stash has overflowed. Grow it and rerun
		// the fill pass over the new slots (including the slot that
		// was reserved, now that a later one takes its place).
		firstUnassigned = len(s.blocks) - 1
		for n := 0; n < stashGrowthIncrement; n++ {
			s.blocks = append(s.blocks, dummyBlock(s.blockSize))
			levelAssignments = append(levelAssignments, levelUnassigned)
		}
		StashGrowths.Inc()
		log.Printf("oram: stash overflow, stash resized to %d blocks", len(s.blocks))
	}

	// Stage 3: sort by assigned level and write the grouped prefix
	// back, one bucket per depth. Overflow and unassigned keys sort
	// past the path region and stay in the stash.
	bitonicSortBlocksByKeys(s.blocks, levelAssignments, s.blockSize)
	for d := uint64(0); d <= height; d++ {
		bucket := make([]Block, s.bucketSize)
		for slot := 0; slot < s.bucketSize; slot++ {
			bucket[slot] = s.blocks[int(d)*s.bucketSize+slot]
		}
		if err := phys.WriteBucket(nodeOnPath(leaf, d, height), bucket); err != nil {
			return err
		}
	}
	return nil
}
