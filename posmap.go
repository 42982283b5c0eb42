package oram

import (
	"encoding/binary"
	"io"
)

// PositionMap maps every logical address to the leaf its block is
// currently assigned to. At or below the recursion threshold it is a
// linear-scan oblivious array of leaf labels; above it, it is itself a
// Path ORAM whose blocks each pack PositionBlockSize labels, encoded
// as fixed-width little-endian words. The recursion bottoms out
// because each layer shrinks the capacity by a factor of the position
// block size.
type PositionMap struct {
	capacity Address
	ab       Address

	// Exactly one of linear / oram is non-nil.
	linear []TreeIndex
	oram   *PathORAM
}

func newPositionMap(capacity Address, cfg Config, rand io.Reader) (*PositionMap, error) {
	ab := Address(cfg.PositionBlockSize)
	if capacity <= cfg.RecursionThreshold {
		n, err := toInt(capacity)
		if err != nil {
			return nil, err
		}
		return &PositionMap{
			capacity: capacity,
			ab:       ab,
			linear:   make([]TreeIndex, n),
		}, nil
	}

	inner := capacity / ab
	if capacity%ab != 0 {
		inner++
	}
	// The inner ORAM constructor needs a power-of-two capacity of at
	// least 2. capacity is a power of two, so when ab is one too only
	// the single-block case needs rounding; any other ab can leave
	// inner a non-power-of-two, which New rejects.
	if inner < 2 {
		inner = 2
	}
	innerCfg := cfg
	innerCfg.BlockSize = cfg.PositionBlockSize * 8
	po, err := New(inner, innerCfg, rand)
	if err != nil {
		return nil, err
	}
	return &PositionMap{capacity: capacity, ab: ab, oram: po}, nil
}

// Write atomically swaps the leaf assignment of addr to newPos and
// returns the previous assignment. Which position block is touched is
// revealed to the inner ORAM's physical memory only through that
// ORAM's own oblivious access; the offset within the block is consumed
// in constant-time scans.
func (m *PositionMap) Write(addr Address, newPos TreeIndex) (TreeIndex, error) {
	if addr >= m.capacity {
		return 0, ErrAddressOutOfBounds
	}

	if m.linear != nil {
		var old TreeIndex
		for i := range m.linear {
			match := ctEq64(uint64(i), addr)
			ctAssign64(&old, m.linear[i], match)
			ctAssign64(&m.linear[i], newPos, match)
		}
		return old, nil
	}

	offset := addr % m.ab
	prev, err := m.oram.Access(addr/m.ab, func(block []byte) []byte {
		out := make([]byte, len(block))
		copy(out, block)
		for i := Address(0); i < m.ab; i++ {
			ctAssignLabel(out[8*i:], newPos, ctEq64(i, offset))
		}
		return out
	})
	if err != nil {
		return 0, err
	}
	var old TreeIndex
	for i := Address(0); i < m.ab; i++ {
		ctAssign64(&old, getLabel(prev[8*i:]), ctEq64(i, offset))
	}
	return old, nil
}

// WritePositionBlock bulk-writes the position block whose base address
// is base. It is used only during ORAM construction; entries past the
// map's capacity are padding: the linear variant drops them, and the
// recursive variant stores them in the block, where no address reads
// them.
func (m *PositionMap) WritePositionBlock(base Address, block []TreeIndex) error {
	if base%m.ab != 0 || len(block) != int(m.ab) {
		return ErrInvalidDataSize
	}
	if base >= m.capacity {
		return ErrAddressOutOfBounds
	}

	if m.linear != nil {
		for i, p := range block {
			if a := base + Address(i); a < m.capacity {
				m.linear[a] = p
			}
		}
		return nil
	}

	encoded := make([]byte, 8*m.ab)
	for i, p := range block {
		putLabel(encoded[8*i:], p)
	}
	_, err := m.oram.Access(base/m.ab, func([]byte) []byte { return encoded })
	return err
}

func putLabel(dst []byte, v TreeIndex) {
	binary.LittleEndian.PutUint64(dst, v)
}

func getLabel(src []byte) TreeIndex {
	return binary.LittleEndian.Uint64(src)
}

// ctAssignLabel writes v into the 8-byte label at the head of dst when
// choice == 1.
func ctAssignLabel(dst []byte, v TreeIndex, choice uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	ctAssignBytes(dst[:8], tmp[:], choice)
}
