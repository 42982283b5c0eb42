package oram

import (
	"bytes"
	"math"
	"testing"
)

func TestCtEq64(t *testing.T) {
	tests := []struct {
		a, b uint64
		want uint64
	}{
		{0, 0, 1},
		{0, 1, 0},
		{1, 0, 0},
		{42, 42, 1},
		{math.MaxUint64, math.MaxUint64, 1},
		{math.MaxUint64, math.MaxUint64 - 1, 0},
		{1 << 63, 1 << 63, 1},
		{1 << 63, 0, 0},
	}
	for _, tt := range tests {
		if got := ctEq64(tt.a, tt.b); got != tt.want {
			t.Errorf("ctEq64(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCtLess64(t *testing.T) {
	tests := []struct {
		a, b uint64
		want uint64
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 0},
		{5, 7, 1},
		{7, 5, 0},
		{0, math.MaxUint64, 1},
		{math.MaxUint64, 0, 0},
		{math.MaxUint64 - 1, math.MaxUint64, 1},
		{1 << 63, (1 << 63) - 1, 0},
		{(1 << 63) - 1, 1 << 63, 1},
	}
	for _, tt := range tests {
		if got := ctLess64(tt.a, tt.b); got != tt.want {
			t.Errorf("ctLess64(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCtSelectAndAssign(t *testing.T) {
	if got := ctSelect64(3, 9, 0); got != 3 {
		t.Errorf("ctSelect64(3, 9, 0) = %d, want 3", got)
	}
	if got := ctSelect64(3, 9, 1); got != 9 {
		t.Errorf("ctSelect64(3, 9, 1) = %d, want 9", got)
	}

	x := uint64(3)
	ctAssign64(&x, 9, 0)
	if x != 3 {
		t.Errorf("ctAssign64 with choice 0 changed value to %d", x)
	}
	ctAssign64(&x, 9, 1)
	if x != 9 {
		t.Errorf("ctAssign64 with choice 1 gave %d, want 9", x)
	}
}

func TestCtSwap64(t *testing.T) {
	a, b := uint64(1), uint64(2)
	ctSwap64(&a, &b, 0)
	if a != 1 || b != 2 {
		t.Errorf("ctSwap64 with choice 0 gave (%d, %d)", a, b)
	}
	ctSwap64(&a, &b, 1)
	if a != 2 || b != 1 {
		t.Errorf("ctSwap64 with choice 1 gave (%d, %d)", a, b)
	}
}

func TestCtBytes(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	b := []byte{5, 6, 7, 8}

	ctAssignBytes(a, b, 0)
	if !bytes.Equal(a, []byte{1, 2, 3, 4}) {
		t.Errorf("ctAssignBytes with choice 0 changed dst: %v", a)
	}
	ctAssignBytes(a, b, 1)
	if !bytes.Equal(a, b) {
		t.Errorf("ctAssignBytes with choice 1 gave %v, want %v", a, b)
	}

	a = []byte{1, 2, 3, 4}
	ctSwapBytes(a, b, 0)
	if !bytes.Equal(a, []byte{1, 2, 3, 4}) || !bytes.Equal(b, []byte{5, 6, 7, 8}) {
		t.Errorf("ctSwapBytes with choice 0 gave %v, %v", a, b)
	}
	ctSwapBytes(a, b, 1)
	if !bytes.Equal(a, []byte{5, 6, 7, 8}) || !bytes.Equal(b, []byte{1, 2, 3, 4}) {
		t.Errorf("ctSwapBytes with choice 1 gave %v, %v", a, b)
	}
}

func TestCtBlocks(t *testing.T) {
	real := Block{Address: 7, Position: 12, Value: []byte{0xaa, 0xbb}}
	dummy := dummyBlock(2)

	got := dummy.clone()
	ctAssignBlock(&got, &real, 0)
	if !got.isDummy() {
		t.Error("ctAssignBlock with choice 0 overwrote dst")
	}
	ctAssignBlock(&got, &real, 1)
	if got.Address != 7 || got.Position != 12 || !bytes.Equal(got.Value, real.Value) {
		t.Errorf("ctAssignBlock with choice 1 gave %+v", got)
	}

	a, b := real.clone(), dummy.clone()
	ctSwapBlocks(&a, &b, 1)
	if !a.isDummy() || b.Address != 7 || !bytes.Equal(b.Value, []byte{0xaa, 0xbb}) {
		t.Errorf("ctSwapBlocks with choice 1 gave %+v, %+v", a, b)
	}
}
