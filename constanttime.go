package oram

import "crypto/subtle"

// Constant-time helpers. Every function in this file executes in time
// independent of the values of its operands (though not of slice
// lengths), and touches memory in an order independent of them.
// Choices are 0 or 1; passing any other value is a caller bug.

// ctEq64 returns 1 if a == b, else 0.
func ctEq64(a, b uint64) uint64 {
	x := a ^ b
	return 1 ^ ((x | -x) >> 63)
}

// ctLess64 returns 1 if a < b, else 0.
func ctLess64(a, b uint64) uint64 {
	return (a ^ ((a ^ b) | ((a - b) ^ b))) >> 63
}

// ctSelect64 returns b if choice == 1, else a.
func ctSelect64(a, b, choice uint64) uint64 {
	return a ^ ((a ^ b) & -choice)
}

// ctAssign64 sets *dst to src when choice == 1.
func ctAssign64(dst *uint64, src, choice uint64) {
	*dst = ctSelect64(*dst, src, choice)
}

// ctSwap64 exchanges *a and *b when choice == 1.
func ctSwap64(a, b *uint64, choice uint64) {
	d := (*a ^ *b) & -choice
	*a ^= d
	*b ^= d
}

// ctAssignBytes copies src into dst when choice == 1.
// The slices must have equal length and must not alias.
func ctAssignBytes(dst, src []byte, choice uint64) {
	subtle.ConstantTimeCopy(int(choice), dst, src)
}

// ctSwapBytes exchanges the contents of a and b when choice == 1.
// The slices must have equal length and must not alias.
func ctSwapBytes(a, b []byte, choice uint64) {
	m := -byte(choice)
	for i := range a {
		d := (a[i] ^ b[i]) & m
		a[i] ^= d
		b[i] ^= d
	}
}

// ctAssignBlock overwrites every field of dst with src when
// choice == 1.
func ctAssignBlock(dst, src *Block, choice uint64) {
	ctAssign64(&dst.Address, src.Address, choice)
	ctAssign64(&dst.Position, src.Position, choice)
	ctAssignBytes(dst.Value, src.Value, choice)
}

// ctSwapBlocks exchanges two block records when choice == 1.
func ctSwapBlocks(a, b *Block, choice uint64) {
	ctSwap64(&a.Address, &b.Address, choice)
	ctSwap64(&a.Position, &b.Position, choice)
	ctSwapBytes(a.Value, b.Value, choice)
}
