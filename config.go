package oram

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"
)

// Address is the numeric type used to index logical blocks in an ORAM.
type Address = uint64

// TreeIndex names a node of the complete binary tree of buckets.
// Nodes are numbered 1-based: the root is 1 and the children of node n
// are 2n and 2n+1. Index 0 is never a valid node.
type TreeIndex = uint64

const (
	// DefaultBucketSize is the parameter "Z" from the Path ORAM
	// literature, the number of block slots per bucket. Typical values
	// are 3 or 4; we adopt the more conservative 4.
	DefaultBucketSize = 4

	// DefaultPositionBlockSize is the number of leaf labels stored per
	// position map block.
	DefaultPositionBlockSize = 4096

	// DefaultRecursionThreshold is the capacity at or below which the
	// position map is a linear oblivious array instead of a recursive
	// Path ORAM.
	DefaultRecursionThreshold = 4096

	// DefaultOverflowSize is the number of stash slots beyond the path
	// region that hold blocks awaiting eviction.
	DefaultOverflowSize = 40
)

// stashGrowthIncrement is the number of slots added to the stash when
// an eviction runs out of dummy blocks. Growth is an observable event;
// see ObliviousStash.
const stashGrowthIncrement = 10

var (
	ErrInvalidConfiguration = errors.New("invalid ORAM configuration")
	ErrAddressOutOfBounds   = errors.New("ORAM address out of bounds")
	ErrArithmeticOverflow   = errors.New("ORAM parameter overflows the native integer size")
	ErrInvalidDataSize      = errors.New("data size doesn't match block size")
	ErrEncryptionFailed     = errors.New("block encryption failed")
	ErrDecryptionFailed     = errors.New("block decryption failed")
)

// Config holds the construction-time Path ORAM parameters.
// The zero value of every field other than BlockSize selects a
// reasonable default.
type Config struct {
	BlockSize          int     `yaml:"block-size"`          // bytes per block value
	BucketSize         int     `yaml:"bucket-size"`         // block slots per bucket (Z)
	PositionBlockSize  int     `yaml:"position-block-size"` // leaf labels per position block (AB)
	RecursionThreshold Address `yaml:"recursion-threshold"` // linear position map at or below this capacity (RT)
	OverflowSize       int     `yaml:"overflow-size"`       // stash overflow budget (O)
}

// Validate checks the configuration and applies defaults.
// Returns a copy of the config with defaults filled in.
func (c Config) Validate() (Config, error) {
	if c.BlockSize <= 0 {
		return c, ErrInvalidConfiguration
	}
	if c.BucketSize == 0 {
		c.BucketSize = DefaultBucketSize
	}
	if c.PositionBlockSize == 0 {
		c.PositionBlockSize = DefaultPositionBlockSize
	}
	if c.RecursionThreshold == 0 {
		c.RecursionThreshold = DefaultRecursionThreshold
	}
	if c.OverflowSize == 0 {
		c.OverflowSize = DefaultOverflowSize
	}
	// Initialization writes two real blocks into every leaf bucket,
	// and the last overflow slot is reserved for write-on-miss.
	if c.BucketSize < 2 || c.OverflowSize < 1 {
		return c, ErrInvalidConfiguration
	}
	// A position block must hold at least two labels, and the
	// threshold must cover the two-block inner ORAM the recursion
	// rounds up to, or the position map recursion would not shrink.
	if c.PositionBlockSize < 2 || c.RecursionThreshold < 2 {
		return c, ErrInvalidConfiguration
	}
	return c, nil
}

// ConfigFromFile reads a YAML configuration file, rejecting unknown
// keys, and validates it.
func ConfigFromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var parsed Config
	if err := yaml.UnmarshalStrict(raw, &parsed); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %v", err)
	}
	return parsed.Validate()
}

// toInt converts an unsigned 64-bit quantity to int, failing instead
// of truncating on 32-bit platforms.
func toInt(u uint64) (int, error) {
	if u > math.MaxInt {
		return 0, ErrArithmeticOverflow
	}
	return int(u), nil
}
