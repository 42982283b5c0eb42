package oram

// DummyBlockAddress marks a block record as a dummy. Dummy and real
// blocks have identical shape; nothing but this sentinel tells them
// apart.
const DummyBlockAddress = ^Address(0)

// Block is the unit record held in buckets and the stash.
type Block struct {
	Address  Address   // logical address, or DummyBlockAddress
	Position TreeIndex // leaf this block is assigned to; 0 for dummies
	Value    []byte
}

// dummyBlock returns a fresh dummy block with a zeroed value.
func dummyBlock(blockSize int) Block {
	return Block{Address: DummyBlockAddress, Position: 0, Value: make([]byte, blockSize)}
}

// ctIsDummy returns 1 when b is a dummy block, in constant time.
func (b *Block) ctIsDummy() uint64 {
	return ctEq64(b.Address, DummyBlockAddress)
}

func (b *Block) isDummy() bool {
	return b.Address == DummyBlockAddress
}

func (b *Block) clone() Block {
	v := make([]byte, len(b.Value))
	copy(v, b.Value)
	return Block{Address: b.Address, Position: b.Position, Value: v}
}

// Storage provides bucket-level access to the ORAM tree. Buckets are
// indexed by 1-based tree node number; index 0 is allocated but never
// used. No obliviousness is required at this layer: callers only touch
// the buckets of the path revealed by the current access.
type Storage interface {
	// ReadBucket returns a copy of the bucket at idx.
	ReadBucket(idx TreeIndex) ([]Block, error)

	// WriteBucket overwrites the bucket at idx.
	WriteBucket(idx TreeIndex, bucket []Block) error

	// Capacity returns the number of bucket slots, including the
	// unused slot 0.
	Capacity() Address

	// BucketSize returns the number of block slots per bucket.
	BucketSize() int

	// BlockSize returns the size of each block's value in bytes.
	BlockSize() int
}

// InMemoryStorage implements Storage using in-memory slices.
type InMemoryStorage struct {
	buckets    [][]Block
	bucketSize int
	blockSize  int
}

// NewInMemoryStorage creates in-memory storage for numBuckets buckets
// of bucketSize slots each, all slots dummy.
func NewInMemoryStorage(numBuckets Address, bucketSize, blockSize int) (*InMemoryStorage, error) {
	n, err := toInt(numBuckets)
	if err != nil {
		return nil, err
	}
	buckets := make([][]Block, n)
	for i := range buckets {
		buckets[i] = make([]Block, bucketSize)
		for j := range buckets[i] {
			buckets[i][j] = dummyBlock(blockSize)
		}
	}
	return &InMemoryStorage{
		buckets:    buckets,
		bucketSize: bucketSize,
		blockSize:  blockSize,
	}, nil
}

// ReadBucket returns a copy of the bucket at idx.
func (s *InMemoryStorage) ReadBucket(idx TreeIndex) ([]Block, error) {
	if idx == 0 || idx >= Address(len(s.buckets)) {
		return nil, ErrAddressOutOfBounds
	}
	bucket := make([]Block, s.bucketSize)
	for i := range bucket {
		bucket[i] = s.buckets[idx][i].clone()
	}
	return bucket, nil
}

// WriteBucket overwrites the bucket at idx with a copy of bucket.
func (s *InMemoryStorage) WriteBucket(idx TreeIndex, bucket []Block) error {
	if idx == 0 || idx >= Address(len(s.buckets)) {
		return ErrAddressOutOfBounds
	}
	if len(bucket) != s.bucketSize {
		return ErrInvalidDataSize
	}
	for i := range bucket {
		if len(bucket[i].Value) != s.blockSize {
			return ErrInvalidDataSize
		}
	}
	for i := range bucket {
		s.buckets[idx][i] = bucket[i].clone()
	}
	return nil
}

// Capacity returns the number of bucket slots.
func (s *InMemoryStorage) Capacity() Address {
	return Address(len(s.buckets))
}

// BucketSize returns slots per bucket.
func (s *InMemoryStorage) BucketSize() int {
	return s.bucketSize
}

// BlockSize returns bytes per block value.
func (s *InMemoryStorage) BlockSize() int {
	return s.blockSize
}

// CountingStorage wraps a Storage and counts bucket accesses. The
// front-end always runs its physical memory through one; tests,
// benchmarks, and monitors read the totals to pin down the physical
// access pattern of the protocol.
type CountingStorage struct {
	base   Storage
	reads  uint64
	writes uint64
}

// NewCountingStorage wraps base with access counters.
func NewCountingStorage(base Storage) *CountingStorage {
	return &CountingStorage{base: base}
}

func (s *CountingStorage) ReadBucket(idx TreeIndex) ([]Block, error) {
	s.reads++
	BucketReads.Inc()
	return s.base.ReadBucket(idx)
}

func (s *CountingStorage) WriteBucket(idx TreeIndex, bucket []Block) error {
	s.writes++
	BucketWrites.Inc()
	return s.base.WriteBucket(idx, bucket)
}

func (s *CountingStorage) Capacity() Address { return s.base.Capacity() }
func (s *CountingStorage) BucketSize() int   { return s.base.BucketSize() }
func (s *CountingStorage) BlockSize() int    { return s.base.BlockSize() }

// ReadCount returns the total number of bucket reads issued so far.
func (s *CountingStorage) ReadCount() uint64 { return s.reads }

// WriteCount returns the total number of bucket writes issued so far.
func (s *CountingStorage) WriteCount() uint64 { return s.writes }
