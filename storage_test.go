package oram

import (
	"bytes"
	"testing"
)

func TestInMemoryStorage(t *testing.T) {
	s, err := NewInMemoryStorage(8, 4, 16)
	if err != nil {
		t.Fatalf("NewInMemoryStorage: %v", err)
	}
	if s.Capacity() != 8 || s.BucketSize() != 4 || s.BlockSize() != 16 {
		t.Fatalf("dimensions: %d/%d/%d", s.Capacity(), s.BucketSize(), s.BlockSize())
	}

	t.Run("starts dummy", func(t *testing.T) {
		bucket, err := s.ReadBucket(3)
		if err != nil {
			t.Fatal(err)
		}
		for i := range bucket {
			if !bucket[i].isDummy() {
				t.Errorf("slot %d not dummy: %+v", i, bucket[i])
			}
			if len(bucket[i].Value) != 16 {
				t.Errorf("slot %d value length %d", i, len(bucket[i].Value))
			}
		}
	})

	t.Run("write then read", func(t *testing.T) {
		bucket := []Block{
			{Address: 1, Position: 5, Value: bytes.Repeat([]byte{0xab}, 16)},
			dummyBlock(16),
			dummyBlock(16),
			dummyBlock(16),
		}
		if err := s.WriteBucket(5, bucket); err != nil {
			t.Fatal(err)
		}
		got, err := s.ReadBucket(5)
		if err != nil {
			t.Fatal(err)
		}
		if got[0].Address != 1 || got[0].Position != 5 || !bytes.Equal(got[0].Value, bucket[0].Value) {
			t.Errorf("read back %+v", got[0])
		}
		// Reads hand out copies.
		got[0].Value[0] = 0xff
		again, _ := s.ReadBucket(5)
		if again[0].Value[0] != 0xab {
			t.Error("ReadBucket aliases internal state")
		}
	})

	t.Run("bounds", func(t *testing.T) {
		if _, err := s.ReadBucket(0); err != ErrAddressOutOfBounds {
			t.Errorf("ReadBucket(0) err = %v", err)
		}
		if _, err := s.ReadBucket(8); err != ErrAddressOutOfBounds {
			t.Errorf("ReadBucket(8) err = %v", err)
		}
		if err := s.WriteBucket(9, nil); err != ErrAddressOutOfBounds {
			t.Errorf("WriteBucket(9) err = %v", err)
		}
	})

	t.Run("shape checks", func(t *testing.T) {
		if err := s.WriteBucket(1, make([]Block, 3)); err != ErrInvalidDataSize {
			t.Errorf("short bucket err = %v", err)
		}
		bad := []Block{dummyBlock(16), dummyBlock(16), dummyBlock(16), dummyBlock(8)}
		if err := s.WriteBucket(1, bad); err != ErrInvalidDataSize {
			t.Errorf("wrong block size err = %v", err)
		}
	})
}

func TestCountingStorage(t *testing.T) {
	base, _ := NewInMemoryStorage(8, 4, 8)
	s := NewCountingStorage(base)

	for i := 0; i < 3; i++ {
		if _, err := s.ReadBucket(1); err != nil {
			t.Fatal(err)
		}
	}
	bucket, _ := base.ReadBucket(2)
	if err := s.WriteBucket(2, bucket); err != nil {
		t.Fatal(err)
	}

	if s.ReadCount() != 3 {
		t.Errorf("ReadCount = %d, want 3", s.ReadCount())
	}
	if s.WriteCount() != 1 {
		t.Errorf("WriteCount = %d, want 1", s.WriteCount())
	}
}

func TestWithEncryption(t *testing.T) {
	enc, err := NewAESGCMEncryptorFromPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	const blockSize = 32
	base, _ := NewInMemoryStorage(8, 2, blockSize+enc.Overhead())
	s := WithEncryption(base, enc)

	if s.BlockSize() != blockSize {
		t.Fatalf("BlockSize = %d, want %d", s.BlockSize(), blockSize)
	}

	t.Run("roundtrip", func(t *testing.T) {
		value := bytes.Repeat([]byte{0x42}, blockSize)
		bucket := []Block{
			{Address: 9, Position: 4, Value: append([]byte(nil), value...)},
			dummyBlock(blockSize),
		}
		if err := s.WriteBucket(4, bucket); err != nil {
			t.Fatal(err)
		}
		got, err := s.ReadBucket(4)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got[0].Value, value) {
			t.Errorf("decrypted value = %x", got[0].Value)
		}
		if !got[1].isDummy() || len(got[1].Value) != blockSize {
			t.Errorf("dummy slot came back as %+v", got[1])
		}

		// The value must not appear in the clear underneath.
		raw, _ := base.ReadBucket(4)
		if bytes.Contains(raw[0].Value, value[:8]) {
			t.Error("plaintext visible in base storage")
		}
	})

	t.Run("tamper", func(t *testing.T) {
		raw, _ := base.ReadBucket(4)
		raw[0].Value[13] ^= 1
		if err := base.WriteBucket(4, raw); err != nil {
			t.Fatal(err)
		}
		if _, err := s.ReadBucket(4); err != ErrDecryptionFailed {
			t.Errorf("tampered read err = %v, want ErrDecryptionFailed", err)
		}
	})

	t.Run("untouched buckets decrypt as dummies", func(t *testing.T) {
		got, err := s.ReadBucket(7)
		if err != nil {
			t.Fatal(err)
		}
		for i := range got {
			if !got[i].isDummy() || len(got[i].Value) != blockSize {
				t.Errorf("slot %d: %+v", i, got[i])
			}
		}
	})
}

func TestAESGCMEncryptor(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	enc, err := NewAESGCMEncryptor(key)
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte("attack at dawn..")
	ct, err := enc.Encrypt(3, 12, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if len(ct) != len(plaintext)+enc.Overhead() {
		t.Fatalf("ciphertext length %d, want %d", len(ct), len(plaintext)+enc.Overhead())
	}

	pt, err := enc.Decrypt(3, 12, ct)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("roundtrip gave %q", pt)
	}

	// AAD binds address and position.
	if _, err := enc.Decrypt(4, 12, ct); err != ErrDecryptionFailed {
		t.Errorf("wrong address err = %v", err)
	}
	if _, err := enc.Decrypt(3, 13, ct); err != ErrDecryptionFailed {
		t.Errorf("wrong position err = %v", err)
	}

	if _, err := NewAESGCMEncryptor(key[:16]); err == nil {
		t.Error("short key accepted")
	}
}
