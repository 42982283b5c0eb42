package oram

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Encryptor encrypts block values at rest. The ORAM itself assumes the
// enclave encrypts memory and stores plaintext; an Encryptor is for
// deployments where the bucket array lives outside the enclave
// boundary. A block's address and position stay in the clear, since
// the eviction algorithm needs them, and are bound to the ciphertext
// as additional authenticated data.
type Encryptor interface {
	// Encrypt encrypts a block value. The ciphertext includes nonce
	// and authentication tag.
	Encrypt(address Address, position TreeIndex, plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt for the same (address, position) pair.
	Decrypt(address Address, position TreeIndex, ciphertext []byte) ([]byte, error)

	// Overhead returns the number of extra bytes added by encryption.
	Overhead() int
}

// NoOpEncryptor passes values through unchanged. Use for testing or
// when memory encryption is handled by the enclave.
type NoOpEncryptor struct{}

func (NoOpEncryptor) Encrypt(address Address, position TreeIndex, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	copy(out, plaintext)
	return out, nil
}

func (NoOpEncryptor) Decrypt(address Address, position TreeIndex, ciphertext []byte) ([]byte, error) {
	out := make([]byte, len(ciphertext))
	copy(out, ciphertext)
	return out, nil
}

func (NoOpEncryptor) Overhead() int { return 0 }

// AESGCMEncryptor provides AES-256-GCM encryption with random nonces.
type AESGCMEncryptor struct {
	aead cipher.AEAD
}

const (
	aesKeySize   = 32 // AES-256
	aesNonceSize = 12 // standard GCM nonce size
)

// NewAESGCMEncryptor creates an encryptor from a 32-byte key.
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", aesKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &AESGCMEncryptor{aead: aead}, nil
}

// NewAESGCMEncryptorFromPassword derives the encryption key from
// password with PBKDF2.
func NewAESGCMEncryptorFromPassword(password string) (*AESGCMEncryptor, error) {
	key := pbkdf2.Key([]byte(password), []byte("0af6cc1f71da2277"), 4096, aesKeySize, sha256.New)
	return NewAESGCMEncryptor(key)
}

// Encrypt encrypts plaintext with a random nonce.
// Output format: nonce (12 bytes) || ciphertext || tag (16 bytes).
func (e *AESGCMEncryptor) Encrypt(address Address, position TreeIndex, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aesNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrEncryptionFailed
	}
	ciphertext := e.aead.Seal(nonce, nonce, plaintext, makeAAD(address, position))
	return ciphertext, nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func (e *AESGCMEncryptor) Decrypt(address Address, position TreeIndex, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aesNonceSize+e.aead.Overhead() {
		return nil, ErrDecryptionFailed
	}
	nonce := ciphertext[:aesNonceSize]
	ct := ciphertext[aesNonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ct, makeAAD(address, position))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Overhead returns nonce size + GCM tag size.
func (e *AESGCMEncryptor) Overhead() int {
	return aesNonceSize + e.aead.Overhead()
}

func makeAAD(address Address, position TreeIndex) []byte {
	aad := make([]byte, 16)
	binary.LittleEndian.PutUint64(aad[0:8], address)
	binary.LittleEndian.PutUint64(aad[8:16], position)
	return aad
}

// encryptedStorage wraps a Storage so every real block value is
// stored encrypted; dummy values are stored as zero padding.
type encryptedStorage struct {
	base Storage
	enc  Encryptor
}

// WithEncryption wraps base so that real block values pass through
// enc before being stored. base must be sized to hold ciphertexts: its
// block size is the plaintext size plus enc.Overhead().
func WithEncryption(base Storage, enc Encryptor) Storage {
	return &encryptedStorage{base: base, enc: enc}
}

// Dummy blocks are stored as zero padding rather than ciphertext.
// Their addresses are in the clear either way, so this reveals nothing
// the sentinel does not.

func (s *encryptedStorage) ReadBucket(idx TreeIndex) ([]Block, error) {
	bucket, err := s.base.ReadBucket(idx)
	if err != nil {
		return nil, err
	}
	for i := range bucket {
		if bucket[i].isDummy() {
			bucket[i].Value = make([]byte, s.BlockSize())
			continue
		}
		plaintext, err := s.enc.Decrypt(bucket[i].Address, bucket[i].Position, bucket[i].Value)
		if err != nil {
			return nil, err
		}
		bucket[i].Value = plaintext
	}
	return bucket, nil
}

func (s *encryptedStorage) WriteBucket(idx TreeIndex, bucket []Block) error {
	out := make([]Block, len(bucket))
	for i := range bucket {
		if bucket[i].isDummy() {
			out[i] = Block{Address: bucket[i].Address, Position: bucket[i].Position,
				Value: make([]byte, s.base.BlockSize())}
			continue
		}
		ciphertext, err := s.enc.Encrypt(bucket[i].Address, bucket[i].Position, bucket[i].Value)
		if err != nil {
			return err
		}
		out[i] = Block{Address: bucket[i].Address, Position: bucket[i].Position, Value: ciphertext}
	}
	return s.base.WriteBucket(idx, out)
}

func (s *encryptedStorage) Capacity() Address { return s.base.Capacity() }
func (s *encryptedStorage) BucketSize() int   { return s.base.BucketSize() }

// BlockSize returns the plaintext block size.
func (s *encryptedStorage) BlockSize() int {
	return s.base.BlockSize() - s.enc.Overhead()
}
