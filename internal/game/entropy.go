package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

const (
	SeedSize           = 32
	MaxBlockEntropyLen = 1024
	MaxSenderLen       = 256
	MaxSaltLen         = 256
)

// Seed is the 256-bit output of the entropy mixer.
type Seed [SeedSize]byte

func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

func (s Seed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Seed) UnmarshalText(text []byte) error {
	parsed, err := ParseSeed(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeed decodes a hex-encoded seed.
func ParseSeed(s string) (Seed, error) {
	var seed Seed
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != SeedSize {
		return seed, Errorf(CodeInvalidEntropyInput, "seed must be %d hex-encoded bytes", SeedSize)
	}
	copy(seed[:], b)
	return seed, nil
}

// EntropySource is the host capability that hands out the block-level
// entropy of the current transaction.
type EntropySource func() []byte

// StaticEntropy returns a source that always yields b.
func StaticEntropy(b []byte) EntropySource {
	fixed := append([]byte(nil), b...)
	return func() []byte { return fixed }
}

// DeriveSeed mixes the round inputs into a seed:
//
//	sha256( u32be(len(block)) || block ||
//	        u32be(len(sender)) || sender ||
//	        u64be(nonce) ||
//	        u32be(len(salt)) || salt )
//
// Variable fields are length-prefixed and the nonce is fixed-width so no two
// distinct input tuples share an encoding.
func DeriveSeed(blockEntropy []byte, sender string, nonce uint64, salt []byte) (Seed, error) {
	switch {
	case len(blockEntropy) == 0:
		return Seed{}, Errorf(CodeInvalidEntropyInput, "block entropy is empty")
	case len(blockEntropy) > MaxBlockEntropyLen:
		return Seed{}, Errorf(CodeInvalidEntropyInput, "block entropy is %d bytes, max %d", len(blockEntropy), MaxBlockEntropyLen)
	case sender == "":
		return Seed{}, Errorf(CodeInvalidEntropyInput, "sender is empty")
	case len(sender) > MaxSenderLen:
		return Seed{}, Errorf(CodeInvalidEntropyInput, "sender is %d bytes, max %d", len(sender), MaxSenderLen)
	case len(salt) > MaxSaltLen:
		return Seed{}, Errorf(CodeInvalidEntropyInput, "salt is %d bytes, max %d", len(salt), MaxSaltLen)
	}

	h := sha256.New()
	writeField(h, blockEntropy)
	writeField(h, []byte(sender))
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])
	writeField(h, salt)

	var seed Seed
	copy(seed[:], h.Sum(nil))
	return seed, nil
}

func writeField(h interface{ Write([]byte) (int, error) }, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	h.Write(l[:])
	h.Write(b)
}
