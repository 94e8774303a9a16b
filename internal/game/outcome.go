package game

import (
	"encoding/binary"
	"math"
	"math/bits"

	"golang.org/x/crypto/chacha20"
)

// Range is a closed interval [Low, High] of outcome values.
type Range struct {
	Low  int64 `json:"low"`
	High int64 `json:"high"`
}

// Validate checks the range is ordered and that its size fits the 64-bit
// generator word.
func (r Range) Validate() error {
	if r.Low > r.High {
		return Errorf(CodeInvalidRange, "low %d is greater than high %d", r.Low, r.High)
	}
	if r.span() == math.MaxUint64 {
		return Errorf(CodeRangeTooLarge, "range [%d, %d] exceeds the 64-bit generator width", r.Low, r.High)
	}
	return nil
}

// Size returns High-Low+1. Only meaningful for a validated range.
func (r Range) Size() uint64 {
	return r.span() + 1
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v int64) bool {
	return v >= r.Low && v <= r.High
}

func (r Range) span() uint64 {
	return uint64(r.High) - uint64(r.Low)
}

// Stream is a deterministic byte stream: the ChaCha20 keystream keyed by a
// seed with an all-zero nonce.
type Stream struct {
	cipher *chacha20.Cipher
	buf    [64]byte
	pos    int
}

// NewStream seeds a stream. The same seed always yields the same bytes.
func NewStream(seed Seed) *Stream {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// Key and nonce sizes are fixed by the types above.
		panic(err)
	}
	s := &Stream{cipher: c}
	s.refill()
	return s
}

func (s *Stream) refill() {
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.cipher.XORKeyStream(s.buf[:], s.buf[:])
	s.pos = 0
}

// Read fills p from the keystream. It never fails.
func (s *Stream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if s.pos == len(s.buf) {
			s.refill()
		}
		c := copy(p[n:], s.buf[s.pos:])
		s.pos += c
		n += c
	}
	return n, nil
}

// Uint64 returns the next 8 keystream bytes as a little-endian word.
func (s *Stream) Uint64() uint64 {
	var b [8]byte
	s.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Intn draws a uniform value in r by rejection sampling: each draw is
// masked to the bit width of High-Low and redrawn while it falls past the
// span, so no value is favoured the way stream%size would favour some.
func (s *Stream) Intn(r Range) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	span := r.span()
	if span == 0 {
		return r.Low, nil
	}
	mask := uint64(math.MaxUint64) >> (64 - bits.Len64(span))
	for {
		v := s.Uint64() & mask
		if v <= span {
			return int64(uint64(r.Low) + v), nil
		}
	}
}

// GenerateOutcome expands seed into one uniform value in r.
func GenerateOutcome(seed Seed, r Range) (int64, error) {
	return NewStream(seed).Intn(r)
}

// GenerateOutcomes expands seed into n values in r drawn from one
// continuing stream; GenerateOutcomes(seed, r, 1)[0] equals
// GenerateOutcome(seed, r).
func GenerateOutcomes(seed Seed, r Range, n int) ([]int64, error) {
	if n < 0 {
		return nil, Errorf(CodeInvalidRange, "outcome count %d is negative", n)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	stream := NewStream(seed)
	out := make([]int64, n)
	for i := range out {
		v, err := stream.Intn(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
