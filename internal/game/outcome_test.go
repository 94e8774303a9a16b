package game

import (
	"errors"
	"math"
	"testing"
)

func testSeed(t *testing.T) Seed {
	t.Helper()
	seed, err := DeriveSeed([]byte("block-entropy"), "alice", 0, []byte("salt"))
	if err != nil {
		t.Fatalf("DeriveSeed() error = %v", err)
	}
	return seed
}

func TestStream_ZeroKeyVector(t *testing.T) {
	// First keystream word of ChaCha20 under an all-zero key and nonce.
	if got := NewStream(Seed{}).Uint64(); got != 10393729187455219830 {
		t.Errorf("Uint64() = %d, want 10393729187455219830", got)
	}
}

func TestGenerateOutcomes_KnownVector(t *testing.T) {
	got, err := GenerateOutcomes(testSeed(t), Range{Low: 1, High: 6}, 10)
	if err != nil {
		t.Fatalf("GenerateOutcomes() error = %v", err)
	}

	want := []int64{6, 2, 5, 1, 1, 5, 2, 4, 1, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GenerateOutcomes() = %v, want %v", got, want)
		}
	}

	single, _ := GenerateOutcome(testSeed(t), Range{Low: 1, High: 6})
	if single != got[0] {
		t.Errorf("GenerateOutcome() = %d, want first batch value %d", single, got[0])
	}
}

func TestGenerateOutcome_Deterministic(t *testing.T) {
	seed := testSeed(t)
	r := Range{Low: -50, High: 50}

	first, err := GenerateOutcome(seed, r)
	if err != nil {
		t.Fatalf("GenerateOutcome() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if again, _ := GenerateOutcome(seed, r); again != first {
			t.Fatalf("GenerateOutcome() = %d then %d for the same seed", first, again)
		}
	}
}

func TestGenerateOutcome_Ranges(t *testing.T) {
	seed := testSeed(t)

	tests := []struct {
		name    string
		r       Range
		wantErr error
	}{
		{name: "Six faces", r: Range{Low: 1, High: 6}},
		{name: "Single value", r: Range{Low: 4, High: 4}},
		{name: "Negative bounds", r: Range{Low: -10, High: -3}},
		{name: "Widest accepted", r: Range{Low: math.MinInt64, High: math.MaxInt64 - 1}},
		{name: "Inverted", r: Range{Low: 6, High: 1}, wantErr: ErrInvalidRange},
		{name: "Full int64 domain", r: Range{Low: math.MinInt64, High: math.MaxInt64}, wantErr: ErrRangeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateOutcome(seed, tt.r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GenerateOutcome() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateOutcome() error = %v", err)
			}
			if !tt.r.Contains(got) {
				t.Errorf("GenerateOutcome() = %d, outside [%d, %d]", got, tt.r.Low, tt.r.High)
			}
		})
	}
}

func TestGenerateOutcomes_NegativeCount(t *testing.T) {
	if _, err := GenerateOutcomes(testSeed(t), Range{Low: 1, High: 6}, -1); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("GenerateOutcomes(-1) error = %v, want %v", err, ErrInvalidRange)
	}
}

func chiSquare(counts map[int64]int, r Range, n int) float64 {
	expected := float64(n) / float64(r.Size())
	var sum float64
	for v := r.Low; v <= r.High; v++ {
		d := float64(counts[v]) - expected
		sum += d * d / expected
	}
	return sum
}

func TestGenerateOutcomes_Uniform(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping distribution test in short mode")
	}

	const draws = 100000

	// Critical values at p = 0.001.
	tests := []struct {
		name     string
		r        Range
		critical float64
	}{
		{name: "Six faces", r: Range{Low: 1, High: 6}, critical: 20.52},
		{name: "Ten faces", r: Range{Low: 1, High: 10}, critical: 27.88},
		{name: "Hundred faces", r: Range{Low: 0, High: 99}, critical: 148.23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := GenerateOutcomes(testSeed(t), tt.r, draws)
			if err != nil {
				t.Fatalf("GenerateOutcomes() error = %v", err)
			}

			counts := make(map[int64]int, tt.r.Size())
			for _, v := range values {
				if !tt.r.Contains(v) {
					t.Fatalf("value %d outside [%d, %d]", v, tt.r.Low, tt.r.High)
				}
				counts[v]++
			}
			for v := tt.r.Low; v <= tt.r.High; v++ {
				if counts[v] == 0 {
					t.Fatalf("value %d never drawn", v)
				}
			}

			if chi := chiSquare(counts, tt.r, draws); chi > tt.critical {
				t.Errorf("chi-square = %.2f, want <= %.2f", chi, tt.critical)
			}
		})
	}
}

func TestGenerateOutcomes_NoModuloBias(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping distribution test in short mode")
	}

	const draws = 100000
	r := Range{Low: 0, High: 99}

	// byte % 100 favours 0..55, which 256 covers three times, over 56..99.
	naive := make(map[int64]int, 100)
	buf := make([]byte, draws)
	NewStream(testSeed(t)).Read(buf)
	for _, b := range buf {
		naive[int64(b)%100]++
	}

	sampled := make(map[int64]int, 100)
	values, _ := GenerateOutcomes(testSeed(t), r, draws)
	for _, v := range values {
		sampled[v]++
	}

	naiveChi := chiSquare(naive, r, draws)
	sampledChi := chiSquare(sampled, r, draws)

	if naiveChi < 1000 {
		t.Errorf("naive baseline chi-square = %.2f, expected a visible bias", naiveChi)
	}
	if sampledChi >= naiveChi/10 {
		t.Errorf("rejection sampling chi-square = %.2f, not clearly below naive %.2f", sampledChi, naiveChi)
	}
}

func TestStream_ReadAcrossBlocks(t *testing.T) {
	a := make([]byte, 200)
	NewStream(testSeed(t)).Read(a)

	s := NewStream(testSeed(t))
	b := make([]byte, 0, 200)
	for _, n := range []int{3, 61, 64, 1, 71} {
		chunk := make([]byte, n)
		s.Read(chunk)
		b = append(b, chunk...)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("byte %d differs between one read and chunked reads", i)
		}
	}
}
