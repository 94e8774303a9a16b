package game

import (
	"bytes"
	"fmt"
	"math"
	"math/big"

	"lukechampine.com/uint128"
)

// Amount is an unsigned 128-bit quantity of currency units. All arithmetic
// on it is checked and fails closed with ErrArithmeticOverflow.
type Amount struct {
	v uint128.Uint128
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

// MaxAmount is the largest representable amount (2^128 - 1).
var MaxAmount = Amount{v: uint128.New(math.MaxUint64, math.MaxUint64)}

// NewAmount returns an amount holding v.
func NewAmount(v uint64) Amount {
	return Amount{v: uint128.From64(v)}
}

// ParseAmount parses a base-10 unsigned integer that fits in 128 bits.
func ParseAmount(s string) (Amount, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok || i.Sign() < 0 {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return amountFromBig(i)
}

// MustParseAmount is ParseAmount for constants; it panics on bad input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func amountFromBig(i *big.Int) (Amount, error) {
	if i.Sign() < 0 || i.BitLen() > 128 {
		return Amount{}, Errorf(CodeArithmeticOverflow, "value %s does not fit in 128 bits", i)
	}
	return Amount{v: uint128.FromBig(i)}, nil
}

func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(b.v) }

func (a Amount) Equal(b Amount) bool { return a.v.Cmp(b.v) == 0 }

func (a Amount) String() string { return a.v.String() }

// Big returns a fresh big.Int copy of a.
func (a Amount) Big() *big.Int { return a.v.Big() }

// Add returns a+b or ErrArithmeticOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a.v.AddWrap(b.v)
	if sum.Cmp(a.v) < 0 {
		return Amount{}, Errorf(CodeArithmeticOverflow, "%s + %s overflows 128 bits", a, b)
	}
	return Amount{v: sum}, nil
}

// Sub returns a-b or ErrArithmeticOverflow on underflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.v.Cmp(b.v) < 0 {
		return Amount{}, Errorf(CodeArithmeticOverflow, "%s - %s underflows", a, b)
	}
	return Amount{v: a.v.SubWrap(b.v)}, nil
}

// MulRatFloor returns floor(a * num / den) computed without intermediate
// truncation. den must be non-zero.
func (a Amount) MulRatFloor(num, den *big.Int) (Amount, error) {
	if den.Sign() <= 0 || num.Sign() < 0 {
		return Amount{}, Errorf(CodeArithmeticOverflow, "invalid ratio %s/%s", num, den)
	}
	product := new(big.Int).Mul(a.Big(), num)
	return amountFromBig(product.Quo(product, den))
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a decimal string so values above 2^53
// survive JavaScript clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("amount must not be null")
	}
	return a.UnmarshalText(bytes.Trim(data, `"`))
}
