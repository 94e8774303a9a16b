package game

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

const DefaultDenom = "udice"

// DefaultDie is the six-sided die used when no range is configured.
var DefaultDie = Range{Low: 1, High: 6}

// Ratio is a payout multiplier kept as an integer fraction.
type Ratio struct {
	Num uint64 `json:"numerator"`
	Den uint64 `json:"denominator"`
}

func (r Ratio) String() string {
	return strconv.FormatUint(r.Num, 10) + "/" + strconv.FormatUint(r.Den, 10)
}

// Decimal renders the ratio for display. Payouts never go through it.
func (r Ratio) Decimal() decimal.Decimal {
	if r.Den == 0 {
		return decimal.Zero
	}
	num := decimal.NewFromBigInt(new(big.Int).SetUint64(r.Num), 0)
	den := decimal.NewFromBigInt(new(big.Int).SetUint64(r.Den), 0)
	return num.DivRound(den, 8)
}

// Config holds the admin-controlled parameters of the game.
type Config struct {
	MinBet       Amount `json:"min_bet"`
	MaxBet       Amount `json:"max_bet"`
	Multiplier   Ratio  `json:"payout_multiplier"`
	HouseAddress string `json:"house_address"`
	Admin        string `json:"admin_address"`
	Denom        string `json:"denom"`
	Die          Range  `json:"die"`
}

// Validate enforces the config invariants: ordered bet bounds, a
// multiplier above one, and a positive house edge over the die.
func (c Config) Validate() error {
	switch {
	case c.Admin == "":
		return Errorf(CodeInvalidConfig, "admin address is empty")
	case c.HouseAddress == "":
		return Errorf(CodeInvalidConfig, "house address is empty")
	case c.Denom == "":
		return Errorf(CodeInvalidConfig, "denom is empty")
	case c.MinBet.IsZero():
		return Errorf(CodeInvalidConfig, "min bet must be at least 1")
	case c.MinBet.Cmp(c.MaxBet) > 0:
		return Errorf(CodeInvalidConfig, "min bet %s exceeds max bet %s", c.MinBet, c.MaxBet)
	case c.Multiplier.Den == 0:
		return Errorf(CodeInvalidConfig, "payout denominator is zero")
	case c.Multiplier.Num <= c.Multiplier.Den:
		return Errorf(CodeInvalidConfig, "payout multiplier %s must exceed 1", c.Multiplier)
	}
	if err := c.Die.Validate(); err != nil {
		return Wrap(CodeInvalidConfig, "die range: "+err.Error(), err)
	}
	if c.Die.Size() < 2 {
		return Errorf(CodeInvalidConfig, "die range [%d, %d] has a single face", c.Die.Low, c.Die.High)
	}

	// num/den < size, i.e. the expected return of any bet is below 1.
	lhs := new(big.Int).SetUint64(c.Multiplier.Num)
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(c.Multiplier.Den), new(big.Int).SetUint64(c.Die.Size()))
	if lhs.Cmp(rhs) >= 0 {
		return Errorf(CodeInvalidConfig, "payout multiplier %s leaves no house edge on a %d-face die", c.Multiplier, c.Die.Size())
	}
	return nil
}

// HouseEdge is 1 - num/(den*size), the expected house take per unit staked.
func (c Config) HouseEdge() decimal.Decimal {
	if c.Multiplier.Den == 0 || c.Die.Validate() != nil {
		return decimal.Zero
	}
	num := decimal.NewFromBigInt(new(big.Int).SetUint64(c.Multiplier.Num), 0)
	den := decimal.NewFromBigInt(new(big.Int).Mul(
		new(big.Int).SetUint64(c.Multiplier.Den),
		new(big.Int).SetUint64(c.Die.Size()),
	), 0)
	return decimal.NewFromInt(1).Sub(num.DivRound(den, 8))
}

// WithUpdate returns c with the admin-updatable fields taken from next.
// Denom and house address never change after instantiation.
func (c Config) WithUpdate(next Config) Config {
	next.Denom = c.Denom
	next.HouseAddress = c.HouseAddress
	return next
}
