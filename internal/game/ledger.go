package game

import "math/big"

// Bet is the player's guess: a single value when Low == High, otherwise a
// contiguous range that wins when the outcome falls inside it.
type Bet struct {
	Low  int64 `json:"low"`
	High int64 `json:"high"`
}

// Exact returns a single-number bet.
func Exact(guess int64) Bet {
	return Bet{Low: guess, High: guess}
}

func (b Bet) IsRange() bool { return b.High != b.Low }

// Width is the number of winning outcomes. Only meaningful for a bet that
// passed validation against the die.
func (b Bet) Width() uint64 {
	return uint64(b.High) - uint64(b.Low) + 1
}

func (b Bet) Covers(outcome int64) bool {
	return outcome >= b.Low && outcome <= b.High
}

// validateAgainst checks that the bet sits on the die and, for ranges, does
// not cover every face.
func (b Bet) validateAgainst(die Range) error {
	if b.Low > b.High {
		return Errorf(CodeInvalidRange, "guess range [%d, %d] is inverted", b.Low, b.High)
	}
	if !die.Contains(b.Low) || !die.Contains(b.High) {
		return Errorf(CodeInvalidRange, "guess [%d, %d] is outside the die [%d, %d]", b.Low, b.High, die.Low, die.High)
	}
	if b.Width() >= die.Size() {
		return Errorf(CodeInvalidRange, "guess [%d, %d] covers every face", b.Low, b.High)
	}
	return nil
}

// Settlement is the outcome of settling one wager.
type Settlement struct {
	Won    bool   `json:"won"`
	Payout Amount `json:"payout"`
}

// CheckStake enforces MinBet <= stake <= MaxBet.
func CheckStake(stake Amount, cfg Config) error {
	if stake.Cmp(cfg.MinBet) < 0 || stake.Cmp(cfg.MaxBet) > 0 {
		return WithMetadata(CodeBetOutOfBounds, "stake "+stake.String()+" is outside ["+cfg.MinBet.String()+", "+cfg.MaxBet.String()+"]",
			map[string]string{"stake": stake.String(), "min_bet": cfg.MinBet.String(), "max_bet": cfg.MaxBet.String()})
	}
	return nil
}

// Payout returns floor(stake * num / (den * width)). For a single-number
// bet this is floor(stake * num / den).
func Payout(stake Amount, bet Bet, m Ratio) (Amount, error) {
	if m.Den == 0 {
		return Amount{}, Errorf(CodeInvalidConfig, "payout denominator is zero")
	}
	num := new(big.Int).SetUint64(m.Num)
	den := new(big.Int).Mul(new(big.Int).SetUint64(m.Den), new(big.Int).SetUint64(bet.Width()))
	return stake.MulRatFloor(num, den)
}

// Settle decides the wager and moves the house balance. On a win the payout
// is debited from *house; on a loss the stake (already held by the contract)
// is credited. *house is written only when Settle returns nil, so a
// rejected wager leaves it untouched.
func Settle(stake Amount, bet Bet, outcome int64, cfg Config, house *Amount) (Settlement, error) {
	if err := CheckStake(stake, cfg); err != nil {
		return Settlement{}, err
	}
	if err := bet.validateAgainst(cfg.Die); err != nil {
		return Settlement{}, err
	}

	if !bet.Covers(outcome) {
		next, err := house.Add(stake)
		if err != nil {
			return Settlement{}, err
		}
		*house = next
		return Settlement{Won: false, Payout: ZeroAmount}, nil
	}

	payout, err := Payout(stake, bet, cfg.Multiplier)
	if err != nil {
		return Settlement{}, err
	}
	if payout.Cmp(*house) > 0 {
		return Settlement{}, WithMetadata(CodeInsufficientHouseFunds, "payout "+payout.String()+" exceeds house balance "+house.String(),
			map[string]string{"payout": payout.String(), "house_balance": house.String()})
	}
	next, err := house.Sub(payout)
	if err != nil {
		return Settlement{}, err
	}
	*house = next
	return Settlement{Won: true, Payout: payout}, nil
}

// Deposit credits amount to the house balance.
func Deposit(house *Amount, amount Amount) error {
	if amount.IsZero() {
		return Errorf(CodeInvalidFunds, "deposit amount is zero")
	}
	next, err := house.Add(amount)
	if err != nil {
		return err
	}
	*house = next
	return nil
}

// Withdraw debits amount from the house balance.
func Withdraw(house *Amount, amount Amount) error {
	if amount.IsZero() {
		return Errorf(CodeInvalidFunds, "withdraw amount is zero")
	}
	if amount.Cmp(*house) > 0 {
		return WithMetadata(CodeInsufficientHouseFunds, "withdraw "+amount.String()+" exceeds house balance "+house.String(),
			map[string]string{"amount": amount.String(), "house_balance": house.String()})
	}
	next, err := house.Sub(amount)
	if err != nil {
		return err
	}
	*house = next
	return nil
}
