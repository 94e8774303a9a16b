package game

import "math"

// Phase is the lifecycle position of a round.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEntropyDerived
	PhaseOutcomeComputed
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEntropyDerived:
		return "entropy_derived"
	case PhaseOutcomeComputed:
		return "outcome_computed"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// State is the persisted contract state. It is passed by pointer into every
// operation; nothing else holds it.
type State struct {
	Config       Config `json:"config"`
	HouseBalance Amount `json:"house_balance"`
	RoundNonce   uint64 `json:"round_nonce"`
}

// NewState returns the state of a freshly instantiated contract.
func NewState(cfg Config) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &State{Config: cfg}, nil
}

// PlayRequest is one wager as submitted by the player.
type PlayRequest struct {
	Player string
	Stake  Amount
	Bet    Bet
	Salt   []byte
}

// RoundResult is what a settled round reports back to the caller.
type RoundResult struct {
	RoundID uint64 `json:"round_id"`
	Player  string `json:"player"`
	Stake   Amount `json:"stake"`
	Bet     Bet    `json:"bet"`
	Seed    Seed   `json:"seed"`
	Outcome int64  `json:"outcome"`
	Won     bool   `json:"won"`
	Payout  Amount `json:"payout"`
}

// Round is the ephemeral record of one wager as it moves through its
// phases. It never outlives the transaction that created it.
type Round struct {
	ID      uint64
	Nonce   uint64
	Player  string
	Stake   Amount
	Bet     Bet
	Salt    []byte
	Seed    Seed
	Outcome int64
	Result  Settlement
	House   Amount
	phase   Phase
}

func (r *Round) Phase() Phase { return r.phase }

func (r *Round) expect(p Phase) error {
	if r.phase != p {
		return Errorf(CodeInvalidPhase, "round %d is %s, expected %s", r.ID, r.phase, p)
	}
	return nil
}

// DeriveEntropy moves Idle -> EntropyDerived.
func (r *Round) DeriveEntropy(blockEntropy []byte) error {
	if err := r.expect(PhaseIdle); err != nil {
		return err
	}
	seed, err := DeriveSeed(blockEntropy, r.Player, r.Nonce, r.Salt)
	if err != nil {
		return err
	}
	r.Seed = seed
	r.phase = PhaseEntropyDerived
	return nil
}

// ComputeOutcome moves EntropyDerived -> OutcomeComputed.
func (r *Round) ComputeOutcome(die Range) error {
	if err := r.expect(PhaseEntropyDerived); err != nil {
		return err
	}
	outcome, err := GenerateOutcome(r.Seed, die)
	if err != nil {
		return err
	}
	r.Outcome = outcome
	r.phase = PhaseOutcomeComputed
	return nil
}

// Settle moves OutcomeComputed -> Settled against a working copy of the
// house balance held in r.House.
func (r *Round) Settle(cfg Config) error {
	if err := r.expect(PhaseOutcomeComputed); err != nil {
		return err
	}
	result, err := Settle(r.Stake, r.Bet, r.Outcome, cfg, &r.House)
	if err != nil {
		return err
	}
	r.Result = result
	r.phase = PhaseSettled
	return nil
}

// Play runs one wager to completion. Bounds are checked before any entropy
// is drawn; the house balance and nonce are written to state together, and
// only after every step has succeeded.
func Play(state *State, entropy EntropySource, req PlayRequest) (RoundResult, error) {
	cfg := state.Config
	if err := CheckStake(req.Stake, cfg); err != nil {
		return RoundResult{}, err
	}
	if err := req.Bet.validateAgainst(cfg.Die); err != nil {
		return RoundResult{}, err
	}
	if state.RoundNonce == math.MaxUint64 {
		return RoundResult{}, Errorf(CodeArithmeticOverflow, "round nonce exhausted")
	}

	round := &Round{
		ID:     state.RoundNonce + 1,
		Nonce:  state.RoundNonce,
		Player: req.Player,
		Stake:  req.Stake,
		Bet:    req.Bet,
		Salt:   req.Salt,
		House:  state.HouseBalance,
	}
	if err := round.DeriveEntropy(entropy()); err != nil {
		return RoundResult{}, err
	}
	if err := round.ComputeOutcome(cfg.Die); err != nil {
		return RoundResult{}, err
	}
	if err := round.Settle(cfg); err != nil {
		return RoundResult{}, err
	}

	state.HouseBalance = round.House
	state.RoundNonce = round.ID

	return RoundResult{
		RoundID: round.ID,
		Player:  round.Player,
		Stake:   round.Stake,
		Bet:     round.Bet,
		Seed:    round.Seed,
		Outcome: round.Outcome,
		Won:     round.Result.Won,
		Payout:  round.Result.Payout,
	}, nil
}

func requireAdmin(state *State, caller string) error {
	if caller == "" || caller != state.Config.Admin {
		return Errorf(CodeUnauthorized, "%q is not the admin", caller)
	}
	return nil
}

// AdminDeposit credits the house balance.
func AdminDeposit(state *State, caller string, amount Amount) error {
	if err := requireAdmin(state, caller); err != nil {
		return err
	}
	house := state.HouseBalance
	if err := Deposit(&house, amount); err != nil {
		return err
	}
	state.HouseBalance = house
	return nil
}

// AdminWithdraw debits the house balance.
func AdminWithdraw(state *State, caller string, amount Amount) error {
	if err := requireAdmin(state, caller); err != nil {
		return err
	}
	house := state.HouseBalance
	if err := Withdraw(&house, amount); err != nil {
		return err
	}
	state.HouseBalance = house
	return nil
}

// UpdateConfig replaces the admin-controlled parameters.
func UpdateConfig(state *State, caller string, next Config) error {
	if err := requireAdmin(state, caller); err != nil {
		return err
	}
	merged := state.Config.WithUpdate(next)
	if err := merged.Validate(); err != nil {
		return err
	}
	state.Config = merged
	return nil
}

// Verification is the recomputed seed and outcome of a past round.
type Verification struct {
	Seed    Seed  `json:"seed"`
	Outcome int64 `json:"outcome"`
}

// VerifyRound recomputes a round from its public inputs so anyone can check
// a reported outcome.
func VerifyRound(blockEntropy []byte, sender string, nonce uint64, salt []byte, die Range) (Verification, error) {
	seed, err := DeriveSeed(blockEntropy, sender, nonce, salt)
	if err != nil {
		return Verification{}, err
	}
	outcome, err := GenerateOutcome(seed, die)
	if err != nil {
		return Verification{}, err
	}
	return Verification{Seed: seed, Outcome: outcome}, nil
}
