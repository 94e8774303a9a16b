package game

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"
)

var scenarioBlock = []byte("scenario-block")

type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func scenarioState(t fataler, house uint64) *State {
	t.Helper()
	state, err := NewState(validConfig())
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	state.HouseBalance = NewAmount(house)
	return state
}

// Salts below were picked so that scenarioBlock, sender "player" and nonce 0
// roll 3 ("salt-13") and 7 ("salt-2") on the 1..10 die.
func TestPlay_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		house       uint64
		salt        string
		wantOutcome int64
		wantWon     bool
		wantPayout  uint64
		wantHouse   uint64
		wantNonce   uint64
		wantErr     error
	}{
		{name: "Forced win", house: 1000, salt: "salt-13", wantOutcome: 3, wantWon: true, wantPayout: 100, wantHouse: 900, wantNonce: 1},
		{name: "Forced loss", house: 1000, salt: "salt-2", wantOutcome: 7, wantHouse: 1050, wantNonce: 1},
		{name: "House cannot cover", house: 10, salt: "salt-13", wantHouse: 10, wantNonce: 0, wantErr: ErrInsufficientHouseFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := scenarioState(t, tt.house)

			res, err := Play(state, StaticEntropy(scenarioBlock), PlayRequest{
				Player: "player",
				Stake:  NewAmount(50),
				Bet:    Exact(3),
				Salt:   []byte(tt.salt),
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Play() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Play() error = %v", err)
			}

			if !state.HouseBalance.Equal(NewAmount(tt.wantHouse)) {
				t.Errorf("HouseBalance = %s, want %d", state.HouseBalance, tt.wantHouse)
			}
			if state.RoundNonce != tt.wantNonce {
				t.Errorf("RoundNonce = %d, want %d", state.RoundNonce, tt.wantNonce)
			}
			if tt.wantErr != nil {
				return
			}

			if res.RoundID != 1 {
				t.Errorf("RoundID = %d, want 1", res.RoundID)
			}
			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %d, want %d", res.Outcome, tt.wantOutcome)
			}
			if res.Won != tt.wantWon {
				t.Errorf("Won = %v, want %v", res.Won, tt.wantWon)
			}
			if !res.Payout.Equal(NewAmount(tt.wantPayout)) {
				t.Errorf("Payout = %s, want %d", res.Payout, tt.wantPayout)
			}
		})
	}
}

func TestPlay_SecondRoundUsesNextNonce(t *testing.T) {
	state := scenarioState(t, 1000)
	req := PlayRequest{Player: "player", Stake: NewAmount(50), Bet: Exact(3), Salt: []byte("salt-2")}

	if _, err := Play(state, StaticEntropy(scenarioBlock), req); err != nil {
		t.Fatalf("first Play() error = %v", err)
	}

	// "salt-5" rolls 3 at nonce 1.
	req.Salt = []byte("salt-5")
	res, err := Play(state, StaticEntropy(scenarioBlock), req)
	if err != nil {
		t.Fatalf("second Play() error = %v", err)
	}
	if res.RoundID != 2 || res.Outcome != 3 || !res.Won {
		t.Errorf("second round = %+v, want round 2 winning on 3", res)
	}
	if !state.HouseBalance.Equal(NewAmount(950)) {
		t.Errorf("HouseBalance = %s, want 950", state.HouseBalance)
	}
}

func TestPlay_RejectionsLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		req     PlayRequest
		entropy EntropySource
		wantErr error
	}{
		{
			name:    "Stake below min",
			req:     PlayRequest{Player: "player", Stake: ZeroAmount, Bet: Exact(3)},
			entropy: StaticEntropy(scenarioBlock),
			wantErr: ErrBetOutOfBounds,
		},
		{
			name:    "Stake above max",
			req:     PlayRequest{Player: "player", Stake: NewAmount(101), Bet: Exact(3)},
			entropy: StaticEntropy(scenarioBlock),
			wantErr: ErrBetOutOfBounds,
		},
		{
			name:    "Guess off the die",
			req:     PlayRequest{Player: "player", Stake: NewAmount(10), Bet: Exact(0)},
			entropy: StaticEntropy(scenarioBlock),
			wantErr: ErrInvalidRange,
		},
		{
			name:    "Missing block entropy",
			req:     PlayRequest{Player: "player", Stake: NewAmount(10), Bet: Exact(3)},
			entropy: StaticEntropy(nil),
			wantErr: ErrInvalidEntropyInput,
		},
		{
			name:    "Missing player",
			req:     PlayRequest{Stake: NewAmount(10), Bet: Exact(3)},
			entropy: StaticEntropy(scenarioBlock),
			wantErr: ErrInvalidEntropyInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := scenarioState(t, 1000)
			before := *state

			if _, err := Play(state, tt.entropy, tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Play() error = %v, want %v", err, tt.wantErr)
			}
			if *state != before {
				t.Errorf("state changed to %+v, want %+v", *state, before)
			}
		})
	}
}

func TestPlay_NonceExhausted(t *testing.T) {
	state := scenarioState(t, 1000)
	state.RoundNonce = math.MaxUint64

	_, err := Play(state, StaticEntropy(scenarioBlock), PlayRequest{Player: "player", Stake: NewAmount(10), Bet: Exact(3)})
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("Play() error = %v, want %v", err, ErrArithmeticOverflow)
	}
	if !state.HouseBalance.Equal(NewAmount(1000)) {
		t.Errorf("HouseBalance = %s, want 1000", state.HouseBalance)
	}
}

func TestRound_PhaseOrder(t *testing.T) {
	r := &Round{ID: 1, Player: "player", Stake: NewAmount(10), Bet: Exact(3)}

	if err := r.ComputeOutcome(Range{Low: 1, High: 10}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("ComputeOutcome() from idle error = %v, want %v", err, ErrInvalidPhase)
	}
	if err := r.Settle(validConfig()); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Settle() from idle error = %v, want %v", err, ErrInvalidPhase)
	}

	steps := []struct {
		run  func() error
		want Phase
	}{
		{run: func() error { return r.DeriveEntropy(scenarioBlock) }, want: PhaseEntropyDerived},
		{run: func() error { return r.ComputeOutcome(Range{Low: 1, High: 10}) }, want: PhaseOutcomeComputed},
		{run: func() error { return r.Settle(validConfig()) }, want: PhaseSettled},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("step to %s error = %v", step.want, err)
		}
		if r.Phase() != step.want {
			t.Fatalf("Phase() = %s, want %s", r.Phase(), step.want)
		}
	}

	if err := r.DeriveEntropy(scenarioBlock); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("DeriveEntropy() after settle error = %v, want %v", err, ErrInvalidPhase)
	}
}

func TestVerifyRound_MatchesPlay(t *testing.T) {
	state := scenarioState(t, 1000)
	req := PlayRequest{Player: "player", Stake: NewAmount(25), Bet: Bet{Low: 2, High: 4}, Salt: []byte("verify-me")}

	res, err := Play(state, StaticEntropy(scenarioBlock), req)
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	v, err := VerifyRound(scenarioBlock, "player", res.RoundID-1, req.Salt, state.Config.Die)
	if err != nil {
		t.Fatalf("VerifyRound() error = %v", err)
	}
	if v.Seed != res.Seed || v.Outcome != res.Outcome {
		t.Errorf("VerifyRound() = %+v, want seed %s outcome %d", v, res.Seed, res.Outcome)
	}
}

func TestAdminOperations(t *testing.T) {
	t.Run("Deposit and withdraw", func(t *testing.T) {
		state := scenarioState(t, 0)
		if err := AdminDeposit(state, "admin", NewAmount(500)); err != nil {
			t.Fatalf("AdminDeposit() error = %v", err)
		}
		if err := AdminWithdraw(state, "admin", NewAmount(200)); err != nil {
			t.Fatalf("AdminWithdraw() error = %v", err)
		}
		if !state.HouseBalance.Equal(NewAmount(300)) {
			t.Errorf("HouseBalance = %s, want 300", state.HouseBalance)
		}
	})

	t.Run("Non-admin rejected", func(t *testing.T) {
		state := scenarioState(t, 100)
		if err := AdminDeposit(state, "mallory", NewAmount(1)); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("AdminDeposit() error = %v, want %v", err, ErrUnauthorized)
		}
		if err := AdminWithdraw(state, "mallory", NewAmount(1)); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("AdminWithdraw() error = %v, want %v", err, ErrUnauthorized)
		}
		if err := UpdateConfig(state, "", validConfig()); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("UpdateConfig() error = %v, want %v", err, ErrUnauthorized)
		}
		if !state.HouseBalance.Equal(NewAmount(100)) {
			t.Errorf("HouseBalance = %s, want 100", state.HouseBalance)
		}
	})

	t.Run("Update config", func(t *testing.T) {
		state := scenarioState(t, 0)
		next := validConfig()
		next.MaxBet = NewAmount(1000)
		next.Denom = "uother"

		if err := UpdateConfig(state, "admin", next); err != nil {
			t.Fatalf("UpdateConfig() error = %v", err)
		}
		if !state.Config.MaxBet.Equal(NewAmount(1000)) || state.Config.Denom != DefaultDenom {
			t.Errorf("Config = %+v", state.Config)
		}

		bad := validConfig()
		bad.Multiplier = Ratio{Num: 1, Den: 1}
		if err := UpdateConfig(state, "admin", bad); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("UpdateConfig(bad) error = %v, want %v", err, ErrInvalidConfig)
		}
		if state.Config.Multiplier != (Ratio{Num: 2, Den: 1}) {
			t.Errorf("rejected update changed multiplier to %s", state.Config.Multiplier)
		}
	})
}

func TestPlay_Conservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Uint64Range(0, 5000).Draw(t, "house")
		state := scenarioState(t, initial)
		block := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "block")

		var lost, paid, played uint64
		rounds := rapid.IntRange(1, 40).Draw(t, "rounds")
		for i := 0; i < rounds; i++ {
			low := rapid.Int64Range(0, 11).Draw(t, "low")
			high := rapid.Int64Range(low, 11).Draw(t, "high")
			req := PlayRequest{
				Player: "player",
				Stake:  NewAmount(rapid.Uint64Range(0, 120).Draw(t, "stake")),
				Bet:    Bet{Low: low, High: high},
				Salt:   rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(t, "salt"),
			}

			before := *state
			res, err := Play(state, StaticEntropy(block), req)
			if err != nil {
				if *state != before {
					t.Fatalf("failed play (%v) mutated state", err)
				}
				continue
			}

			played++
			if state.RoundNonce != before.RoundNonce+1 || res.RoundID != state.RoundNonce {
				t.Fatalf("nonce %d -> %d with round id %d", before.RoundNonce, state.RoundNonce, res.RoundID)
			}
			if res.Won {
				paid += res.Payout.Big().Uint64()
			} else {
				lost += res.Stake.Big().Uint64()
			}
		}

		if state.RoundNonce != played {
			t.Fatalf("RoundNonce = %d after %d settled rounds", state.RoundNonce, played)
		}
		want := NewAmount(initial + lost - paid)
		if !state.HouseBalance.Equal(want) {
			t.Fatalf("HouseBalance = %s, want initial %d + lost %d - paid %d", state.HouseBalance, initial, lost, paid)
		}
	})
}
