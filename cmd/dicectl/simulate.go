package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"

	"dicehouse/internal/chain"
	"dicehouse/internal/game"
)

type simulation struct {
	rounds  int
	stake   game.Amount
	bet     game.Bet
	config  game.Config
	entropy game.EntropySource
}

type simulationReport struct {
	Counts map[int64]int
	Wins   int
	Staked decimal.Decimal
	Paid   decimal.Decimal
}

// RTP is the share of staked coins returned to the player.
func (r simulationReport) RTP() decimal.Decimal {
	if r.Staked.IsZero() {
		return decimal.Zero
	}
	return r.Paid.Div(r.Staked)
}

// simulate plays the configured bet against a house that cannot run dry and
// tallies outcomes and payouts.
func simulate(s simulation) (simulationReport, error) {
	cfg := s.config
	st, err := game.NewState(cfg)
	if err != nil {
		return simulationReport{}, err
	}
	// Losses grow the house, so reset it below the ceiling every round.
	house, err := game.MaxAmount.Sub(s.stake)
	if err != nil {
		return simulationReport{}, err
	}

	report := simulationReport{
		Counts: make(map[int64]int, cfg.Die.Size()),
		Staked: decimal.Zero,
		Paid:   decimal.Zero,
	}
	stake := decimal.NewFromBigInt(s.stake.Big(), 0)

	for i := 0; i < s.rounds; i++ {
		st.HouseBalance = house

		res, err := game.Play(st, s.entropy, game.PlayRequest{
			Player: "simulator",
			Stake:  s.stake,
			Bet:    s.bet,
		})
		if err != nil {
			return simulationReport{}, fmt.Errorf("round %d: %w", i+1, err)
		}

		report.Counts[res.Outcome]++
		report.Staked = report.Staked.Add(stake)
		if res.Won {
			report.Wins++
			report.Paid = report.Paid.Add(decimal.NewFromBigInt(res.Payout.Big(), 0))
		}
	}
	return report, nil
}

func parseSimulate(args []string) (simulation, error) {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	rounds := fs.Int("rounds", 100000, "rounds to play")
	guess := fs.Int64("guess", 3, "guessed face, or range low")
	guessHigh := fs.Int64("guess-high", 0, "range high; 0 for an exact guess")
	stake := fs.Uint64("stake", 10, "stake per round")
	num := fs.Uint64("num", 57, "payout multiplier numerator")
	den := fs.Uint64("den", 10, "payout multiplier denominator")
	low := fs.Int64("die-low", game.DefaultDie.Low, "lowest face")
	high := fs.Int64("die-high", game.DefaultDie.High, "highest face")
	if err := fs.Parse(args); err != nil {
		return simulation{}, err
	}
	if *rounds <= 0 {
		return simulation{}, fmt.Errorf("rounds must be positive, got %d", *rounds)
	}

	bet := game.Exact(*guess)
	if *guessHigh != 0 {
		bet = game.Bet{Low: *guess, High: *guessHigh}
	}

	amount := game.NewAmount(*stake)
	return simulation{
		rounds: *rounds,
		stake:  amount,
		bet:    bet,
		config: game.Config{
			MinBet:       amount,
			MaxBet:       amount,
			Multiplier:   game.Ratio{Num: *num, Den: *den},
			HouseAddress: "simulator-house",
			Admin:        "simulator-admin",
			Denom:        game.DefaultDenom,
			Die:          game.Range{Low: *low, High: *high},
		},
		entropy: chain.RandomBeacon(),
	}, nil
}

func runSimulate(args []string) error {
	s, err := parseSimulate(args)
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Playing %d rounds", s.rounds))
	report, err := simulate(s)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Done")

	expected := float64(s.rounds) / float64(s.config.Die.Size())
	data := pterm.TableData{{"Face", "Count", "Deviation"}}
	for v := s.config.Die.Low; v <= s.config.Die.High; v++ {
		n := report.Counts[v]
		data = append(data, []string{
			strconv.FormatInt(v, 10),
			strconv.Itoa(n),
			fmt.Sprintf("%+.2f%%", (float64(n)-expected)/expected*100),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	pterm.Info.Printfln("Wins: %d of %d", report.Wins, s.rounds)
	pterm.Info.Printfln("Return to player: %s (configured house edge %s)",
		report.RTP().StringFixed(4), s.config.HouseEdge().StringFixed(4))
	return nil
}
