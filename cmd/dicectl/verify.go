package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"

	"dicehouse/internal/game"
)

type verifyArgs struct {
	entropy []byte
	sender  string
	nonce   uint64
	salt    []byte
	die     game.Range
}

func parseVerify(args []string) (verifyArgs, error) {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	entropyHex := fs.String("entropy", "", "block entropy, hex")
	sender := fs.String("sender", "", "player address")
	nonce := fs.Uint64("nonce", 0, "round nonce before the round (round_id - 1)")
	saltHex := fs.String("salt", "", "player salt, hex")
	low := fs.Int64("die-low", game.DefaultDie.Low, "lowest face")
	high := fs.Int64("die-high", game.DefaultDie.High, "highest face")
	if err := fs.Parse(args); err != nil {
		return verifyArgs{}, err
	}

	entropy, err := hex.DecodeString(*entropyHex)
	if err != nil {
		return verifyArgs{}, fmt.Errorf("entropy: %w", err)
	}
	salt, err := hex.DecodeString(*saltHex)
	if err != nil {
		return verifyArgs{}, fmt.Errorf("salt: %w", err)
	}
	return verifyArgs{
		entropy: entropy,
		sender:  *sender,
		nonce:   *nonce,
		salt:    salt,
		die:     game.Range{Low: *low, High: *high},
	}, nil
}

func runVerify(args []string) error {
	a, err := parseVerify(args)
	if err != nil {
		return err
	}

	v, err := game.VerifyRound(a.entropy, a.sender, a.nonce, a.salt, a.die)
	if err != nil {
		return err
	}

	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Field", "Value"},
		{"Sender", a.sender},
		{"Nonce", strconv.FormatUint(a.nonce, 10)},
		{"Die", fmt.Sprintf("%d..%d", a.die.Low, a.die.High)},
		{"Seed", v.Seed.String()},
		{"Outcome", pterm.LightCyan(strconv.FormatInt(v.Outcome, 10))},
	}).Render()
}
