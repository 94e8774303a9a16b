package contract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"dicehouse/internal/game"
)

// InstantiateMsg configures a fresh contract. Denom and the die default to
// game.DefaultDenom and game.DefaultDie.
type InstantiateMsg struct {
	MinBet            game.Amount `json:"min_bet"`
	MaxBet            game.Amount `json:"max_bet"`
	PayoutNumerator   uint64      `json:"payout_numerator"`
	PayoutDenominator uint64      `json:"payout_denominator"`
	Admin             string      `json:"admin"`
	Denom             string      `json:"denom,omitempty"`
	DieLow            *int64      `json:"die_low,omitempty"`
	DieHigh           *int64      `json:"die_high,omitempty"`
}

// Config builds the game config the contract at address will run with.
func (m InstantiateMsg) Config(address string) game.Config {
	cfg := game.Config{
		MinBet:       m.MinBet,
		MaxBet:       m.MaxBet,
		Multiplier:   game.Ratio{Num: m.PayoutNumerator, Den: m.PayoutDenominator},
		HouseAddress: address,
		Admin:        m.Admin,
		Denom:        m.Denom,
		Die:          game.DefaultDie,
	}
	if cfg.Denom == "" {
		cfg.Denom = game.DefaultDenom
	}
	if m.DieLow != nil {
		cfg.Die.Low = *m.DieLow
	}
	if m.DieHigh != nil {
		cfg.Die.High = *m.DieHigh
	}
	return cfg
}

// ExecuteMsg is the closed set of state-changing messages.
type ExecuteMsg interface {
	executeTag() string
}

// Play wagers the attached coin on Guess, or on [Guess, GuessHigh] when
// GuessHigh is set.
type Play struct {
	Guess     int64  `json:"guess"`
	GuessHigh *int64 `json:"guess_high,omitempty"`
	Salt      []byte `json:"salt,omitempty"`
}

// Bet converts the message guess into a ledger bet.
func (p Play) Bet() game.Bet {
	if p.GuessHigh == nil {
		return game.Exact(p.Guess)
	}
	return game.Bet{Low: p.Guess, High: *p.GuessHigh}
}

// Deposit adds the attached coin to the house balance.
type Deposit struct{}

// Withdraw sends Amount from the house balance to the admin.
type Withdraw struct {
	Amount game.Amount `json:"amount"`
}

// UpdateConfig replaces the admin-controlled parameters. A nil die bound
// keeps the current one.
type UpdateConfig struct {
	MinBet            game.Amount `json:"min_bet"`
	MaxBet            game.Amount `json:"max_bet"`
	PayoutNumerator   uint64      `json:"payout_numerator"`
	PayoutDenominator uint64      `json:"payout_denominator"`
	Admin             string      `json:"admin"`
	DieLow            *int64      `json:"die_low,omitempty"`
	DieHigh           *int64      `json:"die_high,omitempty"`
}

func (Play) executeTag() string         { return "play" }
func (Deposit) executeTag() string      { return "deposit" }
func (Withdraw) executeTag() string     { return "withdraw" }
func (UpdateConfig) executeTag() string { return "update_config" }

// QueryMsg is the closed set of read-only messages.
type QueryMsg interface {
	queryTag() string
}

type GetConfig struct{}

type GetHouseBalance struct{}

type GetRoundNonce struct{}

// VerifyRound recomputes the seed and outcome of a past round from its
// public inputs.
type VerifyRound struct {
	BlockEntropy []byte `json:"block_entropy"`
	Sender       string `json:"sender"`
	Nonce        uint64 `json:"nonce"`
	Salt         []byte `json:"salt,omitempty"`
}

// GetOdds reports the multiplier, die size and house edge.
type GetOdds struct{}

func (GetConfig) queryTag() string       { return "get_config" }
func (GetHouseBalance) queryTag() string { return "get_house_balance" }
func (GetRoundNonce) queryTag() string   { return "get_round_nonce" }
func (VerifyRound) queryTag() string     { return "verify_round" }
func (GetOdds) queryTag() string         { return "get_odds" }

// Query responses.

type HouseBalanceResponse struct {
	Amount game.Amount `json:"amount"`
}

type RoundNonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

type OddsResponse struct {
	Multiplier game.Ratio `json:"multiplier"`
	Decimal    string     `json:"multiplier_decimal"`
	DieSize    uint64     `json:"die_size"`
	HouseEdge  string     `json:"house_edge"`
}

// EncodeExecuteMsg renders msg in its externally tagged form, e.g.
// {"play":{"guess":3}}.
func EncodeExecuteMsg(msg ExecuteMsg) ([]byte, error) {
	return json.Marshal(map[string]ExecuteMsg{msg.executeTag(): msg})
}

// EncodeQueryMsg renders msg in its externally tagged form.
func EncodeQueryMsg(msg QueryMsg) ([]byte, error) {
	return json.Marshal(map[string]QueryMsg{msg.queryTag(): msg})
}

var executeDecoders = map[string]func(json.RawMessage) (ExecuteMsg, error){
	"play":          decodeExecute[Play],
	"deposit":       decodeExecute[Deposit],
	"withdraw":      decodeExecute[Withdraw],
	"update_config": decodeExecute[UpdateConfig],
}

var queryDecoders = map[string]func(json.RawMessage) (QueryMsg, error){
	"get_config":        decodeQuery[GetConfig],
	"get_house_balance": decodeQuery[GetHouseBalance],
	"get_round_nonce":   decodeQuery[GetRoundNonce],
	"verify_round":      decodeQuery[VerifyRound],
	"get_odds":          decodeQuery[GetOdds],
}

// DecodeExecuteMsg parses an externally tagged execute message.
func DecodeExecuteMsg(data []byte) (ExecuteMsg, error) {
	tag, body, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	decode, ok := executeDecoders[tag]
	if !ok {
		return nil, game.Errorf(game.CodeInvalidMessage, "unknown execute message %q", tag)
	}
	return decode(body)
}

// DecodeQueryMsg parses an externally tagged query message.
func DecodeQueryMsg(data []byte) (QueryMsg, error) {
	tag, body, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	decode, ok := queryDecoders[tag]
	if !ok {
		return nil, game.Errorf(game.CodeInvalidMessage, "unknown query message %q", tag)
	}
	return decode(body)
}

func decodeExecute[T ExecuteMsg](body json.RawMessage) (ExecuteMsg, error) {
	var m T
	if err := decodeBody(body, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeQuery[T QueryMsg](body json.RawMessage) (QueryMsg, error) {
	var m T
	if err := decodeBody(body, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func splitTag(data []byte) (string, json.RawMessage, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", nil, game.Wrap(game.CodeInvalidMessage, "message is not a JSON object", err)
	}
	if len(probe) != 1 {
		return "", nil, game.Errorf(game.CodeInvalidMessage, "message must have exactly one key, got %d", len(probe))
	}
	for tag, body := range probe {
		return tag, body, nil
	}
	return "", nil, nil
}

func decodeBody(body json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return game.Wrap(game.CodeInvalidMessage, fmt.Sprintf("invalid message body: %v", err), err)
	}
	return nil
}
