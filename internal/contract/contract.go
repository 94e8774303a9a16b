// Package contract is the message surface of the dice contract: it decodes
// what the host hands it, runs the game package against persisted state and
// tells the host which funds to move.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"dicehouse/internal/game"
	"dicehouse/internal/store"
)

const EventRoundResult = "round_result"

// Instantiate stores the initial config with an empty house and nonce 0.
func Instantiate(ctx context.Context, kv store.KV, env Env, info MessageInfo, msg InstantiateMsg) (Response, error) {
	if _, err := kv.Get(ctx, KeyConfig); err == nil {
		return Response{}, game.Errorf(game.CodeAlreadyInstantiated, "contract %s is already instantiated", env.Contract.Address)
	} else if !errors.Is(err, store.ErrNotFound) {
		return Response{}, err
	}
	if len(info.Funds) != 0 {
		return Response{}, game.Errorf(game.CodeInvalidFunds, "instantiate does not accept funds")
	}

	st, err := game.NewState(msg.Config(env.Contract.Address))
	if err != nil {
		return Response{}, err
	}
	if err := SaveState(ctx, kv, st); err != nil {
		return Response{}, err
	}

	return Response{
		Events: []Event{newEvent("instantiate",
			"admin", st.Config.Admin,
			"denom", st.Config.Denom,
			"min_bet", st.Config.MinBet.String(),
			"max_bet", st.Config.MaxBet.String(),
			"payout_multiplier", st.Config.Multiplier.String(),
		)},
	}, nil
}

// Execute runs one state-changing message. State is written only when the
// whole message succeeds.
func Execute(ctx context.Context, kv store.KV, env Env, info MessageInfo, msg ExecuteMsg) (Response, error) {
	st, err := LoadState(ctx, kv)
	if err != nil {
		return Response{}, err
	}

	var resp Response
	switch m := msg.(type) {
	case Play:
		resp, err = executePlay(st, env, info, m)
	case Deposit:
		resp, err = executeDeposit(st, info)
	case Withdraw:
		resp, err = executeWithdraw(st, info, m)
	case UpdateConfig:
		resp, err = executeUpdateConfig(st, info, m)
	default:
		return Response{}, game.Errorf(game.CodeInvalidMessage, "unsupported execute message %T", msg)
	}
	if err != nil {
		return Response{}, err
	}

	if err := SaveState(ctx, kv, st); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// stakeFrom returns the single coin of denom attached to the message.
func stakeFrom(info MessageInfo, denom string) (game.Amount, error) {
	if len(info.Funds) != 1 {
		return game.Amount{}, game.Errorf(game.CodeInvalidFunds, "expected exactly one coin of %s, got %d coins", denom, len(info.Funds))
	}
	coin := info.Funds[0]
	if coin.Denom != denom {
		return game.Amount{}, game.Errorf(game.CodeInvalidFunds, "expected %s, got %s", denom, coin.Denom)
	}
	if coin.Amount.IsZero() {
		return game.Amount{}, game.Errorf(game.CodeInvalidFunds, "attached amount is zero")
	}
	return coin.Amount, nil
}

func nonPayable(info MessageInfo) error {
	if len(info.Funds) != 0 {
		return game.Errorf(game.CodeInvalidFunds, "message does not accept funds")
	}
	return nil
}

func executePlay(st *game.State, env Env, info MessageInfo, m Play) (Response, error) {
	stake, err := stakeFrom(info, st.Config.Denom)
	if err != nil {
		return Response{}, err
	}

	entropy := func() []byte { return env.Block.Entropy }
	res, err := game.Play(st, entropy, game.PlayRequest{
		Player: info.Sender,
		Stake:  stake,
		Bet:    m.Bet(),
		Salt:   m.Salt,
	})
	if err != nil {
		return Response{}, err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		Events: []Event{newEvent(EventRoundResult,
			"round_id", strconv.FormatUint(res.RoundID, 10),
			"player", res.Player,
			"stake", res.Stake.String(),
			"guess_low", strconv.FormatInt(res.Bet.Low, 10),
			"guess_high", strconv.FormatInt(res.Bet.High, 10),
			"outcome", strconv.FormatInt(res.Outcome, 10),
			"won", strconv.FormatBool(res.Won),
			"payout", res.Payout.String(),
			"seed", res.Seed.String(),
		)},
		Data: data,
	}
	if res.Won && !res.Payout.IsZero() {
		resp.Messages = []BankSend{{
			ToAddress: res.Player,
			Amount:    []Coin{{Denom: st.Config.Denom, Amount: res.Payout}},
		}}
	}
	return resp, nil
}

func executeDeposit(st *game.State, info MessageInfo) (Response, error) {
	amount, err := stakeFrom(info, st.Config.Denom)
	if err != nil {
		return Response{}, err
	}
	if err := game.AdminDeposit(st, info.Sender, amount); err != nil {
		return Response{}, err
	}
	return Response{
		Events: []Event{newEvent("deposit",
			"amount", amount.String(),
			"house_balance", st.HouseBalance.String(),
		)},
	}, nil
}

func executeWithdraw(st *game.State, info MessageInfo, m Withdraw) (Response, error) {
	if err := nonPayable(info); err != nil {
		return Response{}, err
	}
	if err := game.AdminWithdraw(st, info.Sender, m.Amount); err != nil {
		return Response{}, err
	}
	return Response{
		Messages: []BankSend{{
			ToAddress: st.Config.Admin,
			Amount:    []Coin{{Denom: st.Config.Denom, Amount: m.Amount}},
		}},
		Events: []Event{newEvent("withdraw",
			"amount", m.Amount.String(),
			"recipient", st.Config.Admin,
			"house_balance", st.HouseBalance.String(),
		)},
	}, nil
}

func executeUpdateConfig(st *game.State, info MessageInfo, m UpdateConfig) (Response, error) {
	if err := nonPayable(info); err != nil {
		return Response{}, err
	}

	next := st.Config
	next.MinBet = m.MinBet
	next.MaxBet = m.MaxBet
	next.Multiplier = game.Ratio{Num: m.PayoutNumerator, Den: m.PayoutDenominator}
	next.Admin = m.Admin
	if m.DieLow != nil {
		next.Die.Low = *m.DieLow
	}
	if m.DieHigh != nil {
		next.Die.High = *m.DieHigh
	}

	if err := game.UpdateConfig(st, info.Sender, next); err != nil {
		return Response{}, err
	}
	return Response{
		Events: []Event{newEvent("update_config",
			"admin", st.Config.Admin,
			"min_bet", st.Config.MinBet.String(),
			"max_bet", st.Config.MaxBet.String(),
			"payout_multiplier", st.Config.Multiplier.String(),
		)},
	}, nil
}

// Query answers a read-only message from the persisted state.
func Query(ctx context.Context, kv store.KV, msg QueryMsg) (json.RawMessage, error) {
	st, err := LoadState(ctx, kv)
	if err != nil {
		return nil, err
	}

	var out any
	switch m := msg.(type) {
	case GetConfig:
		out = st.Config
	case GetHouseBalance:
		out = HouseBalanceResponse{Amount: st.HouseBalance}
	case GetRoundNonce:
		out = RoundNonceResponse{Nonce: st.RoundNonce}
	case VerifyRound:
		v, err := game.VerifyRound(m.BlockEntropy, m.Sender, m.Nonce, m.Salt, st.Config.Die)
		if err != nil {
			return nil, err
		}
		out = v
	case GetOdds:
		out = OddsResponse{
			Multiplier: st.Config.Multiplier,
			Decimal:    st.Config.Multiplier.Decimal().String(),
			DieSize:    st.Config.Die.Size(),
			HouseEdge:  st.Config.HouseEdge().String(),
		}
	default:
		return nil, game.Errorf(game.CodeInvalidMessage, "unsupported query message %T", msg)
	}

	return json.Marshal(out)
}
