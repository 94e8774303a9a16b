package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"dicehouse/internal/contract"
	"dicehouse/internal/game"
	"dicehouse/internal/store"
)

const bankPrefix = "bank/"

// Balances maps a denom to an amount.
type Balances map[string]game.Amount

// Coins lists the non-zero balances in denom order.
func (b Balances) Coins() []contract.Coin {
	coins := make([]contract.Coin, 0, len(b))
	for denom, amount := range b {
		if !amount.IsZero() {
			coins = append(coins, contract.Coin{Denom: denom, Amount: amount})
		}
	}
	sort.Slice(coins, func(i, j int) bool { return coins[i].Denom < coins[j].Denom })
	return coins
}

// bank keeps account balances in the same store as contract state so a
// transaction branch covers both.
type bank struct {
	kv store.KV
}

func (b bank) balances(ctx context.Context, addr string) (Balances, error) {
	raw, err := b.kv.Get(ctx, bankPrefix+addr)
	if errors.Is(err, store.ErrNotFound) {
		return Balances{}, nil
	}
	if err != nil {
		return nil, err
	}
	bal := Balances{}
	if err := json.Unmarshal(raw, &bal); err != nil {
		return nil, fmt.Errorf("decode balances of %s: %w", addr, err)
	}
	return bal, nil
}

func (b bank) save(ctx context.Context, addr string, bal Balances) error {
	for denom, amount := range bal {
		if amount.IsZero() {
			delete(bal, denom)
		}
	}
	if len(bal) == 0 {
		return b.kv.Delete(ctx, bankPrefix+addr)
	}
	raw, err := json.Marshal(bal)
	if err != nil {
		return err
	}
	return b.kv.Set(ctx, bankPrefix+addr, raw)
}

func (b bank) mint(ctx context.Context, to string, coins []contract.Coin) error {
	bal, err := b.balances(ctx, to)
	if err != nil {
		return err
	}
	for _, c := range coins {
		next, err := bal[c.Denom].Add(c.Amount)
		if err != nil {
			return err
		}
		bal[c.Denom] = next
	}
	return b.save(ctx, to, bal)
}

func (b bank) send(ctx context.Context, from, to string, coins []contract.Coin) error {
	if len(coins) == 0 || from == to {
		return nil
	}

	src, err := b.balances(ctx, from)
	if err != nil {
		return err
	}
	for _, c := range coins {
		if c.Amount.Cmp(src[c.Denom]) > 0 {
			return game.WithMetadata(game.CodeInvalidFunds,
				fmt.Sprintf("%s has %s%s, needs %s%s", from, src[c.Denom], c.Denom, c.Amount, c.Denom),
				map[string]string{"address": from, "denom": c.Denom, "balance": src[c.Denom].String(), "amount": c.Amount.String()})
		}
		next, err := src[c.Denom].Sub(c.Amount)
		if err != nil {
			return err
		}
		src[c.Denom] = next
	}
	if err := b.save(ctx, from, src); err != nil {
		return err
	}
	return b.mint(ctx, to, coins)
}
