package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dicehouse/internal/game"
	"dicehouse/internal/store"
)

const stateVersion = 1

const (
	KeyConfig       = "config"
	KeyHouseBalance = "house_balance"
	KeyRoundNonce   = "round_nonce"
)

// ErrUnknownVersion is returned when a stored record was written by a
// schema this build does not understand.
var ErrUnknownVersion = errors.New("contract: unknown state record version")

type record struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func writeRecord(ctx context.Context, kv store.KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	raw, err := json.Marshal(record{Version: stateVersion, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s record: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}

func readRecord(ctx context.Context, kv store.KV, key string, v any) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("decode %s record: %w", key, err)
	}
	if rec.Version != stateVersion {
		return fmt.Errorf("%s has version %d: %w", key, rec.Version, ErrUnknownVersion)
	}
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// LoadState reads the three persisted records. A missing config means the
// contract was never instantiated.
func LoadState(ctx context.Context, kv store.KV) (*game.State, error) {
	var st game.State
	if err := readRecord(ctx, kv, KeyConfig, &st.Config); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, game.Errorf(game.CodeNotInstantiated, "no config stored")
		}
		return nil, err
	}
	if err := readRecord(ctx, kv, KeyHouseBalance, &st.HouseBalance); err != nil {
		return nil, err
	}
	if err := readRecord(ctx, kv, KeyRoundNonce, &st.RoundNonce); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveState writes all three records.
func SaveState(ctx context.Context, kv store.KV, st *game.State) error {
	if err := writeRecord(ctx, kv, KeyConfig, st.Config); err != nil {
		return err
	}
	if err := writeRecord(ctx, kv, KeyHouseBalance, st.HouseBalance); err != nil {
		return err
	}
	return writeRecord(ctx, kv, KeyRoundNonce, st.RoundNonce)
}
