// Package chain is a single-node host for the dice contract. It serializes
// transactions, gives each one its own block and entropy, moves funds through
// a bank module and commits contract and bank writes together.
package chain

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dicehouse/internal/contract"
	"dicehouse/internal/game"
	"dicehouse/internal/store"
)

const (
	keyHeight   = "chain/height"
	keyLastHash = "chain/last_hash"
)

// Block describes the block a transaction was committed in.
type Block struct {
	Height  uint64    `json:"height"`
	Time    time.Time `json:"time"`
	Entropy []byte    `json:"entropy"`
	Hash    []byte    `json:"hash"`
}

// TxResult is returned for every committed transaction.
type TxResult struct {
	Block    Block             `json:"block"`
	Sender   string            `json:"sender"`
	Response contract.Response `json:"response"`
}

// EventHandler receives contract events after their transaction commits.
type EventHandler func(block Block, sender string, ev contract.Event)

type Option func(*Chain)

// WithBeacon replaces the per-block random source.
func WithBeacon(src game.EntropySource) Option {
	return func(c *Chain) { c.beacon = src }
}

// WithClock replaces the block timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

type Chain struct {
	backend  store.Backend
	contract string

	beacon game.EntropySource
	now    func() time.Time

	mu       sync.RWMutex
	notifyMu sync.Mutex
	handlers []EventHandler
}

// New hosts the contract at address on backend.
func New(backend store.Backend, address string, opts ...Option) *Chain {
	c := &Chain{
		backend:  backend,
		contract: address,
		beacon:   RandomBeacon(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) ContractAddress() string { return c.contract }

// OnEvent registers h for every committed event. Handlers run in commit
// order on the transacting goroutine and must not start transactions.
func (c *Chain) OnEvent(h EventHandler) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Chain) contractStore(kv store.KV) store.KV {
	return store.NewPrefix(kv, "contract/"+c.contract+"/")
}

// Instantiate creates the contract state.
func (c *Chain) Instantiate(ctx context.Context, sender string, msg contract.InstantiateMsg) (TxResult, error) {
	return c.transact(ctx, sender, func(tx store.KV, env contract.Env) (contract.Response, error) {
		return contract.Instantiate(ctx, c.contractStore(tx), env, contract.MessageInfo{Sender: sender}, msg)
	})
}

// Instantiated reports whether the contract has state.
func (c *Chain) Instantiated(ctx context.Context) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, err := c.contractStore(c.backend).Get(ctx, contract.KeyConfig)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Execute moves funds from sender to the contract, runs msg and pays out
// whatever the contract asks for. Any failure discards all of it.
func (c *Chain) Execute(ctx context.Context, sender string, funds []contract.Coin, msg contract.ExecuteMsg) (TxResult, error) {
	return c.transact(ctx, sender, func(tx store.KV, env contract.Env) (contract.Response, error) {
		b := bank{kv: tx}
		if err := b.send(ctx, sender, c.contract, funds); err != nil {
			return contract.Response{}, err
		}

		info := contract.MessageInfo{Sender: sender, Funds: funds}
		resp, err := contract.Execute(ctx, c.contractStore(tx), env, info, msg)
		if err != nil {
			return contract.Response{}, err
		}

		for _, m := range resp.Messages {
			if err := b.send(ctx, c.contract, m.ToAddress, m.Amount); err != nil {
				return contract.Response{}, fmt.Errorf("contract payout to %s: %w", m.ToAddress, err)
			}
		}
		return resp, nil
	})
}

// Query answers a read-only message against committed state.
func (c *Chain) Query(ctx context.Context, msg contract.QueryMsg) (json.RawMessage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return contract.Query(ctx, c.contractStore(c.backend), msg)
}

// Balance returns the committed balances of addr.
func (c *Chain) Balance(ctx context.Context, addr string) (Balances, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return bank{kv: c.backend}.balances(ctx, addr)
}

// Mint credits coins to addr out of thin air. It is the development faucet
// and genesis allocation; it does not produce a block.
func (c *Chain) Mint(ctx context.Context, addr string, coins []contract.Coin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	branch := store.NewBranch(c.backend)
	if err := (bank{kv: branch}).mint(ctx, addr, coins); err != nil {
		return err
	}
	if err := branch.Commit(ctx); err != nil {
		return err
	}
	log.Printf("[CHAIN] Minted %v to %s", coins, addr)
	return nil
}

// Height returns the last committed block height.
func (c *Chain) Height(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readHeight(ctx, c.backend)
}

func (c *Chain) readHeight(ctx context.Context, kv store.KV) (uint64, error) {
	raw, err := kv.Get(ctx, keyHeight)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt %s: %d bytes", keyHeight, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

type txFunc func(tx store.KV, env contract.Env) (contract.Response, error)

// transact runs fn as the only transaction of a new block.
func (c *Chain) transact(ctx context.Context, sender string, fn txFunc) (TxResult, error) {
	result, err := c.commit(ctx, sender, fn)
	if err != nil {
		// notifyMu is only taken on success.
		return TxResult{}, err
	}
	defer c.notifyMu.Unlock()

	for _, ev := range result.Response.Events {
		for _, h := range c.handlers {
			h(result.Block, sender, ev)
		}
	}
	return result, nil
}

// commit holds the chain lock for the whole transaction. On success it
// returns with notifyMu held so handlers see blocks in commit order.
func (c *Chain) commit(ctx context.Context, sender string, fn txFunc) (TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	branch := store.NewBranch(c.backend)

	height, err := c.readHeight(ctx, branch)
	if err != nil {
		return TxResult{}, err
	}
	if height == ^uint64(0) {
		return TxResult{}, game.Errorf(game.CodeArithmeticOverflow, "block height exhausted")
	}
	prevHash, err := branch.Get(ctx, keyLastHash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return TxResult{}, err
	}

	block := Block{Height: height + 1, Time: c.now().UTC()}
	block.Entropy = blockEntropy(prevHash, block.Height, block.Time, c.beacon())
	block.Hash = blockHash(prevHash, block.Entropy)

	env := contract.Env{
		Block: contract.BlockInfo{
			Height:  block.Height,
			Time:    block.Time,
			Entropy: block.Entropy,
		},
		Contract: contract.ContractInfo{Address: c.contract},
	}

	resp, err := fn(branch, env)
	if err != nil {
		branch.Discard()
		log.Printf("[CHAIN] Tx from %s rejected at height %d: %v", sender, block.Height, err)
		return TxResult{}, err
	}

	var h [8]byte
	binary.BigEndian.PutUint64(h[:], block.Height)
	branch.Set(ctx, keyHeight, h[:])
	branch.Set(ctx, keyLastHash, block.Hash)

	if err := branch.Commit(ctx); err != nil {
		return TxResult{}, fmt.Errorf("commit block %d: %w", block.Height, err)
	}
	log.Printf("[CHAIN] Block %d committed (sender %s, entropy %s)", block.Height, sender, hex.EncodeToString(block.Entropy))

	c.notifyMu.Lock()
	return TxResult{Block: block, Sender: sender, Response: resp}, nil
}
