package database

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"time"

	"dicehouse/internal/contract"
)

// RoundFromEvent converts a committed round_result event.
func RoundFromEvent(contractAddr string, height uint64, entropy []byte, ev contract.Event) (Round, error) {
	if ev.Type != contract.EventRoundResult {
		return Round{}, fmt.Errorf("event %q is not a round result", ev.Type)
	}

	r := Round{
		Contract:     contractAddr,
		Height:       height,
		Player:       ev.Attr("player"),
		Stake:        ev.Attr("stake"),
		Payout:       ev.Attr("payout"),
		Seed:         ev.Attr("seed"),
		BlockEntropy: hex.EncodeToString(entropy),
	}

	var err error
	if r.RoundID, err = strconv.ParseUint(ev.Attr("round_id"), 10, 64); err != nil {
		return Round{}, fmt.Errorf("round_id: %w", err)
	}
	if r.GuessLow, err = strconv.ParseInt(ev.Attr("guess_low"), 10, 64); err != nil {
		return Round{}, fmt.Errorf("guess_low: %w", err)
	}
	if r.GuessHigh, err = strconv.ParseInt(ev.Attr("guess_high"), 10, 64); err != nil {
		return Round{}, fmt.Errorf("guess_high: %w", err)
	}
	if r.Outcome, err = strconv.ParseInt(ev.Attr("outcome"), 10, 64); err != nil {
		return Round{}, fmt.Errorf("outcome: %w", err)
	}
	if r.Won, err = strconv.ParseBool(ev.Attr("won")); err != nil {
		return Round{}, fmt.Errorf("won: %w", err)
	}
	return r, nil
}

// Indexer writes rounds to the Service off the transaction path. Enqueue
// never blocks; when the queue is full the round is dropped and logged.
type Indexer struct {
	svc   Service
	queue chan Round
}

func NewIndexer(svc Service) *Indexer {
	return &Indexer{
		svc:   svc,
		queue: make(chan Round, 256),
	}
}

func (ix *Indexer) Enqueue(r Round) {
	select {
	case ix.queue <- r:
	default:
		log.Printf("[INDEXER] Queue full, dropping round %d", r.RoundID)
	}
}

// Run drains the queue until ctx is done.
func (ix *Indexer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-ix.queue:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := ix.svc.RecordRound(writeCtx, r); err != nil {
				log.Printf("[INDEXER] Failed to record round %d: %v", r.RoundID, err)
			}
			cancel()
		}
	}
}
