package contract

import (
	"encoding/json"
	"time"

	"dicehouse/internal/game"
)

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string      `json:"denom"`
	Amount game.Amount `json:"amount"`
}

type BlockInfo struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
	// Entropy is the per-transaction block value mixed into every seed.
	Entropy []byte `json:"entropy"`
}

type ContractInfo struct {
	Address string `json:"address"`
}

// Env is what the host tells the contract about where it is running.
type Env struct {
	Block    BlockInfo    `json:"block"`
	Contract ContractInfo `json:"contract"`
}

// MessageInfo identifies the caller and the funds it attached. By the time
// the contract runs, the host has already moved Funds to the contract.
type MessageInfo struct {
	Sender string `json:"sender"`
	Funds  []Coin `json:"funds"`
}

// BankSend asks the host to move funds out of the contract account.
type BankSend struct {
	ToAddress string `json:"to_address"`
	Amount    []Coin `json:"amount"`
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Attr returns the value of the first attribute named key.
func (e Event) Attr(key string) string {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func newEvent(typ string, kv ...string) Event {
	e := Event{Type: typ, Attributes: make([]Attribute, 0, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Attributes = append(e.Attributes, Attribute{Key: kv[i], Value: kv[i+1]})
	}
	return e
}

// Response is the outcome of a successful execute.
type Response struct {
	Messages []BankSend      `json:"messages,omitempty"`
	Events   []Event         `json:"events,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}
