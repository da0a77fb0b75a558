// Package state is the record a trader hands back to the harness each cycle
// and receives again on the next one.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Version is bumped whenever the record shape changes.
const Version = 1

var (
	ErrMalformed          = errors.New("malformed trader data")
	ErrUnsupportedVersion = errors.New("unsupported trader data version")
)

// PnL is the running own-trade ledger for one product.
type PnL struct {
	Cash         int64 `json:"cash"`         // sum of sell proceeds minus buy cost
	VolumeTraded int64 `json:"volumeTraded"` // absolute quantity filled
}

// State is carried across cycles as an opaque blob.
type State struct {
	Version   int                          `json:"version"`
	Timestamp int64                        `json:"timestamp"`
	History   map[string][]decimal.Decimal `json:"history"`
	PnL       map[string]PnL               `json:"pnl,omitempty"`
}

// New returns an empty state at the current version.
func New() *State {
	return &State{
		Version: Version,
		History: make(map[string][]decimal.Decimal),
		PnL:     make(map[string]PnL),
	}
}

// Encode serializes s for the harness.
func Encode(s *State) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode trader data: %w", err)
	}
	return string(b), nil
}

// Decode parses a blob produced by Encode. An empty blob is a fresh state.
// On any failure the returned state is empty and usable; the error is
// only for logging.
func Decode(blob string) (*State, error) {
	if blob == "" {
		return New(), nil
	}
	var s State
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return New(), fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s.Version != Version {
		return New(), fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	if s.History == nil {
		s.History = make(map[string][]decimal.Decimal)
	}
	if s.PnL == nil {
		s.PnL = make(map[string]PnL)
	}
	return &s, nil
}
