package api

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/tickmaker/pkg/market"
)

// API request and response types for REST endpoints and WebSocket messages

// ==============================
// REST Types
// ==============================

// RunRequest is the payload for POST /api/v1/run: one snapshot, optionally
// tied to a session. A session request with empty traderData resumes from
// the session's latest checkpoint.
type RunRequest struct {
	Session string `json:"session,omitempty"`
	market.Snapshot
}

// RunResponse is the cycle result as the harness expects it.
type RunResponse struct {
	Session     string                       `json:"session,omitempty"`
	Timestamp   int64                        `json:"timestamp"`
	Orders      map[string]market.OrderBatch `json:"orders"`
	Conversions int                          `json:"conversions"`
	TraderData  string                       `json:"traderData"`
	FairValues  map[string]decimal.Decimal   `json:"fairValues,omitempty"`
}

// ProductInfo represents a product's static configuration
type ProductInfo struct {
	Symbol string `json:"symbol"`
	Limit  int64  `json:"limit"` // symmetric position limit
}

// CheckpointInfo is one stored state blob of a session
type CheckpointInfo struct {
	Timestamp  int64  `json:"timestamp"`
	TraderData string `json:"traderData"`
	SavedAt    int64  `json:"savedAt"` // Unix milliseconds
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["cycles", "cycles:run1"]
}

// CycleUpdate is broadcast after every run
type CycleUpdate struct {
	Type       string                       `json:"type"` // "cycle"
	Session    string                       `json:"session,omitempty"`
	Timestamp  int64                        `json:"timestamp"`
	Position   map[string]int64             `json:"position,omitempty"`
	Orders     map[string]market.OrderBatch `json:"orders"`
	FairValues map[string]decimal.Decimal   `json:"fairValues,omitempty"`
}

const channelCycles = "cycles"

func sessionChannel(session string) string { return channelCycles + ":" + session }
