package market

// Order is a signed request to trade. Positive Quantity buys, negative sells.
type Order struct {
	Symbol   string `json:"symbol"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

// IsBuy reports whether the order adds to inventory.
func (o Order) IsBuy() bool { return o.Quantity > 0 }

// OrderBatch is the ordered set of orders for one product in one cycle.
type OrderBatch []Order

// BuyVolume sums the quantity of all buy orders in the batch.
func (b OrderBatch) BuyVolume() int64 {
	var v int64
	for _, o := range b {
		if o.Quantity > 0 {
			v += o.Quantity
		}
	}
	return v
}

// SellVolume sums the absolute quantity of all sell orders in the batch.
func (b OrderBatch) SellVolume() int64 {
	var v int64
	for _, o := range b {
		if o.Quantity < 0 {
			v -= o.Quantity
		}
	}
	return v
}

// Submission is the trader id the harness uses for our own fills.
const Submission = "SUBMISSION"

// Trade is an executed fill reported by the exchange.
type Trade struct {
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Buyer     string `json:"buyer,omitempty"`
	Seller    string `json:"seller,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot is everything the harness hands the bot for one cycle.
type Snapshot struct {
	Timestamp    int64                  `json:"timestamp"`
	TraderData   string                 `json:"traderData"`
	OrderDepths  map[string]*OrderDepth `json:"orderDepths"`
	OwnTrades    map[string][]Trade     `json:"ownTrades,omitempty"`
	MarketTrades map[string][]Trade     `json:"marketTrades,omitempty"`
	Position     map[string]int64       `json:"position,omitempty"`
}

// PositionOf returns the signed inventory for symbol, zero when absent.
func (s *Snapshot) PositionOf(symbol string) int64 {
	if s.Position == nil {
		return 0
	}
	return s.Position[symbol]
}
