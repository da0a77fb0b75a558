package quoting

// Shift is a pair of price offsets for one quoting tier.
// A buy quote is placed at min(floor(fair)+Fair, ref+Ref),
// a sell quote at max(ceil(fair)+Fair, ref+Ref).
type Shift struct {
	Fair int64
	Ref  int64
}

// Tiers holds the offsets for the three market-making bands of one side.
//
//	Flatten: inventory is adverse, quote back to zero
//	Half:    between flat and half the limit
//	Full:    past half the limit, quote the remainder up to the limit
type Tiers struct {
	Flatten Shift
	Half    Shift
	Full    Shift
}

// Config is the quoting configuration shared by every product.
type Config struct {
	Buy  Tiers
	Sell Tiers
}

// DefaultConfig returns offsets that get less aggressive as inventory on a
// side grows: flattening pays fair, growing past half the limit pays least.
func DefaultConfig() Config {
	return Config{
		Buy: Tiers{
			Flatten: Shift{Fair: 0, Ref: 0},
			Half:    Shift{Fair: -1, Ref: 1},
			Full:    Shift{Fair: -2, Ref: 1},
		},
		Sell: Tiers{
			Flatten: Shift{Fair: 0, Ref: 0},
			Half:    Shift{Fair: 1, Ref: -1},
			Full:    Shift{Fair: 2, Ref: -1},
		},
	}
}
