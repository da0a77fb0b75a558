package quoting

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/tickmaker/pkg/market"
)

func newTestGenerator(t *testing.T, limits map[string]int64) *Generator {
	t.Helper()
	reg := market.NewRegistry()
	for sym, l := range limits {
		require.NoError(t, reg.Register(market.Product{Symbol: sym, Limit: l}))
	}
	return NewGenerator(DefaultConfig(), reg)
}

func fair(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func buys(b market.OrderBatch) market.OrderBatch {
	var out market.OrderBatch
	for _, o := range b {
		if o.Quantity > 0 {
			out = append(out, o)
		}
	}
	return out
}

func sells(b market.OrderBatch) market.OrderBatch {
	var out market.OrderBatch
	for _, o := range b {
		if o.Quantity < 0 {
			out = append(out, o)
		}
	}
	return out
}

func TestGenerate_TakesCheapAsksFirst(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 20})
	depth := market.NewOrderDepth(nil, map[int64]int64{12: -4, 14: -3})

	res, err := g.Generate("X", 0, fair("15"), depth)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(res.Orders), 2)
	assert.Equal(t, market.Order{Symbol: "X", Price: 12, Quantity: 4}, res.Orders[0])
	assert.Equal(t, market.Order{Symbol: "X", Price: 14, Quantity: 3}, res.Orders[1])
	assert.Equal(t, 2, res.Taking)

	// 7 after taking, then one bid tops up to half the limit.
	b := buys(res.Orders)
	require.Len(t, b, 3)
	assert.Equal(t, market.Order{Symbol: "X", Price: 13, Quantity: 3}, b[2])
	assert.Equal(t, int64(10), res.BuyPosition)
}

func TestGenerate_NeutralisesShortAtFloor(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 20})

	t.Run("fractional fair", func(t *testing.T) {
		depth := market.NewOrderDepth(nil, map[int64]int64{10: -2, 11: -5})
		res, err := g.Generate("X", -5, fair("10.4"), depth)
		require.NoError(t, err)

		assert.Equal(t, 1, res.Taking)
		assert.Equal(t, market.Order{Symbol: "X", Price: 10, Quantity: 2}, res.Orders[0])
		// the 10 level is not consumed twice
		var filledAt10 int64
		for _, o := range buys(res.Orders)[:res.Taking] {
			if o.Price == 10 {
				filledAt10 += o.Quantity
			}
		}
		assert.Equal(t, int64(2), filledAt10)
	})

	t.Run("integral fair only flattens when short", func(t *testing.T) {
		depth := market.NewOrderDepth(nil, map[int64]int64{10: -2, 11: -5})
		res, err := g.Generate("X", -5, fair("10"), depth)
		require.NoError(t, err)
		require.Equal(t, 1, res.Taking)
		assert.Equal(t, market.Order{Symbol: "X", Price: 10, Quantity: 2}, res.Orders[0])

		res, err = g.Generate("X", 0, fair("10"), depth)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Taking)
	})

	t.Run("flatten stops at zero", func(t *testing.T) {
		depth := market.NewOrderDepth(nil, map[int64]int64{10: -8})
		res, err := g.Generate("X", -3, fair("10"), depth)
		require.NoError(t, err)
		assert.Equal(t, market.Order{Symbol: "X", Price: 10, Quantity: 3}, res.Orders[0])
	})
}

func TestGenerate_NeutralisesLongAtCeil(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 20})
	depth := market.NewOrderDepth(map[int64]int64{10: 3, 9: 4}, nil)

	res, err := g.Generate("X", 5, fair("10"), depth)
	require.NoError(t, err)
	require.Equal(t, 1, res.Taking)
	assert.Equal(t, market.Order{Symbol: "X", Price: 10, Quantity: -3}, res.Orders[0])

	// Remaining long of 2 is flattened by a resting ask at max(ceil, best ask ref).
	s := sells(res.Orders)
	require.Len(t, s, 2)
	assert.Equal(t, int64(-2), s[1].Quantity)
	assert.Equal(t, int64(10), s[1].Price)
	assert.Equal(t, int64(0), res.SellPosition)
}

func TestGenerate_MarketMakingFallback(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 20})
	depth := market.NewOrderDepth(map[int64]int64{9: 5}, nil)

	res, err := g.Generate("X", 0, fair("10"), depth)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Taking)
	b := buys(res.Orders)
	require.Len(t, b, 1)
	// min(floor(10)-1, 9+1)
	assert.Equal(t, market.Order{Symbol: "X", Price: 9, Quantity: 10}, b[0])

	s := sells(res.Orders)
	require.Len(t, s, 1)
	assert.Equal(t, market.Order{Symbol: "X", Price: 11, Quantity: -10}, s[0])
}

func TestGenerate_TierSelection(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 20})
	depth := market.NewOrderDepth(map[int64]int64{9: 1}, map[int64]int64{11: -1})

	tests := []struct {
		name      string
		inventory int64
		wantBuy   market.Order
		wantSell  market.Order
	}{
		{
			name:      "short flattens buy side",
			inventory: -4,
			wantBuy:   market.Order{Symbol: "X", Price: 9, Quantity: 4},
			wantSell:  market.Order{Symbol: "X", Price: 11, Quantity: -6},
		},
		{
			name:      "flat quotes to half",
			inventory: 0,
			wantBuy:   market.Order{Symbol: "X", Price: 9, Quantity: 10},
			wantSell:  market.Order{Symbol: "X", Price: 11, Quantity: -10},
		},
		{
			name:      "past half quotes remainder less aggressively",
			inventory: 12,
			wantBuy:   market.Order{Symbol: "X", Price: 8, Quantity: 8},
			wantSell:  market.Order{Symbol: "X", Price: 11, Quantity: -12},
		},
		{
			name:      "exactly half goes to full tier",
			inventory: 10,
			wantBuy:   market.Order{Symbol: "X", Price: 8, Quantity: 10},
			wantSell:  market.Order{Symbol: "X", Price: 11, Quantity: -10},
		},
		{
			name:      "deep short sells the remainder",
			inventory: -15,
			wantBuy:   market.Order{Symbol: "X", Price: 9, Quantity: 15},
			wantSell:  market.Order{Symbol: "X", Price: 12, Quantity: -5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := g.Generate("X", tt.inventory, fair("10"), depth)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Taking)
			require.Len(t, buys(res.Orders), 1)
			require.Len(t, sells(res.Orders), 1)
			assert.Equal(t, tt.wantBuy, buys(res.Orders)[0])
			assert.Equal(t, tt.wantSell, sells(res.Orders)[0])
		})
	}
}

func TestGenerate_AtLimit(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 20})
	depth := market.NewOrderDepth(map[int64]int64{11: 3}, map[int64]int64{9: -5})

	res, err := g.Generate("X", 20, fair("10"), depth)
	require.NoError(t, err)
	assert.Empty(t, buys(res.Orders), "no room to buy at the limit")
	assert.Equal(t, int64(20), res.BuyPosition)

	s := sells(res.Orders)
	require.Len(t, s, 2)
	assert.Equal(t, market.Order{Symbol: "X", Price: 11, Quantity: -3}, s[0])
	assert.Equal(t, market.Order{Symbol: "X", Price: 10, Quantity: -17}, s[1])
}

func TestGenerate_EmptyBook(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 20})
	for _, d := range []*market.OrderDepth{nil, market.NewOrderDepth(nil, nil)} {
		res, err := g.Generate("X", 3, fair("10"), d)
		require.NoError(t, err)
		assert.Empty(t, res.Orders)
		assert.Equal(t, int64(3), res.BuyPosition)
		assert.Equal(t, int64(3), res.SellPosition)
	}
}

func TestGenerate_ZeroLimit(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 0})
	depth := market.NewOrderDepth(map[int64]int64{12: 1}, map[int64]int64{8: -1})
	res, err := g.Generate("X", 0, fair("10"), depth)
	require.NoError(t, err)
	assert.Empty(t, res.Orders)
}

func TestGenerate_Errors(t *testing.T) {
	g := newTestGenerator(t, map[string]int64{"X": 20})
	depth := market.NewOrderDepth(map[int64]int64{9: 1}, map[int64]int64{11: -1})

	_, err := g.Generate("Y", 0, fair("10"), depth)
	assert.True(t, errors.Is(err, ErrUnknownProduct))

	_, err = g.Generate("X", 21, fair("10"), depth)
	assert.True(t, errors.Is(err, ErrInventoryOutOfRange))

	_, err = g.Generate("X", -21, fair("10"), depth)
	assert.True(t, errors.Is(err, ErrInventoryOutOfRange))
}

func TestGenerate_InvariantsHoldOnRandomBooks(t *testing.T) {
	const limit = 20
	g := newTestGenerator(t, map[string]int64{"X": limit})
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		buyLevels := make(map[int64]int64)
		sellLevels := make(map[int64]int64)
		for n := rng.Intn(4); n > 0; n-- {
			buyLevels[90+rng.Int63n(10)] = 1 + rng.Int63n(15)
		}
		for n := rng.Intn(4); n > 0; n-- {
			p := 100 + rng.Int63n(10)
			if _, crossed := buyLevels[p]; !crossed {
				sellLevels[p] = -(1 + rng.Int63n(15))
			}
		}
		depth := market.NewOrderDepth(buyLevels, sellLevels)
		inv := rng.Int63n(2*limit+1) - limit
		f := decimal.NewFromInt(85 + rng.Int63n(30)).Add(decimal.New(rng.Int63n(10), -1))

		res, err := g.Generate("X", inv, f, depth)
		require.NoError(t, err)

		pos := inv
		for _, o := range buys(res.Orders) {
			require.NotZero(t, o.Quantity)
			pos += o.Quantity
			require.LessOrEqual(t, pos, int64(limit))
		}
		assert.Equal(t, pos, res.BuyPosition)

		pos = inv
		for _, o := range sells(res.Orders) {
			pos += o.Quantity
			require.GreaterOrEqual(t, pos, int64(-limit))
		}
		assert.Equal(t, pos, res.SellPosition)

		if depth.Empty() {
			assert.Empty(t, res.Orders)
		}
	}
}
