package trader

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uhyunpark/tickmaker/params"
	"github.com/uhyunpark/tickmaker/pkg/fairvalue"
	"github.com/uhyunpark/tickmaker/pkg/market"
	"github.com/uhyunpark/tickmaker/pkg/metrics"
	"github.com/uhyunpark/tickmaker/pkg/quoting"
	"github.com/uhyunpark/tickmaker/pkg/state"
)

func newTestTrader(t *testing.T) (*Trader, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tr, err := New(params.Default().Products, quoting.DefaultConfig(), zap.New(core).Sugar(), metrics.New("test"))
	require.NoError(t, err)
	return tr, logs
}

func amethystsBook() *market.OrderDepth {
	return market.NewOrderDepth(map[int64]int64{9998: 5, 9995: 10}, map[int64]int64{10002: 5, 10005: 10})
}

func starfruitBook(bid, ask int64) *market.OrderDepth {
	return market.NewOrderDepth(map[int64]int64{bid: 10}, map[int64]int64{ask: 10})
}

func TestRun_ConstantProductQuotesAroundFair(t *testing.T) {
	tr, _ := newTestTrader(t)
	res := tr.Run(&market.Snapshot{
		Timestamp:   0,
		OrderDepths: map[string]*market.OrderDepth{"AMETHYSTS": amethystsBook()},
	})

	assert.Equal(t, 0, res.Conversions)
	assert.Equal(t, market.OrderBatch{
		{Symbol: "AMETHYSTS", Price: 9999, Quantity: 10},
		{Symbol: "AMETHYSTS", Price: 10001, Quantity: -10},
	}, res.Orders["AMETHYSTS"])
	assert.Equal(t, "10000", res.FairValues["AMETHYSTS"].String())

	st, err := state.Decode(res.TraderData)
	require.NoError(t, err)
	assert.Empty(t, st.History["AMETHYSTS"], "constant estimator keeps no history")
}

func TestRun_RegressionWaitsForHistory(t *testing.T) {
	tr, _ := newTestTrader(t)

	blob := ""
	for i := int64(0); i < 3; i++ {
		res := tr.Run(&market.Snapshot{
			Timestamp:   i * 100,
			TraderData:  blob,
			OrderDepths: map[string]*market.OrderDepth{"STARFRUIT": starfruitBook(5000+i, 5004+i)},
		})
		_, quoted := res.Orders["STARFRUIT"]
		assert.False(t, quoted, "cycle %d should not quote", i)
		blob = res.TraderData
	}

	res := tr.Run(&market.Snapshot{
		Timestamp:   300,
		TraderData:  blob,
		OrderDepths: map[string]*market.OrderDepth{"STARFRUIT": starfruitBook(5003, 5007)},
	})
	require.NotEmpty(t, res.Orders["STARFRUIT"])

	st, err := state.Decode(res.TraderData)
	require.NoError(t, err)
	require.Len(t, st.History["STARFRUIT"], 4)
	assert.Equal(t, "5002", st.History["STARFRUIT"][0].String())
	assert.Equal(t, "5005", st.History["STARFRUIT"][3].String())

	// the buffer stays bounded
	res = tr.Run(&market.Snapshot{
		Timestamp:   400,
		TraderData:  res.TraderData,
		OrderDepths: map[string]*market.OrderDepth{"STARFRUIT": starfruitBook(5004, 5008)},
	})
	st, err = state.Decode(res.TraderData)
	require.NoError(t, err)
	require.Len(t, st.History["STARFRUIT"], 4)
	assert.Equal(t, "5003", st.History["STARFRUIT"][0].String())
}

func TestRun_MalformedTraderDataStartsFresh(t *testing.T) {
	tr, logs := newTestTrader(t)
	res := tr.Run(&market.Snapshot{
		Timestamp:   100,
		TraderData:  "{not json",
		OrderDepths: map[string]*market.OrderDepth{"AMETHYSTS": amethystsBook()},
	})

	assert.Len(t, res.Orders["AMETHYSTS"], 2)
	assert.Equal(t, 1, logs.FilterMessage("trader_data_reset").Len())

	st, err := state.Decode(res.TraderData)
	require.NoError(t, err)
	assert.Equal(t, int64(100), st.Timestamp)
}

func TestRun_SkipsProducts(t *testing.T) {
	tr, logs := newTestTrader(t)
	res := tr.Run(&market.Snapshot{
		Timestamp: 0,
		OrderDepths: map[string]*market.OrderDepth{
			"KELP":      starfruitBook(100, 102),
			"STARFRUIT": market.NewOrderDepth(map[int64]int64{5005: 1}, map[int64]int64{5001: 1}),
			"AMETHYSTS": amethystsBook(),
			"ORCHIDS":   market.NewOrderDepth(nil, nil),
		},
		Position: map[string]int64{"AMETHYSTS": 25},
	})

	assert.Empty(t, res.Orders)
	reasons := map[string]string{}
	for _, e := range logs.FilterMessage("product_skipped").All() {
		ctx := e.ContextMap()
		reasons[ctx["symbol"].(string)] = ctx["reason"].(string)
	}
	assert.Equal(t, map[string]string{
		"KELP":      metrics.ReasonUnconfigured,
		"STARFRUIT": metrics.ReasonCrossedBook,
		"AMETHYSTS": metrics.ReasonInventory,
		"ORCHIDS":   metrics.ReasonNoFairValue,
	}, reasons)
}

func TestRun_CrossedBookLeavesHistory(t *testing.T) {
	tr, _ := newTestTrader(t)
	res := tr.Run(&market.Snapshot{
		OrderDepths: map[string]*market.OrderDepth{"STARFRUIT": starfruitBook(5000, 5004)},
	})
	res = tr.Run(&market.Snapshot{
		Timestamp:   100,
		TraderData:  res.TraderData,
		OrderDepths: map[string]*market.OrderDepth{"STARFRUIT": market.NewOrderDepth(map[int64]int64{5010: 1}, map[int64]int64{5001: 1})},
	})
	st, err := state.Decode(res.TraderData)
	require.NoError(t, err)
	assert.Len(t, st.History["STARFRUIT"], 1)
}

func TestRun_OwnTradesCountedOnce(t *testing.T) {
	tr, _ := newTestTrader(t)
	own := map[string][]market.Trade{
		"AMETHYSTS": {
			{Symbol: "AMETHYSTS", Price: 9998, Quantity: 5, Buyer: market.Submission, Seller: "bot", Timestamp: 0},
		},
	}
	res := tr.Run(&market.Snapshot{
		Timestamp:   100,
		OrderDepths: map[string]*market.OrderDepth{"AMETHYSTS": amethystsBook()},
		OwnTrades:   own,
		Position:    map[string]int64{"AMETHYSTS": 5},
	})
	st, err := state.Decode(res.TraderData)
	require.NoError(t, err)
	assert.Equal(t, state.PnL{Cash: -49990, VolumeTraded: 5}, st.PnL["AMETHYSTS"])

	// the harness repeats the same fill; it is older than the last cycle
	res = tr.Run(&market.Snapshot{
		Timestamp:   200,
		TraderData:  res.TraderData,
		OrderDepths: map[string]*market.OrderDepth{"AMETHYSTS": amethystsBook()},
		OwnTrades:   own,
		Position:    map[string]int64{"AMETHYSTS": 5},
	})
	st, err = state.Decode(res.TraderData)
	require.NoError(t, err)
	assert.Equal(t, state.PnL{Cash: -49990, VolumeTraded: 5}, st.PnL["AMETHYSTS"])
}

func TestSettledPnL(t *testing.T) {
	book := amethystsBook()
	tests := []struct {
		name     string
		ledger   state.PnL
		position int64
		depth    *market.OrderDepth
		want     int64
		ok       bool
	}{
		{"long marks at ask", state.PnL{Cash: -49990}, 5, book, 20, true},
		{"short marks at bid", state.PnL{Cash: 50010}, -5, book, 20, true},
		{"flat ignores book", state.PnL{Cash: 12}, 0, nil, 12, true},
		{"long without asks", state.PnL{Cash: -10}, 1, market.NewOrderDepth(map[int64]int64{9: 1}, nil), 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SettledPnL(tc.ledger, tc.position, tc.depth)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNew_RejectsBadEstimator(t *testing.T) {
	products := []params.Product{{Symbol: "X", Limit: 10}}
	_, err := New(products, quoting.DefaultConfig(), nil, nil)
	assert.Error(t, err)
}

func TestNew_RejectsHistoryShorterThanEstimator(t *testing.T) {
	tests := []struct {
		name    string
		product params.Product
		wantErr bool
	}{
		{
			name: "regression without history",
			product: params.Product{Symbol: "X", Limit: 10, Estimator: fairvalue.Spec{
				Kind:         fairvalue.KindRegression,
				Coefficients: []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(1)},
			}},
			wantErr: true,
		},
		{
			name:    "ema window longer than history",
			product: params.Product{Symbol: "X", Limit: 10, Estimator: fairvalue.Spec{Kind: fairvalue.KindEMA, Window: 5}, HistoryLength: 4},
			wantErr: true,
		},
		{
			name:    "ema window fits",
			product: params.Product{Symbol: "X", Limit: 10, Estimator: fairvalue.Spec{Kind: fairvalue.KindEMA, Window: 5}, HistoryLength: 5},
		},
		{
			name:    "constant needs none",
			product: params.Product{Symbol: "X", Limit: 10, Estimator: fairvalue.Spec{Kind: fairvalue.KindConstant}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]params.Product{tt.product}, quoting.DefaultConfig(), nil, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_EMAQuotesOnceWindowFills(t *testing.T) {
	products := []params.Product{{
		Symbol:        "STARFRUIT",
		Limit:         20,
		Estimator:     fairvalue.Spec{Kind: fairvalue.KindEMA, Window: 3},
		HistoryLength: 3,
		HistorySource: fairvalue.SourceBestMid,
	}}
	tr, err := New(products, quoting.DefaultConfig(), nil, nil)
	require.NoError(t, err)

	blob := ""
	var res Result
	for i := int64(0); i < 3; i++ {
		res = tr.Run(&market.Snapshot{
			Timestamp:   i * 100,
			TraderData:  blob,
			OrderDepths: map[string]*market.OrderDepth{"STARFRUIT": starfruitBook(5000+2*i, 5002+2*i)},
		})
		blob = res.TraderData
		if i < 2 {
			assert.Empty(t, res.Orders["STARFRUIT"])
		}
	}
	// mids 5001, 5003, 5005 with alpha 0.5
	assert.Equal(t, "5003.5", res.FairValues["STARFRUIT"].String())
	assert.NotEmpty(t, res.Orders["STARFRUIT"])
}

func TestResult_OrderCount(t *testing.T) {
	r := Result{Orders: map[string]market.OrderBatch{
		"A": {{Price: 1, Quantity: 1}},
		"B": {{Price: 1, Quantity: 1}, {Price: 2, Quantity: -1}},
	}}
	assert.Equal(t, 3, r.OrderCount())
}
