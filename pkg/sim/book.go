// Package sim is a local stand-in for the exchange harness: it rebuilds each
// tick's book, fills the bot's orders and feeds positions back.
package sim

import (
	"container/heap"

	"github.com/uhyunpark/tickmaker/pkg/market"
)

// Owner of liquidity loaded from a tick's order depth.
const MarketOwner = "MARKET"

type Fill struct {
	MakerOwner string
	Price      int64
	Qty        int64
}

type resting struct {
	owner string
	qty   int64
}

// Book is one product's resting liquidity with price-time priority.
// It is not safe for concurrent use.
type Book struct {
	bidHeap *priceHeap
	askHeap *priceHeap

	// price -> FIFO queue
	bids map[int64][]*resting
	asks map[int64][]*resting
}

func NewBook() *Book {
	b := &Book{
		bidHeap: &priceHeap{desc: true},
		askHeap: &priceHeap{},
		bids:    make(map[int64][]*resting),
		asks:    make(map[int64][]*resting),
	}
	heap.Init(b.bidHeap)
	heap.Init(b.askHeap)
	return b
}

// BookFromDepth loads every level of depth as a single market-owned order.
func BookFromDepth(d *market.OrderDepth) *Book {
	b := NewBook()
	for _, lvl := range d.Bids() {
		b.Rest(MarketOwner, lvl.Price, lvl.Volume)
	}
	for _, lvl := range d.Asks() {
		b.Rest(MarketOwner, lvl.Price, -lvl.Volume)
	}
	return b
}

// Rest queues an order behind existing ones at its price; positive qty
// bids, negative asks. A zero quantity is ignored.
func (b *Book) Rest(owner string, price, qty int64) {
	if qty == 0 {
		return
	}
	o := &resting{owner: owner, qty: qty}
	if qty > 0 {
		if len(b.bids[price]) == 0 {
			heap.Push(b.bidHeap, price)
		}
		b.bids[price] = append(b.bids[price], o)
		return
	}
	o.qty = -qty
	if len(b.asks[price]) == 0 {
		heap.Push(b.askHeap, price)
	}
	b.asks[price] = append(b.asks[price], o)
}

// Take matches an immediate-or-cancel order against the book: positive qty
// buys up to price, negative sells down to price. Whatever does not match
// is returned as remaining (signed like qty) and never rests.
func (b *Book) Take(price, qty int64) (fills []Fill, remaining int64) {
	if qty > 0 {
		fills, left := b.match(qty, b.asks, b.askHeap, func(p int64) bool { return p <= price })
		return fills, left
	}
	fills, left := b.match(-qty, b.bids, b.bidHeap, func(p int64) bool { return p >= price })
	return fills, -left
}

func (b *Book) match(qty int64, side map[int64][]*resting, h *priceHeap, crosses func(int64) bool) ([]Fill, int64) {
	var fills []Fill
	for qty > 0 {
		p, ok := h.peek()
		if !ok || !crosses(p) {
			break
		}
		level := side[p]
		maker := level[0]
		n := min(qty, maker.qty)
		qty -= n
		maker.qty -= n
		fills = append(fills, Fill{MakerOwner: maker.owner, Price: p, Qty: n})
		if maker.qty == 0 {
			side[p] = level[1:]
			if len(side[p]) == 0 {
				delete(side, p)
				heap.Pop(h)
			}
		}
	}
	return fills, qty
}
