package engine

import (
	"fmt"
	"sync"
	"time"
)

// OrderBook is the matching core for one market: two price-level lists, an
// index from resting order id to its level, the trade log, and the set of
// users that ever traded here. Insert and Cancel hold the write lock for the
// whole call, so the book is always fully crossed-free between calls.
type OrderBook struct {
	MarketID string

	bids *PriceLevelList
	asks *PriceLevelList

	orders map[string]*PriceLevel // resting orders only
	trades []Trade
	users  map[string]struct{}

	mu sync.RWMutex
}

func NewOrderBook(marketID string) *OrderBook {
	return &OrderBook{
		MarketID: marketID,
		bids:     NewPriceLevelList(Descending),
		asks:     NewPriceLevelList(Ascending),
		orders:   make(map[string]*PriceLevel),
		users:    make(map[string]struct{}),
	}
}

func (b *OrderBook) sides(side Side) (own, opposite *PriceLevelList) {
	if side == SideBid {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

// Insert crosses the order against resting opposite-side liquidity in
// price-time priority, then books any unfilled remainder. It returns the
// trades this order produced, in match order. The order's Quantity reflects
// fills when Insert returns.
func (b *OrderBook) Insert(order *Order) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.users[order.UserID] = struct{}{}

	own, opposite := b.sides(order.Side)
	limit := opposite.SortKey(order.Price)

	start := len(b.trades)

	opposite.Ascend(func(level *PriceLevel) bool {
		// a bid crosses asks at or below its limit, an ask crosses bids at
		// or above; both collapse to one comparison on the signed sort key
		if opposite.SortKey(level.Price) > limit {
			return false
		}

		for len(level.Orders) > 0 {
			resting := level.Orders[0] // strict FIFO within a level

			size := order.Quantity
			if resting.Quantity < size {
				size = resting.Quantity
			}

			order.Quantity -= size
			resting.Quantity -= size

			buyer, seller := order.UserID, resting.UserID
			if order.Side == SideAsk {
				buyer, seller = resting.UserID, order.UserID
			}

			b.trades = append(b.trades, Trade{
				BuyerID:  buyer,
				SellerID: seller,
				Time:     time.Now(),
				Price:    resting.Price, // maker's price, never the taker's
				Quantity: size,
			})

			if resting.Quantity == 0 {
				level.Orders = level.Orders[1:]
				delete(b.orders, resting.ID)
			}

			if order.Quantity == 0 {
				return false
			}
		}

		return true
	})

	// emptied levels are only ever observable inside this call
	opposite.PruneEmpty()

	if order.Quantity > 0 {
		level := own.LocateOrCreate(order.Price)
		level.Orders = append(level.Orders, order)
		b.orders[order.ID] = level
	}

	return b.trades[start:]
}

// Cancel removes a resting order, returning it with whatever quantity was
// still unfilled. No compensating trade is generated for partial fills.
func (b *OrderBook) Cancel(orderID string) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	level, ok := b.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	delete(b.orders, orderID)

	var cancelled *Order
	for i, o := range level.Orders {
		if o.ID == orderID {
			cancelled = o
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	if cancelled == nil {
		// indexed but missing from its level's queue: corrupted book
		panic(fmt.Sprintf("order book %s: order %s indexed but not queued at price %d",
			b.MarketID, orderID, level.Price))
	}

	b.bids.PruneEmpty()
	b.asks.PruneEmpty()

	return cancelled, nil
}

// Midpoint reports the average of best bid and best ask; ok is false unless
// both sides are non-empty.
func (b *OrderBook) Midpoint() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.midpointLocked()
}

func (b *OrderBook) midpointLocked() (float64, bool) {
	bestBid := b.bids.Best()
	bestAsk := b.asks.Best()
	if bestBid == nil || bestAsk == nil {
		return 0, false
	}
	return float64(bestBid.Price+bestAsk.Price) / 2, true
}

// LevelSummary aggregates one price level for depth snapshots.
type LevelSummary struct {
	Price    int64
	Quantity int64
}

// Snapshot returns both sides best-first, one aggregate entry per level.
func (b *OrderBook) Snapshot() (bids, asks []LevelSummary) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	collect := func(l *PriceLevelList) []LevelSummary {
		out := make([]LevelSummary, 0, l.Len())
		l.Ascend(func(level *PriceLevel) bool {
			out = append(out, LevelSummary{
				Price:    level.Price,
				Quantity: level.TotalQuantity(),
			})
			return true
		})
		return out
	}

	return collect(b.bids), collect(b.asks)
}

// Trades returns the book's trade log in match order.
func (b *OrderBook) Trades() []Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

// Users returns the ids of every user that has submitted an order here.
func (b *OrderBook) Users() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.users))
	for id := range b.users {
		out = append(out, id)
	}
	return out
}

// RestingOrders reports how many orders are currently booked.
func (b *OrderBook) RestingOrders() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.orders)
}

// GetOrder returns a resting order by id.
func (b *OrderBook) GetOrder(orderID string) (*Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	level, ok := b.orders[orderID]
	if !ok {
		return nil, false
	}
	for _, o := range level.Orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return nil, false
}

// userTrades projects the log onto one participant, one entry per side the
// user was on. Self-trades yield a bid and an ask entry.
func (b *OrderBook) userTrades(userID string) []UserTrade {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []UserTrade
	for _, t := range b.trades {
		if t.BuyerID == userID {
			out = append(out, UserTrade{
				MarketID: b.MarketID,
				Side:     SideBid,
				Time:     t.Time,
				Price:    t.Price,
				Quantity: t.Quantity,
			})
		}
		if t.SellerID == userID {
			out = append(out, UserTrade{
				MarketID: b.MarketID,
				Side:     SideAsk,
				Time:     t.Time,
				Price:    t.Price,
				Quantity: t.Quantity,
			})
		}
	}
	return out
}
