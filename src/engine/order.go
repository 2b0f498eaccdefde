package engine

import (
	"errors"
	"time"
)

type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrBookExists    = errors.New("order book already exists")
	ErrBookNotFound  = errors.New("order book not found")
)

// edge case: price stored as int64 in ticks to avoid floating-point precision errors
type Order struct {
	ID        string
	UserID    string
	Side      Side
	Price     int64
	Quantity  int64 // remaining quantity; mutated only under the owning book's lock
	CreatedAt time.Time
}

func NewOrder(id, userID string, side Side, price, quantity int64) *Order {
	return &Order{
		ID:        id,
		UserID:    userID,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: time.Now(),
	}
}

// Trade records one fill. Price is always the resting order's price, so the
// maker keeps any price improvement over the incoming limit.
type Trade struct {
	BuyerID  string
	SellerID string
	Time     time.Time
	Price    int64
	Quantity int64
}

// UserTrade is a Trade projected onto one participant: tagged with the market
// it happened in and the side that participant was on.
type UserTrade struct {
	MarketID string
	Side     Side
	Time     time.Time
	Price    int64
	Quantity int64
}
