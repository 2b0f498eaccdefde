package models

import "time"

type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type Market struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

type MarketList struct {
	Markets []Market `json:"markets"`
}

type CreateMarketRequest struct {
	ID          string `json:"id,omitempty"` // optional; generated when empty
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreateOrderRequest struct {
	UserID   string `json:"user_id"`
	Side     string `json:"side"`
	Price    int64  `json:"price"` // price in ticks
	Quantity int64  `json:"quantity"`
}

type OrderResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
	Side      string    `json:"side"`
	Price     int64     `json:"price"`
	Quantity  int64     `json:"quantity"` // remaining after any immediate fills
}

type PriceLevelInfo struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"` // aggregated quantity at this price
}

type BookResponse struct {
	MarketID string           `json:"market_id"`
	Midpoint *float64         `json:"midpoint"` // null unless both sides are non-empty
	Bids     []PriceLevelInfo `json:"bids"`     // best (highest) first
	Asks     []PriceLevelInfo `json:"asks"`     // best (lowest) first
}

type TradeInfo struct {
	Time     time.Time `json:"time"`
	Price    int64     `json:"price"`
	Quantity int64     `json:"quantity"`
	Buyer    string    `json:"buyer"`
	Seller   string    `json:"seller"`
}

type MarketTradesResponse struct {
	MarketID string      `json:"market_id"`
	Trades   []TradeInfo `json:"trades"`
}

type UserTradeInfo struct {
	MarketID string    `json:"market_id"`
	Side     string    `json:"side"`
	Time     time.Time `json:"time"`
	Price    int64     `json:"price"`
	Quantity int64     `json:"quantity"`
}

type UserTradesResponse struct {
	UserID string          `json:"user_id"`
	Trades []UserTradeInfo `json:"trades"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Markets       int64  `json:"markets"`
	RestingOrders int64  `json:"resting_orders"`
}

type MetricsResponse struct {
	OrdersReceived         int64   `json:"orders_received"`
	OrdersCancelled        int64   `json:"orders_cancelled"`
	OrdersResting          int64   `json:"orders_resting"`
	TradesExecuted         int64   `json:"trades_executed"`
	LatencyP50Ms           float64 `json:"latency_p50_ms"`
	LatencyP99Ms           float64 `json:"latency_p99_ms"`
	LatencyP999Ms          float64 `json:"latency_p999_ms"`
	ThroughputOrdersPerSec float64 `json:"throughput_orders_per_sec"`
}
