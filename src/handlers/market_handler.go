package handlers

import (
	"errors"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"markets-engine/src/engine"
	"markets-engine/src/models"
	"markets-engine/src/store"
)

type MarketHandler struct {
	Exchange *engine.Exchange
	Users    *store.Store[models.User]
	Markets  *store.Store[models.Market]

	StartTime       time.Time
	OrdersReceived  int64
	OrdersCancelled int64
	TradesExecuted  int64

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewMarketHandler(exchange *engine.Exchange) *MarketHandler {
	maxLatencies := 10000
	if envMax := os.Getenv("METRICS_MAX_LATENCIES"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxLatencies = parsed
		}
	}

	return &MarketHandler{
		Exchange:     exchange,
		Users:        store.New[models.User](),
		Markets:      store.New[models.Market](),
		StartTime:    time.Now(),
		latencies:    make([]time.Duration, 0, maxLatencies),
		maxLatencies: maxLatencies,
	}
}

func (h *MarketHandler) CreateUser(c *fiber.Ctx) error {
	user := models.User{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}

	if err := h.Users.Insert(user.ID, user); err != nil {
		log.Error().
			Err(err).
			Str("user_id", user.ID).
			Msg("Error creating user")
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
			Error: "User already exists",
		})
	}

	log.Info().
		Str("user_id", user.ID).
		Str("ip", c.IP()).
		Msg("User created")

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *MarketHandler) GetUser(c *fiber.Ctx) error {
	userID := c.Params("id")

	user, exists := h.Users.Get(userID)
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "User not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(user)
}

func (h *MarketHandler) GetUserTrades(c *fiber.Ctx) error {
	userID := c.Params("id")

	if _, exists := h.Users.Get(userID); !exists {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "User not found",
		})
	}

	userTrades := h.Exchange.UserTrades(userID)

	trades := make([]models.UserTradeInfo, 0, len(userTrades))
	for _, t := range userTrades {
		trades = append(trades, models.UserTradeInfo{
			MarketID: t.MarketID,
			Side:     string(t.Side),
			Time:     t.Time,
			Price:    t.Price,
			Quantity: t.Quantity,
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.UserTradesResponse{
		UserID: userID,
		Trades: trades,
	})
}

func (h *MarketHandler) ListMarkets(c *fiber.Ctx) error {
	markets := h.Markets.List()

	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt.Before(markets[j].CreatedAt)
	})

	return c.Status(fiber.StatusOK).JSON(models.MarketList{Markets: markets})
}

func (h *MarketHandler) CreateMarket(c *fiber.Ctx) error {
	var req models.CreateMarketRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid market: name is required",
		})
	}

	marketID := req.ID
	if marketID == "" {
		marketID = uuid.New().String()
	}

	market := models.Market{
		ID:          marketID,
		CreatedAt:   time.Now(),
		Name:        req.Name,
		Description: req.Description,
	}

	if err := h.Markets.Insert(market.ID, market); err != nil {
		log.Warn().
			Str("market_id", market.ID).
			Str("ip", c.IP()).
			Msg("Create market: id already taken")
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
			Error: "Market already exists",
		})
	}

	if _, err := h.Exchange.CreateBook(market.ID); err != nil {
		// market inserted but book taken: the two registries disagree
		log.Error().
			Err(err).
			Str("market_id", market.ID).
			Msg("Error creating order book")
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
			Error: "Order book already exists",
		})
	}

	log.Info().
		Str("market_id", market.ID).
		Str("name", market.Name).
		Str("ip", c.IP()).
		Msg("Market created")

	return c.Status(fiber.StatusCreated).JSON(market)
}

func (h *MarketHandler) GetMarket(c *fiber.Ctx) error {
	marketID := c.Params("id")

	market, exists := h.Markets.Get(marketID)
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Market not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(market)
}

func (h *MarketHandler) CreateOrder(c *fiber.Ctx) error {
	marketID := c.Params("id")

	var req models.CreateOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if err := validateCreateOrderRequest(&req); err != nil {
		log.Warn().
			Err(err).
			Str("market_id", marketID).
			Str("side", req.Side).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	if _, exists := h.Users.Get(req.UserID); !exists {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid order: unknown user",
		})
	}

	book, err := h.Exchange.Book(marketID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Market not found",
		})
	}

	order := engine.NewOrder(uuid.New().String(), req.UserID, engine.Side(req.Side), req.Price, req.Quantity)

	startTime := time.Now()
	trades := book.Insert(order)
	h.recordLatency(time.Since(startTime))

	atomic.AddInt64(&h.OrdersReceived, 1)
	atomic.AddInt64(&h.TradesExecuted, int64(len(trades)))

	log.Info().
		Str("order_id", order.ID).
		Str("market_id", marketID).
		Str("user_id", req.UserID).
		Str("side", req.Side).
		Int64("price", req.Price).
		Int64("submitted_quantity", req.Quantity).
		Int64("remaining_quantity", order.Quantity).
		Int("trades_count", len(trades)).
		Msg("Order processed")

	return c.Status(fiber.StatusCreated).JSON(orderResponse(order))
}

func (h *MarketHandler) CancelOrder(c *fiber.Ctx) error {
	marketID := c.Params("id")
	orderID := c.Params("orderID")

	book, err := h.Exchange.Book(marketID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Market not found",
		})
	}

	order, err := book.Cancel(orderID)
	if err != nil {
		if errors.Is(err, engine.ErrOrderNotFound) {
			log.Warn().
				Str("order_id", orderID).
				Str("market_id", marketID).
				Str("ip", c.IP()).
				Msg("Cancel order: order not found")
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
				Error: "Order not found",
			})
		}
		log.Error().
			Err(err).
			Str("order_id", orderID).
			Str("market_id", marketID).
			Msg("Error cancelling order")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	atomic.AddInt64(&h.OrdersCancelled, 1)

	log.Info().
		Str("order_id", orderID).
		Str("market_id", marketID).
		Int64("cancelled_quantity", order.Quantity).
		Str("ip", c.IP()).
		Msg("Order cancelled")

	return c.Status(fiber.StatusOK).JSON(orderResponse(order))
}

func (h *MarketHandler) GetBook(c *fiber.Ctx) error {
	marketID := c.Params("id")

	book, err := h.Exchange.Book(marketID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Market not found",
		})
	}

	bidLevels, askLevels := book.Snapshot()

	bids := make([]models.PriceLevelInfo, 0, len(bidLevels))
	for _, level := range bidLevels {
		bids = append(bids, models.PriceLevelInfo{
			Price:    level.Price,
			Quantity: level.Quantity,
		})
	}

	asks := make([]models.PriceLevelInfo, 0, len(askLevels))
	for _, level := range askLevels {
		asks = append(asks, models.PriceLevelInfo{
			Price:    level.Price,
			Quantity: level.Quantity,
		})
	}

	var midpoint *float64
	if mid, ok := book.Midpoint(); ok {
		midpoint = &mid
	}

	return c.Status(fiber.StatusOK).JSON(models.BookResponse{
		MarketID: marketID,
		Midpoint: midpoint,
		Bids:     bids,
		Asks:     asks,
	})
}

func (h *MarketHandler) GetTrades(c *fiber.Ctx) error {
	marketID := c.Params("id")

	book, err := h.Exchange.Book(marketID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Market not found",
		})
	}

	bookTrades := book.Trades()

	trades := make([]models.TradeInfo, 0, len(bookTrades))
	for _, t := range bookTrades {
		trades = append(trades, models.TradeInfo{
			Time:     t.Time,
			Price:    t.Price,
			Quantity: t.Quantity,
			Buyer:    t.BuyerID,
			Seller:   t.SellerID,
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.MarketTradesResponse{
		MarketID: marketID,
		Trades:   trades,
	})
}

func (h *MarketHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()

	var resting int64
	for _, book := range h.Exchange.Books() {
		resting += int64(book.RestingOrders())
	}

	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(uptime),
		Markets:       int64(h.Markets.Len()),
		RestingOrders: resting,
	})
}

func (h *MarketHandler) Metrics(c *fiber.Ctx) error {
	var resting int64
	for _, book := range h.Exchange.Books() {
		resting += int64(book.RestingOrders())
	}

	p50, p99, p999 := h.calculateLatencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:         atomic.LoadInt64(&h.OrdersReceived),
		OrdersCancelled:        atomic.LoadInt64(&h.OrdersCancelled),
		OrdersResting:          resting,
		TradesExecuted:         atomic.LoadInt64(&h.TradesExecuted),
		LatencyP50Ms:           p50,
		LatencyP99Ms:           p99,
		LatencyP999Ms:          p999,
		ThroughputOrdersPerSec: h.calculateThroughput(),
	})
}

func (h *MarketHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *MarketHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0, 0
	}

	latenciesCopy := make([]time.Duration, len(h.latencies))
	copy(latenciesCopy, h.latencies)

	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	percentile := func(q float64) float64 {
		idx := int(float64(len(latenciesCopy)) * q)
		// edge case: ensure index is within bounds
		if idx >= len(latenciesCopy) {
			idx = len(latenciesCopy) - 1
		}
		return float64(latenciesCopy[idx].Nanoseconds()) / 1e6
	}

	return percentile(0.50), percentile(0.99), percentile(0.999)
}

func (h *MarketHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}

	return float64(atomic.LoadInt64(&h.OrdersReceived)) / uptime
}

func orderResponse(order *engine.Order) models.OrderResponse {
	return models.OrderResponse{
		ID:        order.ID,
		CreatedAt: order.CreatedAt,
		UserID:    order.UserID,
		Side:      string(order.Side),
		Price:     order.Price,
		Quantity:  order.Quantity,
	}
}

func validateCreateOrderRequest(req *models.CreateOrderRequest) error {
	if req.UserID == "" {
		return &ValidationError{Message: "Invalid order: user_id is required"}
	}

	if !engine.Side(req.Side).Valid() {
		return &ValidationError{Message: "Invalid order: side must be bid or ask"}
	}

	if req.Quantity <= 0 {
		return &ValidationError{Message: "Invalid order: quantity must be positive"}
	}

	if req.Price <= 0 {
		return &ValidationError{Message: "Invalid order: price must be positive"}
	}

	return nil
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
