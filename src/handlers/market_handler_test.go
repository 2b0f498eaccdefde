package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"markets-engine/src/engine"
	"markets-engine/src/logger"
	"markets-engine/src/models"
)

// setupTestApp builds a Fiber app wired like main, with rate limiting and
// request logging disabled so tests can hammer the API freely.
func setupTestApp(t *testing.T) (*fiber.App, *MarketHandler) {
	t.Helper()

	t.Setenv("RATE_LIMIT_DISABLED", "1")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FILE", "none")
	t.Setenv("REQUEST_LOGGING_DISABLED", "1")

	logger.InitLogger()

	handler := NewMarketHandler(engine.NewExchange())

	app := fiber.New()
	setupTestRoutes(app, handler)

	return app, handler
}

// mirror of routes.SetupRoutes without the middleware stack; routes imports
// handlers, so the real wiring cannot be used here without an import cycle
func setupTestRoutes(app *fiber.App, h *MarketHandler) {
	users := app.Group("/users")
	users.Post("/", h.CreateUser)
	users.Get("/:id", h.GetUser)
	users.Get("/:id/trades", h.GetUserTrades)

	markets := app.Group("/markets")
	markets.Get("/", h.ListMarkets)
	markets.Post("/", h.CreateMarket)
	markets.Get("/:id", h.GetMarket)
	markets.Post("/:id/orders", h.CreateOrder)
	markets.Delete("/:id/orders/:orderID", h.CancelOrder)
	markets.Get("/:id/book", h.GetBook)
	markets.Get("/:id/trades", h.GetTrades)

	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", h.Metrics)
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
	}

	return resp.StatusCode
}

func createUser(t *testing.T, app *fiber.App) string {
	t.Helper()

	var user models.User
	if status := doJSON(t, app, http.MethodPost, "/users/", nil, &user); status != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d", status)
	}
	if user.ID == "" {
		t.Fatal("Expected a generated user id")
	}
	return user.ID
}

func createMarket(t *testing.T, app *fiber.App, name string) string {
	t.Helper()

	var market models.Market
	req := models.CreateMarketRequest{Name: name, Description: "test market"}
	if status := doJSON(t, app, http.MethodPost, "/markets/", req, &market); status != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d", status)
	}
	return market.ID
}

func TestUserLifecycleAPI(t *testing.T) {
	app, _ := setupTestApp(t)

	userID := createUser(t, app)

	var user models.User
	if status := doJSON(t, app, http.MethodGet, "/users/"+userID, nil, &user); status != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", status)
	}
	if user.ID != userID {
		t.Errorf("Expected user id %s, got: %s", userID, user.ID)
	}

	if status := doJSON(t, app, http.MethodGet, "/users/unknown", nil, nil); status != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", status)
	}
}

func TestCreateMarketAPI(t *testing.T) {
	app, _ := setupTestApp(t)

	var market models.Market
	req := models.CreateMarketRequest{ID: "will-it-rain", Name: "Rain tomorrow", Description: "d"}
	if status := doJSON(t, app, http.MethodPost, "/markets/", req, &market); status != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d", status)
	}
	if market.ID != "will-it-rain" {
		t.Errorf("Expected client-supplied id kept, got: %s", market.ID)
	}

	// edge case: duplicate market id is a conflict, not an overwrite
	if status := doJSON(t, app, http.MethodPost, "/markets/", req, nil); status != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate id, got: %d", status)
	}

	bad := models.CreateMarketRequest{Description: "nameless"}
	if status := doJSON(t, app, http.MethodPost, "/markets/", bad, nil); status != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing name, got: %d", status)
	}

	var list models.MarketList
	if status := doJSON(t, app, http.MethodGet, "/markets/", nil, &list); status != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", status)
	}
	if len(list.Markets) != 1 {
		t.Errorf("Expected 1 market, got: %d", len(list.Markets))
	}

	var fetched models.Market
	if status := doJSON(t, app, http.MethodGet, "/markets/will-it-rain", nil, &fetched); status != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", status)
	}
	if status := doJSON(t, app, http.MethodGet, "/markets/nope", nil, nil); status != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", status)
	}
}

func TestOrderFlowAPI(t *testing.T) {
	app, _ := setupTestApp(t)

	alice := createUser(t, app)
	bob := createUser(t, app)
	marketID := createMarket(t, app, "test")

	// resting ask 50x10
	var ask models.OrderResponse
	askReq := models.CreateOrderRequest{UserID: bob, Side: "ask", Price: 50, Quantity: 10}
	if status := doJSON(t, app, http.MethodPost, "/markets/"+marketID+"/orders", askReq, &ask); status != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d", status)
	}
	if ask.Quantity != 10 {
		t.Errorf("Expected resting quantity 10, got: %d", ask.Quantity)
	}

	// crossing bid 50x4 fills immediately and is returned with 0 remaining
	var bid models.OrderResponse
	bidReq := models.CreateOrderRequest{UserID: alice, Side: "bid", Price: 50, Quantity: 4}
	if status := doJSON(t, app, http.MethodPost, "/markets/"+marketID+"/orders", bidReq, &bid); status != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d", status)
	}
	if bid.Quantity != 0 {
		t.Errorf("Expected fully filled bid, got remaining: %d", bid.Quantity)
	}

	var book models.BookResponse
	if status := doJSON(t, app, http.MethodGet, "/markets/"+marketID+"/book", nil, &book); status != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", status)
	}
	if len(book.Asks) != 1 || book.Asks[0].Price != 50 || book.Asks[0].Quantity != 6 {
		t.Errorf("Expected ask level {50, 6}, got: %+v", book.Asks)
	}
	if len(book.Bids) != 0 {
		t.Errorf("Expected empty bid side, got: %+v", book.Bids)
	}
	if book.Midpoint != nil {
		t.Errorf("Expected null midpoint with one side empty, got: %v", *book.Midpoint)
	}

	var trades models.MarketTradesResponse
	if status := doJSON(t, app, http.MethodGet, "/markets/"+marketID+"/trades", nil, &trades); status != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", status)
	}
	if len(trades.Trades) != 1 {
		t.Fatalf("Expected 1 trade, got: %d", len(trades.Trades))
	}
	trade := trades.Trades[0]
	if trade.Price != 50 || trade.Quantity != 4 || trade.Buyer != alice || trade.Seller != bob {
		t.Errorf("Unexpected trade: %+v", trade)
	}

	// cancel the remainder of the resting ask
	var cancelled models.OrderResponse
	if status := doJSON(t, app, http.MethodDelete, "/markets/"+marketID+"/orders/"+ask.ID, nil, &cancelled); status != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", status)
	}
	if cancelled.Quantity != 6 {
		t.Errorf("Expected cancelled remainder 6, got: %d", cancelled.Quantity)
	}

	// edge case: cancelling the same id twice returns 404 both times after
	if status := doJSON(t, app, http.MethodDelete, "/markets/"+marketID+"/orders/"+ask.ID, nil, nil); status != http.StatusNotFound {
		t.Errorf("Expected status 404 on second cancel, got: %d", status)
	}
}

func TestOrderValidationAPI(t *testing.T) {
	app, _ := setupTestApp(t)

	alice := createUser(t, app)
	marketID := createMarket(t, app, "test")

	cases := []struct {
		name string
		req  models.CreateOrderRequest
	}{
		{"missing user", models.CreateOrderRequest{Side: "bid", Price: 50, Quantity: 10}},
		{"bad side", models.CreateOrderRequest{UserID: alice, Side: "buy", Price: 50, Quantity: 10}},
		{"zero quantity", models.CreateOrderRequest{UserID: alice, Side: "bid", Price: 50, Quantity: 0}},
		{"negative price", models.CreateOrderRequest{UserID: alice, Side: "bid", Price: -1, Quantity: 10}},
		{"unknown user", models.CreateOrderRequest{UserID: "ghost", Side: "bid", Price: 50, Quantity: 10}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status := doJSON(t, app, http.MethodPost, "/markets/"+marketID+"/orders", tc.req, nil); status != http.StatusBadRequest {
				t.Errorf("Expected status 400, got: %d", status)
			}
		})
	}

	valid := models.CreateOrderRequest{UserID: alice, Side: "bid", Price: 50, Quantity: 10}
	if status := doJSON(t, app, http.MethodPost, "/markets/missing/orders", valid, nil); status != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown market, got: %d", status)
	}
}

func TestUserTradesAPI(t *testing.T) {
	app, _ := setupTestApp(t)

	alice := createUser(t, app)
	bob := createUser(t, app)
	m1 := createMarket(t, app, "first")
	m2 := createMarket(t, app, "second")

	orders := []struct {
		market string
		req    models.CreateOrderRequest
	}{
		{m1, models.CreateOrderRequest{UserID: bob, Side: "ask", Price: 50, Quantity: 5}},
		{m1, models.CreateOrderRequest{UserID: alice, Side: "bid", Price: 50, Quantity: 5}},
		{m2, models.CreateOrderRequest{UserID: bob, Side: "bid", Price: 70, Quantity: 3}},
		{m2, models.CreateOrderRequest{UserID: alice, Side: "ask", Price: 70, Quantity: 3}},
	}
	for _, o := range orders {
		if status := doJSON(t, app, http.MethodPost, "/markets/"+o.market+"/orders", o.req, nil); status != http.StatusCreated {
			t.Fatalf("Expected status 201, got: %d", status)
		}
	}

	var resp models.UserTradesResponse
	if status := doJSON(t, app, http.MethodGet, "/users/"+alice+"/trades", nil, &resp); status != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", status)
	}
	if len(resp.Trades) != 2 {
		t.Fatalf("Expected 2 trades, got: %d", len(resp.Trades))
	}
	if resp.Trades[0].MarketID != m1 || resp.Trades[0].Side != "bid" {
		t.Errorf("Expected first trade %s/bid, got: %s/%s", m1, resp.Trades[0].MarketID, resp.Trades[0].Side)
	}
	if resp.Trades[1].MarketID != m2 || resp.Trades[1].Side != "ask" {
		t.Errorf("Expected second trade %s/ask, got: %s/%s", m2, resp.Trades[1].MarketID, resp.Trades[1].Side)
	}

	if status := doJSON(t, app, http.MethodGet, "/users/ghost/trades", nil, nil); status != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown user, got: %d", status)
	}
}

func TestHealthAndMetricsAPI(t *testing.T) {
	app, _ := setupTestApp(t)

	alice := createUser(t, app)
	marketID := createMarket(t, app, "test")

	req := models.CreateOrderRequest{UserID: alice, Side: "bid", Price: 50, Quantity: 10}
	if status := doJSON(t, app, http.MethodPost, "/markets/"+marketID+"/orders", req, nil); status != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d", status)
	}

	var health models.HealthResponse
	if status := doJSON(t, app, http.MethodGet, "/health", nil, &health); status != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", status)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy, got: %s", health.Status)
	}
	if health.Markets != 1 || health.RestingOrders != 1 {
		t.Errorf("Expected 1 market and 1 resting order, got: %d/%d", health.Markets, health.RestingOrders)
	}

	var metrics models.MetricsResponse
	if status := doJSON(t, app, http.MethodGet, "/metrics", nil, &metrics); status != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", status)
	}
	if metrics.OrdersReceived != 1 {
		t.Errorf("Expected 1 order received, got: %d", metrics.OrdersReceived)
	}
	if metrics.OrdersResting != 1 {
		t.Errorf("Expected 1 order resting, got: %d", metrics.OrdersResting)
	}
}
