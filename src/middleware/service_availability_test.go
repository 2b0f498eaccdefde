package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func availabilityApp(sa *ServiceAvailability) *fiber.App {
	app := fiber.New()
	app.Use(sa.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestMaintenanceModeRejectsRequests(t *testing.T) {
	sa := NewServiceAvailability(0)
	sa.SetMaintenanceMode(true)
	app := availabilityApp(sa)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got: %d", resp.StatusCode)
	}

	// edge case: health check always available
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for health check, got: %d", resp.StatusCode)
	}

	sa.SetMaintenanceMode(false)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 after leaving maintenance, got: %d", resp.StatusCode)
	}
}

func TestMaintenanceModeToggle(t *testing.T) {
	sa := NewServiceAvailability(0)

	if sa.IsMaintenanceMode() {
		t.Error("Expected maintenance mode off by default")
	}

	sa.SetMaintenanceMode(true)
	if !sa.IsMaintenanceMode() {
		t.Error("Expected maintenance mode on")
	}
}
