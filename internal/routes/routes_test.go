package routes

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mirrormarkets/mirror/internal/config"
	"github.com/mirrormarkets/mirror/internal/logging"
)

func setupDevApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	err := Setup(app, Deps{
		Cfg:     config.Config{AppEnv: "test", Port: "0"},
		Logger:  logging.Discard(),
		Metrics: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func TestHealthzInDevMode(t *testing.T) {
	app := setupDevApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
}

func TestSignerAddressAndSignFlow(t *testing.T) {
	app := setupDevApp(t)

	// Signing before the wallet exists is rejected as not ready.
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/users/user-1/signer/sign-message", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("sign before provisioning: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, resp.StatusCode)
	}

	// First address resolution provisions the mock wallet.
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/users/user-1/signer/address", nil))
	if err != nil {
		t.Fatalf("resolve address: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	var addrBody struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(payload, &addrBody); err != nil {
		t.Fatalf("decode address response: %v", err)
	}
	if !strings.HasPrefix(addrBody.Address, "0x") {
		t.Fatalf("expected 0x address, got %q", addrBody.Address)
	}

	// Signing now succeeds.
	req = httptest.NewRequest(fiber.MethodPost, "/api/v1/users/user-1/signer/sign-message", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("sign after provisioning: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
}

func TestSignerRevokeIsIdempotentOverHTTP(t *testing.T) {
	app := setupDevApp(t)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/v1/users/ghost/signer/revoke", nil))
		if err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("expected %d got %d", fiber.StatusNoContent, resp.StatusCode)
		}
	}
}
