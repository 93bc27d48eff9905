package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mirrormarkets/mirror/internal/signer"
)

// RegisterSignerRoutes wires delegated-signer endpoints. Extended
// capabilities (rotate, revoke, execute) are only registered when the
// selected provider supports them, so unsupported operations 404 instead
// of failing at call time.
func RegisterSignerRoutes(r fiber.Router, h *signer.Handler, p signer.Provider, rateLimiter fiber.Handler) {
	g := r.Group("/users/:userId/signer")

	g.Get("/address", h.Address)
	g.Get("/audit", h.AuditTrail)
	g.Post("/sign-message", rateLimiter, h.SignMessage)
	g.Post("/sign-typed-data", rateLimiter, h.SignTypedData)

	if _, ok := signer.Extended(p); ok {
		g.Post("/transactions", rateLimiter, h.Execute)
		g.Post("/rotate", h.Rotate)
		g.Post("/revoke", h.Revoke)
	}
}
