package signer

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mirrormarkets/mirror/internal/audit"
)

// Handler exposes delegated-signer HTTP endpoints.
type Handler struct {
	provider Provider
	audit    audit.Recorder
}

// NewHandler builds a signer HTTP handler.
func NewHandler(provider Provider, recorder audit.Recorder) *Handler {
	return &Handler{provider: provider, audit: recorder}
}

type signMessageRequest struct {
	Message string `json:"message"`
}

type signTypedDataRequest struct {
	TypedData TypedData `json:"typed_data"`
}

type signatureResponse struct {
	Signature string `json:"signature"`
}

// Address resolves (and provisions on first use) the user's signing address.
func (h *Handler) Address(c *fiber.Ctx) error {
	address, err := h.provider.Address(c.UserContext(), c.Params("userId"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"address": address})
}

// SignMessage signs a text message for the user.
func (h *Handler) SignMessage(c *fiber.Ctx) error {
	var req signMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return fiber.NewError(http.StatusBadRequest, "message is required")
	}
	signature, err := h.provider.SignMessage(c.UserContext(), c.Params("userId"), req.Message)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(signatureResponse{Signature: signature})
}

// SignTypedData signs an EIP-712 payload for the user.
func (h *Handler) SignTypedData(c *fiber.Ctx) error {
	var req signTypedDataRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.TypedData.PrimaryType == "" {
		return fiber.NewError(http.StatusBadRequest, "typed_data.primaryType is required")
	}
	signature, err := h.provider.SignTypedData(c.UserContext(), c.Params("userId"), req.TypedData)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(signatureResponse{Signature: signature})
}

// Execute signs and broadcasts a transaction for the user.
func (h *Handler) Execute(c *fiber.Ctx) error {
	executor, ok := h.provider.(TransactionExecutor)
	if !ok {
		return fiber.NewError(http.StatusNotImplemented, "transaction execution not supported")
	}
	var tx TransactionRequest
	if err := c.BodyParser(&tx); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if tx.To == "" {
		return fiber.NewError(http.StatusBadRequest, "to is required")
	}
	result, err := executor.ExecuteTransaction(c.UserContext(), c.Params("userId"), tx)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// Rotate provisions a replacement signer for the user.
func (h *Handler) Rotate(c *fiber.Ctx) error {
	rotator, ok := h.provider.(Rotator)
	if !ok {
		return fiber.NewError(http.StatusNotImplemented, "rotation not supported")
	}
	rec, err := rotator.Rotate(c.UserContext(), c.Params("userId"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": rec.ExternalWalletID,
		"address":   rec.Address,
		"status":    rec.Status,
	})
}

// Revoke terminally deactivates the user's signer.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	revoker, ok := h.provider.(Revoker)
	if !ok {
		return fiber.NewError(http.StatusNotImplemented, "revocation not supported")
	}
	if err := revoker.Revoke(c.UserContext(), c.Params("userId")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// AuditTrail lists the user's audit entries oldest first.
func (h *Handler) AuditTrail(c *fiber.Ctx) error {
	if h.audit == nil {
		return fiber.NewError(http.StatusNotImplemented, "audit trail not available")
	}
	entries, err := h.audit.ListByUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(entries))
	for _, entry := range entries {
		out = append(out, fiber.Map{
			"id":             entry.ID,
			"action":         entry.Action,
			"correlation_id": entry.CorrelationID,
			"details":        entry.Details,
			"created_at":     entry.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"entries": out})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrSignerNotReady):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrRateLimited):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case IsCreationFailed(err):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	case errors.Is(err, ErrSigningUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
