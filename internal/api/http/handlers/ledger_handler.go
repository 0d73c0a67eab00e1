package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// LedgerHandler serves asset maintenance ledgers.
type LedgerHandler struct {
	service *service.LedgerService
}

// NewLedgerHandler constructs handler.
func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: ledger}
}

// Get GET /assets/:code/ledger.
func (h *LedgerHandler) Get(c *fiber.Ctx) error {
	code, err := url.PathUnescape(c.Params("code"))
	if err != nil {
		code = c.Params("code")
	}
	ledger, err := h.service.BuildLedger(c.UserContext(), code)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ledger})
}
