package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/dto"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// DevTokenHandler mints tokens in place of the identity provider. It is only
// routed when APP_ENV=development.
type DevTokenHandler struct {
	tokens *auth.TokenManager
}

// NewDevTokenHandler constructs handler.
func NewDevTokenHandler(tokens *auth.TokenManager) *DevTokenHandler {
	return &DevTokenHandler{tokens: tokens}
}

// Issue POST /auth/dev-token.
func (h *DevTokenHandler) Issue(c *fiber.Ctx) error {
	var req dto.DevTokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	token, expiresAt, err := h.tokens.GenerateToken(domain.Principal{ID: req.ID, Name: req.Name, Role: req.Role})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.DevTokenResponse{Token: token, ExpiresAt: expiresAt}})
}
