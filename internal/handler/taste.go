package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/musicatlas/api/internal/middleware"
	"github.com/musicatlas/api/internal/service"
	"github.com/musicatlas/api/pkg/response"
)

// TasteHandler serves the bucketed taste profile.
type TasteHandler struct {
	taste *service.TasteService
}

func NewTasteHandler(taste *service.TasteService) *TasteHandler {
	return &TasteHandler{taste: taste}
}

// Profile handles GET /api/taste/profile
func (h *TasteHandler) Profile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Missing user identity")
	}

	withValidation := false
	if raw := c.Query("validate"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			withValidation = v
		}
	}

	profile, err := h.taste.Profile(c.Context(), userID, withValidation)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSpotifySession):
			return response.Unauthorized(c, service.ErrNoSpotifySession.Error())
		case errors.Is(err, service.ErrNoTasteClusters):
			return response.NotFound(c, service.ErrNoTasteClusters.Error())
		case errors.Is(err, service.ErrNoIncludedClusters):
			return response.NotFound(c, service.ErrNoIncludedClusters.Error())
		case errors.Is(err, service.ErrNoSeedsResolved):
			return response.NotFound(c, service.ErrNoSeedsResolved.Error())
		case errors.Is(err, service.ErrSeedIngestion):
			return response.UpstreamError(c, service.ErrSeedIngestion.Error())
		case errors.Is(err, service.ErrOracleFailure):
			return response.ServiceError(c, service.ErrOracleFailure.Error())
		default:
			return response.ServiceError(c, "Failed to build taste profile")
		}
	}

	return response.OK(c, profile)
}
