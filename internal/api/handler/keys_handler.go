package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fxdesk/trader-portal/internal/core/ports"
)

// KeysHandler exposes staff-key and referral-code validation.
type KeysHandler struct {
	validator ports.KeyValidatorService
}

func NewKeysHandler(validator ports.KeyValidatorService) *KeysHandler {
	return &KeysHandler{validator: validator}
}

// ValidateStaffKey resolves a candidate staff key.
//
// @Summary      Validate a staff key
// @Tags         keys
// @Produce      json
// @Security     BearerAuth
// @Param        code  path      string  true  "Candidate staff key"
// @Success      200   {object}  ports.KeyValidation
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/keys/staff/{code}/validation [get]
func (h *KeysHandler) ValidateStaffKey(c echo.Context) error {
	result, err := h.validator.ValidateStaffKey(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// WatchStaffKey streams validation snapshots for a candidate staff key as
// server-sent events: one immediately, then a fresh one whenever the backing
// records change. The stream ends when the client disconnects.
//
// @Summary      Watch a staff key for validation changes
// @Tags         keys
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        code  path      string  true  "Candidate staff key"
// @Success      200   {object}  ports.KeyValidation
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/keys/staff/{code}/watch [get]
func (h *KeysHandler) WatchStaffKey(c echo.Context) error {
	updates, err := h.validator.WatchStaffKey(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(res)
	for validation := range updates {
		// A write error means the client went away; the subscription is
		// released through the request context.
		if _, err := io.WriteString(res, "data: "); err != nil {
			return nil
		}
		if err := enc.Encode(validation); err != nil {
			return nil
		}
		if _, err := io.WriteString(res, "\n"); err != nil {
			return nil
		}
		res.Flush()
	}
	return nil
}

// ValidateReferralCode resolves a candidate referral code.
//
// @Summary      Validate a referral code
// @Tags         keys
// @Produce      json
// @Security     BearerAuth
// @Param        code  path      string  true  "Candidate referral code"
// @Success      200   {object}  ports.ReferralValidation
// @Failure      401   {object}  errorResponse
// @Router       /v1/keys/referral/{code}/validation [get]
func (h *KeysHandler) ValidateReferralCode(c echo.Context) error {
	result, err := h.validator.ValidateReferralCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
