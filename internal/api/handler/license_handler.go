package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

// LicenseHandler exposes a customer's own license and its account bindings.
type LicenseHandler struct {
	licenses ports.LicenseService
}

func NewLicenseHandler(licenses ports.LicenseService) *LicenseHandler {
	return &LicenseHandler{licenses: licenses}
}

type bindAccountRequest struct {
	AccountNumber string `json:"account_number" validate:"required,numeric"`
}

type licenseResponse struct {
	Key            string   `json:"key"`
	Status         string   `json:"status"`
	AccountNumbers []string `json:"account_numbers"`
	EnrolledBy     string   `json:"enrolled_by,omitempty"`
}

func toLicenseResponse(l *domain.LicenseKey) licenseResponse {
	return licenseResponse{
		Key:            l.Key,
		Status:         string(l.Status),
		AccountNumbers: l.AccountNumbers,
		EnrolledBy:     l.EnrolledBy,
	}
}

// Get returns the caller's license.
//
// @Summary      Get own license
// @Tags         licenses
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  licenseResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/licenses/me [get]
func (h *LicenseHandler) Get(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	license, err := h.licenses.GetByUserID(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLicenseResponse(license))
}

// BindAccount authorizes a trading account on the caller's license.
//
// @Summary      Bind a trading account to the license
// @Tags         licenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      bindAccountRequest  true  "Account number"
// @Success      200   {object}  licenseResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse  "account already bound"
// @Failure      422   {object}  errorResponse  "account cap exceeded"
// @Router       /v1/licenses/accounts [post]
func (h *LicenseHandler) BindAccount(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req bindAccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	license, err := h.licenses.BindAccount(c.Request().Context(), userID, req.AccountNumber)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLicenseResponse(license))
}

// UnbindAccount removes a trading account from the caller's license.
// Removing an account that is not bound succeeds.
//
// @Summary      Unbind a trading account from the license
// @Tags         licenses
// @Produce      json
// @Security     BearerAuth
// @Param        number  path      string  true  "Account number"
// @Success      200     {object}  licenseResponse
// @Failure      401     {object}  errorResponse
// @Failure      404     {object}  errorResponse
// @Router       /v1/licenses/accounts/{number} [delete]
func (h *LicenseHandler) UnbindAccount(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	license, err := h.licenses.UnbindAccount(c.Request().Context(), userID, c.Param("number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLicenseResponse(license))
}
