package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fxdesk/trader-portal/internal/api/metrics"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

// FunctionsHandler exposes the stateless function endpoints consumed by the
// companion trading product and the back office. Every function is
// idempotent and answers with the {success, message, data?} envelope.
type FunctionsHandler struct {
	licenses   ports.LicenseService
	enrollment ports.EnrollmentService
}

func NewFunctionsHandler(licenses ports.LicenseService, enrollment ports.EnrollmentService) *FunctionsHandler {
	return &FunctionsHandler{licenses: licenses, enrollment: enrollment}
}

// functionResponse is the function-boundary envelope.
type functionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type validateLicenseRequest struct {
	LicenseKey    string `json:"license_key" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,numeric"`
}

type handleNewUserRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name"`
	Role     string `json:"role" validate:"required,oneof=customer admin enroller ceo"`
	Code     string `json:"code"`
}

type repairRecordsRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Code   string `json:"code"`
}

// ValidateLicense checks a license key against an account number.
//
// @Summary      Validate a license key for a trading account
// @Tags         functions
// @Accept       json
// @Produce      json
// @Param        body  body      validateLicenseRequest  true  "License key and account number"
// @Success      200   {object}  functionResponse
// @Failure      400   {object}  errorResponse
// @Router       /functions/validate-license [post]
func (h *FunctionsHandler) ValidateLicense(c echo.Context) error {
	var req validateLicenseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.licenses.Validate(c.Request().Context(), req.LicenseKey, req.AccountNumber)
	if err != nil {
		return err
	}

	if !result.Valid {
		return c.JSON(http.StatusOK, functionResponse{
			Success: false,
			Message: result.Reason,
		})
	}
	return c.JSON(http.StatusOK, functionResponse{
		Success: true,
		Message: "license valid",
		Data:    result,
	})
}

// HandleNewUser materializes records for a freshly created user.
//
// @Summary      Run the new-user pipeline
// @Tags         functions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      handleNewUserRequest  true  "New user facts"
// @Success      200   {object}  functionResponse
// @Failure      400   {object}  errorResponse
// @Router       /functions/fix-handle-new-user [post]
func (h *FunctionsHandler) HandleNewUser(c echo.Context) error {
	var req handleNewUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.enrollment.HandleNewUser(c.Request().Context(), ports.NewUserInput{
		UserID:         req.UserID,
		Email:          req.Email,
		FullName:       req.FullName,
		Role:           req.Role,
		EnrollmentCode: req.Code,
	})
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("new_user", "error").Inc()
		return err
	}

	metrics.ReconcileRunsTotal.WithLabelValues("new_user", "ok").Inc()
	return c.JSON(http.StatusOK, functionResponse{Success: true, Message: "user records materialized", Data: result})
}

// RepairCustomerRecords corrects an enrollment by email+code, or re-derives
// projections for a user id.
//
// @Summary      Reconcile a user's enrollment records
// @Tags         functions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      repairRecordsRequest  true  "Either email+code for a correction, or user_id for a repair"
// @Success      200   {object}  functionResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /functions/repair-customer-records [post]
func (h *FunctionsHandler) RepairCustomerRecords(c echo.Context) error {
	var req repairRecordsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	var result *ports.ReconcileResult
	var err error
	switch {
	case req.Email != "" && req.Code != "":
		result, err = h.enrollment.CorrectEnrollment(c.Request().Context(), req.Email, req.Code)
	case req.UserID != "":
		result, err = h.enrollment.Repair(c.Request().Context(), req.UserID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "either email+code or user_id is required")
	}
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("manual", "error").Inc()
		return err
	}

	metrics.ReconcileRunsTotal.WithLabelValues("manual", "ok").Inc()
	return c.JSON(http.StatusOK, functionResponse{Success: true, Message: "records reconciled", Data: result})
}

// FixMissingUserRecords re-derives projections for a user, creating any
// record that is missing. Alias of the repair path kept for the operators'
// tooling.
//
// @Summary      Create any missing records for a user
// @Tags         functions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      repairRecordsRequest  true  "User id"
// @Success      200   {object}  functionResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /functions/fix-missing-user-records [post]
func (h *FunctionsHandler) FixMissingUserRecords(c echo.Context) error {
	var req repairRecordsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	result, err := h.enrollment.Repair(c.Request().Context(), req.UserID)
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("manual", "error").Inc()
		return err
	}

	metrics.ReconcileRunsTotal.WithLabelValues("manual", "ok").Inc()
	return c.JSON(http.StatusOK, functionResponse{Success: true, Message: "missing records created", Data: result})
}

// MigrateToReferralCodes back-fills referral codes for all profiles lacking one.
//
// @Summary      Backfill referral codes
// @Tags         functions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  functionResponse
// @Router       /functions/migrate-to-referral-codes [post]
func (h *FunctionsHandler) MigrateToReferralCodes(c echo.Context) error {
	result, err := h.enrollment.MigrateToReferralCodes(c.Request().Context())
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("migration", "error").Inc()
		return err
	}

	metrics.ReconcileRunsTotal.WithLabelValues("migration", "ok").Inc()
	return c.JSON(http.StatusOK, functionResponse{Success: true, Message: "referral codes backfilled", Data: result})
}
