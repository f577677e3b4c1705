package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fxdesk/trader-portal/internal/core/ports"
)

const gainDateLayout = "2006-01-02"

// TradingHandler exposes the third-party trading data linked to the caller.
type TradingHandler struct {
	trading ports.TradingService
}

func NewTradingHandler(trading ports.TradingService) *TradingHandler {
	return &TradingHandler{trading: trading}
}

type connectProviderRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Connect links the caller's provider account.
//
// @Summary      Connect a trading-data provider account
// @Tags         trading
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      connectProviderRequest  true  "Provider credentials"
// @Success      200   {object}  statusResponse
// @Failure      401   {object}  errorResponse
// @Router       /v1/trading/connect [post]
func (h *TradingHandler) Connect(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req connectProviderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := h.trading.Connect(c.Request().Context(), userID, req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "connected"})
}

// Disconnect unlinks the caller's provider account.
//
// @Summary      Disconnect the trading-data provider account
// @Tags         trading
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  statusResponse
// @Router       /v1/trading/connect [delete]
func (h *TradingHandler) Disconnect(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	if err := h.trading.Disconnect(c.Request().Context(), userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "disconnected"})
}

// Accounts lists the caller's linked trading accounts.
//
// @Summary      List linked trading accounts
// @Tags         trading
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.TradingAccount
// @Failure      401  {object}  errorResponse
// @Router       /v1/trading/accounts [get]
func (h *TradingHandler) Accounts(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	accounts, err := h.trading.Accounts(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accounts)
}

// DailyGain returns the daily gain series for one account.
//
// @Summary      Daily gain for an account
// @Tags         trading
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int     true   "Provider account id"
// @Param        from  query     string  false  "Start date (YYYY-MM-DD)"
// @Param        to    query     string  false  "End date (YYYY-MM-DD)"
// @Success      200   {object}  ports.GainSummary
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /v1/trading/accounts/{id}/daily-gain [get]
func (h *TradingHandler) DailyGain(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	accountID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}

	from, err := parseDateParam(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
	}
	to, err := parseDateParam(c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
	}

	summary, err := h.trading.DailyGain(c.Request().Context(), userID, accountID, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// History returns the closed-trade history for one account.
//
// @Summary      Trade history for an account
// @Tags         trading
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      int  true  "Provider account id"
// @Success      200  {array}   domain.Trade
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/trading/accounts/{id}/history [get]
func (h *TradingHandler) History(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	accountID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}

	trades, err := h.trading.History(c.Request().Context(), userID, accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, trades)
}

func parseDateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(gainDateLayout, raw)
}
