package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/fxdesk/trader-portal/docs"
	"github.com/fxdesk/trader-portal/internal/api/handler"
	"github.com/fxdesk/trader-portal/internal/api/middleware"
	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/service"
	"github.com/fxdesk/trader-portal/internal/infrastructure/config"
	mongodb "github.com/fxdesk/trader-portal/internal/infrastructure/db/mongo"
	redisdb "github.com/fxdesk/trader-portal/internal/infrastructure/db/redis"
	"github.com/fxdesk/trader-portal/internal/infrastructure/fxbook"
	"github.com/fxdesk/trader-portal/internal/infrastructure/http/handlers"
	"github.com/fxdesk/trader-portal/internal/infrastructure/queue"
)

// NewRouter builds the Echo instance with all routes registered and returns
// it together with the repair dispatcher, which the caller must Start.
func NewRouter(db *mongo.Database, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) (*echo.Echo, *queue.Dispatcher) {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("traderportal"))

	// --- Infrastructure ---
	notifier := redisdb.NewNotifier(rdb, log)
	sessions := redisdb.NewSessionRepository(rdb)
	fxClient := fxbook.NewClient(fxbook.Config{
		BaseURL: cfg.FxBook.BaseURL,
		Timeout: time.Duration(cfg.FxBook.TimeoutSec) * time.Second,
	}, log)

	authRepo := mongodb.NewAuthRepository(db)
	profileRepo := mongodb.NewProfileRepository(db)
	staffKeyRepo := mongodb.NewStaffKeyRepository(db)
	licenseRepo := mongodb.NewLicenseRepository(db)
	customerRepo := mongodb.NewCustomerRepository(db)

	// --- Services ---
	validatorSvc := service.NewKeyValidatorService(staffKeyRepo, profileRepo, notifier, log)
	licenseSvc := service.NewLicenseService(licenseRepo, notifier, log)
	enrollmentSvc := service.NewEnrollmentService(
		authRepo, profileRepo, staffKeyRepo, licenseRepo, customerRepo,
		licenseSvc, validatorSvc, notifier, log,
	)
	dispatcher := queue.NewDispatcher(0, enrollmentSvc, log)
	authSvc := service.NewAuthService(authRepo, validatorSvc, enrollmentSvc, dispatcher, cfg.JWTSecret, 24*time.Hour, log)
	tradingSvc := service.NewTradingService(fxClient, sessions, time.Duration(cfg.FxBook.SessionTTL)*time.Hour, log)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(authSvc)
	keysHandler := handler.NewKeysHandler(validatorSvc)
	licenseHandler := handler.NewLicenseHandler(licenseSvc)
	functionsHandler := handler.NewFunctionsHandler(licenseSvc, enrollmentSvc)
	tradingHandler := handler.NewTradingHandler(tradingSvc)

	auth := middleware.Auth(cfg.JWTSecret)
	staffOnly := middleware.RBAC(domain.RoleAdmin, domain.RoleCEO)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.GET("/auth/me", authHandler.Me, auth)

	// --- Key validation ---
	keys := e.Group("/v1/keys", auth)
	keys.GET("/staff/:code/validation", keysHandler.ValidateStaffKey, staffOnly)
	keys.GET("/staff/:code/watch", keysHandler.WatchStaffKey, staffOnly)
	keys.GET("/referral/:code/validation", keysHandler.ValidateReferralCode)

	// --- Licenses ---
	licenses := e.Group("/v1/licenses", auth)
	licenses.GET("/me", licenseHandler.Get)
	licenses.POST("/accounts", licenseHandler.BindAccount)
	licenses.DELETE("/accounts/:number", licenseHandler.UnbindAccount)

	// --- Trading data ---
	trading := e.Group("/v1/trading", auth)
	trading.POST("/connect", tradingHandler.Connect)
	trading.DELETE("/connect", tradingHandler.Disconnect)
	trading.GET("/accounts", tradingHandler.Accounts)
	trading.GET("/accounts/:id/daily-gain", tradingHandler.DailyGain)
	trading.GET("/accounts/:id/history", tradingHandler.History)

	// --- Function endpoints ---
	// validate-license is the public boundary called by the trading product;
	// the repair functions are operator tooling.
	e.POST("/functions/validate-license", functionsHandler.ValidateLicense)
	functions := e.Group("/functions", auth, staffOnly)
	functions.POST("/fix-handle-new-user", functionsHandler.HandleNewUser)
	functions.POST("/repair-customer-records", functionsHandler.RepairCustomerRecords)
	functions.POST("/fix-missing-user-records", functionsHandler.FixMissingUserRecords)
	functions.POST("/migrate-to-referral-codes", functionsHandler.MigrateToReferralCodes)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability & docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e, dispatcher
}
