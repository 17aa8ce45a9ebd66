package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/app"
	iauth "github.com/gamelaunch/prereg/internal/auth"
	"github.com/gamelaunch/prereg/internal/cache"
	"github.com/gamelaunch/prereg/internal/handlers"
	"github.com/gamelaunch/prereg/internal/middleware"
	"github.com/gamelaunch/prereg/internal/services"
)

// Services bundles the constructed domain services the router exposes.
type Services struct {
	Registration *services.RegistrationService
	Verification *services.VerificationService
	OTP          *services.OTPService
	Ranking      *services.RankingService
	Auth         *services.AuthService
}

// Per-route request caps, counted per client IP within a one minute window.
const (
	registerPerMinute = 120
	verifyPerMinute   = 600
	rankingPerMinute  = 600
	sendOTPPerMinute  = 20
	checkOTPPerMinute = 60
	loginPerMinute    = 60
	invitePerMinute   = 300
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, svc Services) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svc.Registration == nil || svc.Verification == nil || svc.OTP == nil || svc.Ranking == nil || svc.Auth == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	var rates middleware.RateStore
	if cfg.RateLimit.Enabled {
		switch cfg.RateLimit.Store {
		case "database":
			rates = middleware.NewDatabaseRateStore(cache.NewDatabaseStore(db))
		default:
			rates = middleware.NewMemoryRateStore()
		}
	}
	limit := func(max int) gin.HandlerFunc {
		return middleware.RateLimit(rates, max, time.Minute)
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/health", healthHandler.Check)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	preregHandler, err := handlers.NewPreregHandler(svc.Registration, svc.Verification, cfg.Links.InviteBase)
	if err != nil {
		return nil, err
	}
	phoneHandler, err := handlers.NewPhoneHandler(svc.OTP)
	if err != nil {
		return nil, err
	}
	rankingHandler, err := handlers.NewRankingHandler(svc.Ranking)
	if err != nil {
		return nil, err
	}
	authHandler, err := handlers.NewAuthHandler(svc.Auth, db)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	{
		api.POST("/preregister", limit(registerPerMinute), preregHandler.Register)
		api.GET("/verify/:token", limit(verifyPerMinute), preregHandler.VerifyEmail)
		api.GET("/ranking", limit(rankingPerMinute), rankingHandler.Snapshot)

		api.GET("/player/by-invite/:code", limit(invitePerMinute), preregHandler.LookupInvite)
		api.GET("/player/by-invite/:code/qr", limit(invitePerMinute), preregHandler.InviteQR)

		phone := api.Group("/phone")
		{
			phone.POST("/send-otp", limit(sendOTPPerMinute), phoneHandler.SendOTP)
			phone.POST("/verify-otp", limit(checkOTPPerMinute), phoneHandler.VerifyOTP)
		}

		api.POST("/login", limit(loginPerMinute), authHandler.Login)
		api.GET("/me", middleware.Auth(jwt), authHandler.Me)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
