package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/api"
	"github.com/gamelaunch/prereg/internal/app"
	"github.com/gamelaunch/prereg/internal/app/maintenance"
	iauth "github.com/gamelaunch/prereg/internal/auth"
	"github.com/gamelaunch/prereg/internal/database"
	"github.com/gamelaunch/prereg/internal/services"
	"github.com/gamelaunch/prereg/internal/whatsapp"
	"github.com/gamelaunch/prereg/pkg/crypto"
	"github.com/gamelaunch/prereg/pkg/logger"
	"github.com/gamelaunch/prereg/pkg/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prereg-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if err := ensureJWTSecret(cfg, log); err != nil {
		return err
	}

	db, err := database.Open(cfg.Database.StoreConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDatabase(db, log)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}

	waClient, err := whatsapp.NewClient(cfg.WhatsApp.Settings())
	if err != nil {
		return fmt.Errorf("initialise whatsapp client: %w", err)
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return fmt.Errorf("initialise audit service: %w", err)
	}

	registrationSvc, err := services.NewRegistrationService(db, mailer, auditSvc, services.RegistrationConfig{
		VerifyLinkBase:  cfg.Links.VerifyBase,
		DeliveryTimeout: cfg.Email.SMTP.Timeout,
	})
	if err != nil {
		return fmt.Errorf("initialise registration service: %w", err)
	}

	verificationSvc, err := services.NewVerificationService(db, auditSvc, services.ReferralConfig{
		PlayerBonus:   cfg.Referral.PlayerBonus,
		ReferrerBonus: cfg.Referral.ReferrerBonus,
		GrandBonus:    cfg.Referral.GrandBonus,
	})
	if err != nil {
		return fmt.Errorf("initialise verification service: %w", err)
	}

	otpSvc, err := services.NewOTPService(db, waClient, auditSvc, services.OTPConfig{
		Digits: cfg.OTP.Digits,
		TTL:    cfg.OTP.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise otp service: %w", err)
	}

	rankingSvc, err := services.NewRankingService(db, cfg.Ranking.Limit)
	if err != nil {
		return fmt.Errorf("initialise ranking service: %w", err)
	}

	authSvc, err := services.NewAuthService(db, jwtService, auditSvc)
	if err != nil {
		return fmt.Errorf("initialise auth service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		cleaner := maintenance.NewCleaner(db, auditSvc,
			maintenance.WithOTPSchedule(cfg.Maintenance.OTPSweepSchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSweepSchedule),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		)
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer func() {
			stopCtx := cleaner.Stop()
			if err := cleaner.RunOnce(stopCtx); err != nil {
				log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
			}
		}()
	}

	router, err := api.NewRouter(db, jwtService, cfg, api.Services{
		Registration: registrationSvc,
		Verification: verificationSvc,
		OTP:          otpSvc,
		Ranking:      rankingSvc,
		Auth:         authSvc,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

// ensureJWTSecret falls back to an ephemeral secret so a bare checkout still
// boots. Tokens issued with a generated secret do not survive a restart.
func ensureJWTSecret(cfg *app.Config, log *zap.Logger) error {
	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret != "" {
		return nil
	}

	secret, err := crypto.GenerateToken(48)
	if err != nil {
		return fmt.Errorf("generate jwt secret: %w", err)
	}
	cfg.Auth.JWT.Secret = secret
	log.Warn("auth.jwt.secret not configured; using an ephemeral secret")
	return nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable on shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
