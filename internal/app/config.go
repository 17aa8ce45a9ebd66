package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the runtime configuration for the pre-registration backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Email       EmailConfig       `mapstructure:"email"`
	WhatsApp    WhatsAppConfig    `mapstructure:"whatsapp"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Referral    ReferralConfig    `mapstructure:"referral"`
	OTP         OTPConfig         `mapstructure:"otp"`
	Ranking     RankingConfig     `mapstructure:"ranking"`
	Links       LinksConfig       `mapstructure:"links"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Name     string            `mapstructure:"name"`
	Options  map[string]string `mapstructure:"options"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for the confirmation email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WhatsAppConfig configures one-time code delivery over the Cloud API.
type WhatsAppConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Token    string        `mapstructure:"token"`
	PhoneID  string        `mapstructure:"phone_id"`
	Template string        `mapstructure:"template"`
	Language string        `mapstructure:"language"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures signed access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// ReferralConfig fixes the bonus amounts credited on email confirmation.
type ReferralConfig struct {
	PlayerBonus   int `mapstructure:"player_bonus"`
	ReferrerBonus int `mapstructure:"referrer_bonus"`
	GrandBonus    int `mapstructure:"grand_bonus"`
}

// OTPConfig tunes phone verification codes.
type OTPConfig struct {
	Digits int           `mapstructure:"digits"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// RankingConfig bounds the public leaderboard.
type RankingConfig struct {
	Limit int `mapstructure:"limit"`
}

// LinksConfig carries the public URLs embedded in outbound messages.
type LinksConfig struct {
	VerifyBase string `mapstructure:"verify_base"`
	InviteBase string `mapstructure:"invite_base"`
}

// RateLimitConfig selects the rate limit counter backend.
type RateLimitConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Store   string `mapstructure:"store"` // memory | database
}

// MaintenanceConfig schedules the background cleanup jobs.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	OTPSweepSchedule   string `mapstructure:"otp_sweep_schedule"`
	AuditSweepSchedule string `mapstructure:"audit_sweep_schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// MonitoringConfig toggles the metrics endpoint.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics exposure.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig initialises configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("PREREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/prereg.sqlite")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("whatsapp.enabled", false)
	v.SetDefault("whatsapp.template", "otp_login")
	v.SetDefault("whatsapp.language", "pt_BR")
	v.SetDefault("whatsapp.timeout", "10s")

	v.SetDefault("auth.jwt.issuer", "prereg")
	v.SetDefault("auth.jwt.access_token_ttl", "24h")

	v.SetDefault("referral.player_bonus", 10)
	v.SetDefault("referral.referrer_bonus", 40)
	v.SetDefault("referral.grand_bonus", 10)

	v.SetDefault("otp.digits", 6)
	v.SetDefault("otp.ttl", "10m")

	v.SetDefault("ranking.limit", 50)

	v.SetDefault("links.verify_base", "http://localhost:8000/api/verify")
	v.SetDefault("links.invite_base", "http://localhost:8000")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.store", "memory")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.otp_sweep_schedule", "@every 1h")
	v.SetDefault("maintenance.audit_sweep_schedule", "@daily")
	v.SetDefault("maintenance.audit_retention_days", 90)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
