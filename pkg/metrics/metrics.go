package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registrations counts pre-registration attempts by result (created|conflict|error).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prereg_registrations_total",
			Help: "Total number of pre-registration attempts",
		},
		[]string{"result"},
	)

	// Verifications counts email confirmation attempts by result
	// (verified|already_verified|not_found|error).
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prereg_verifications_total",
			Help: "Total number of email verification attempts",
		},
		[]string{"result"},
	)

	// PointsAwarded accumulates referral points by bonus tier (player|referrer|grand).
	PointsAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prereg_points_awarded_total",
			Help: "Total referral points credited, by bonus tier",
		},
		[]string{"bonus"},
	)

	// OTPMessages counts one-time code operations (kind: issue|verify) and their outcome.
	OTPMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prereg_otp_messages_total",
			Help: "Total one-time code issues and verifications",
		},
		[]string{"kind", "result"},
	)

	// LoginAttempts records sign-in attempts by result (success|rejected|unverified).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prereg_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prereg_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
