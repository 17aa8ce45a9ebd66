package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamelaunch/prereg/internal/app"
	iauth "github.com/gamelaunch/prereg/internal/auth"
	"github.com/gamelaunch/prereg/internal/database/testutil"
	"github.com/gamelaunch/prereg/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret-router-test-secret"})
	require.NoError(t, err)

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	registration, err := services.NewRegistrationService(db, nil, audit, services.RegistrationConfig{
		VerifyLinkBase: cfg.Links.VerifyBase,
	})
	require.NoError(t, err)
	verification, err := services.NewVerificationService(db, audit, services.DefaultReferralConfig())
	require.NoError(t, err)
	otp, err := services.NewOTPService(db, nil, audit, services.DefaultOTPConfig())
	require.NoError(t, err)
	ranking, err := services.NewRankingService(db, cfg.Ranking.Limit)
	require.NoError(t, err)
	auth, err := services.NewAuthService(db, jwt, audit)
	require.NoError(t, err)

	router, err := NewRouter(db, jwt, cfg, Services{
		Registration: registration,
		Verification: verification,
		OTP:          otp,
		Ranking:      ranking,
		Auth:         auth,
	})
	require.NoError(t, err)
	return router
}

func TestRouterWiring(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ranking", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "600", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
