package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/database/testutil"
	"github.com/gamelaunch/prereg/internal/models"
	"github.com/gamelaunch/prereg/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	registration, err := services.NewRegistrationService(db, nil, audit, services.RegistrationConfig{
		VerifyLinkBase: "http://localhost/api/verify",
	})
	require.NoError(t, err)
	verification, err := services.NewVerificationService(db, audit, services.DefaultReferralConfig())
	require.NoError(t, err)
	otp, err := services.NewOTPService(db, nil, audit, services.DefaultOTPConfig())
	require.NoError(t, err)
	ranking, err := services.NewRankingService(db, 50)
	require.NoError(t, err)

	prereg, err := NewPreregHandler(registration, verification, "http://localhost")
	require.NoError(t, err)
	phone, err := NewPhoneHandler(otp)
	require.NoError(t, err)
	board, err := NewRankingHandler(ranking)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/api/preregister", prereg.Register)
	r.GET("/api/verify/:token", prereg.VerifyEmail)
	r.GET("/api/ranking", board.Snapshot)
	r.GET("/api/player/by-invite/:code", prereg.LookupInvite)
	r.GET("/api/player/by-invite/:code/qr", prereg.InviteQR)
	r.POST("/api/phone/send-otp", phone.SendOTP)
	r.POST("/api/phone/verify-otp", phone.VerifyOTP)

	return &testEnv{db: db, router: r}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRegisterVerifyFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/preregister", gin.H{
		"name":     "Flow Tester",
		"email":    "flow@example.com",
		"phone":    "+55 11 99999-0000",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeEnvelope(t, w)
	require.True(t, resp.Success)

	var summary services.AccountSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.NotEmpty(t, summary.InviteCode)
	assert.Zero(t, summary.Points)

	// The token never leaves the API payload; fetch it from the store.
	var account models.Account
	require.NoError(t, env.db.Take(&account, "id = ?", summary.ID).Error)
	assert.NotContains(t, w.Body.String(), account.VerificationToken)

	w = env.get(t, "/api/verify/"+account.VerificationToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.VerificationResult
	resp = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.False(t, result.AlreadyVerified)
	assert.Equal(t, 10, result.Account.Points)

	w = env.get(t, "/api/verify/"+account.VerificationToken)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.AlreadyVerified)

	w = env.get(t, "/api/verify/bogus-token")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterValidationResponse(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/preregister", gin.H{
		"name":     "ab",
		"email":    "not-an-email",
		"password": "x",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestRegisterDuplicateEmailResponse(t *testing.T) {
	env := newTestEnv(t)

	payload := gin.H{
		"name":     "Dup Tester",
		"email":    "dup@example.com",
		"phone":    "5511999990000",
		"password": "hunter22",
	}
	require.Equal(t, http.StatusCreated, env.postJSON(t, "/api/preregister", payload).Code)

	w := env.postJSON(t, "/api/preregister", payload)
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "EMAIL_TAKEN", resp.Error.Code)
}

func TestOTPEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/preregister", gin.H{
		"name":     "Phone Tester",
		"email":    "phone@example.com",
		"phone":    "5511988887777",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.postJSON(t, "/api/phone/send-otp", gin.H{
		"email": "phone@example.com",
		"phone": "5511988887777",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var account models.Account
	require.NoError(t, env.db.Take(&account, "email = ?", "phone@example.com").Error)
	require.NotNil(t, account.PhoneOTPCode)

	w = env.postJSON(t, "/api/phone/verify-otp", gin.H{
		"email": "phone@example.com",
		"code":  "999999",
	})
	if *account.PhoneOTPCode != "999999" {
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	}

	w = env.postJSON(t, "/api/phone/verify-otp", gin.H{
		"email": "phone@example.com",
		"code":  *account.PhoneOTPCode,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Unknown account is a 404.
	w = env.postJSON(t, "/api/phone/send-otp", gin.H{
		"email": "ghost@example.com",
		"phone": "5511900000000",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRankingEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/preregister", gin.H{
		"name":     "Board Tester",
		"email":    "board@example.com",
		"phone":    "5511977776666",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var account models.Account
	require.NoError(t, env.db.Take(&account, "email = ?", "board@example.com").Error)
	require.Equal(t, http.StatusOK, env.get(t, "/api/verify/"+account.VerificationToken).Code)

	w = env.get(t, "/api/ranking")
	require.Equal(t, http.StatusOK, w.Code)

	var snap services.RankingSnapshot
	resp := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.EqualValues(t, 1, snap.TotalAccounts)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, 1, snap.Entries[0].Position)
	assert.Equal(t, "Board Tester", snap.Entries[0].Name)
	assert.Equal(t, 10, snap.Entries[0].Points)
}

func TestInviteLookupAndQR(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/preregister", gin.H{
		"name":     "Invite Tester",
		"email":    "invite@example.com",
		"phone":    "5511966665555",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeEnvelope(t, w)
	var summary services.AccountSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))

	w = env.get(t, "/api/player/by-invite/"+summary.InviteCode)
	require.Equal(t, http.StatusOK, w.Code)

	var profile services.PublicProfile
	resp = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, "Invite Tester", profile.Name)
	assert.False(t, profile.EmailVerified)

	w = env.get(t, "/api/player/by-invite/"+summary.InviteCode+"/qr")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())

	w = env.get(t, "/api/player/by-invite/NOPE9999")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
