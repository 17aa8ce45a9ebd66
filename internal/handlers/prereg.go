package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/gamelaunch/prereg/internal/services"
	apperrors "github.com/gamelaunch/prereg/pkg/errors"
	"github.com/gamelaunch/prereg/pkg/response"
)

// PreregHandler exposes the sign-up, email confirmation, and invite lookup
// endpoints.
type PreregHandler struct {
	registration *services.RegistrationService
	verification *services.VerificationService

	// inviteLinkBase is the public URL invite QR codes point at.
	inviteLinkBase string
}

// NewPreregHandler constructs a PreregHandler.
func NewPreregHandler(registration *services.RegistrationService, verification *services.VerificationService, inviteLinkBase string) (*PreregHandler, error) {
	if registration == nil || verification == nil {
		return nil, fmt.Errorf("prereg handler: services are required")
	}
	return &PreregHandler{
		registration:   registration,
		verification:   verification,
		inviteLinkBase: strings.TrimRight(inviteLinkBase, "/"),
	}, nil
}

type registerRequest struct {
	Name         string `json:"name" validate:"required,min=3,max=32"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,min=8,max=20"`
	Password     string `json:"password" validate:"required,min=6,max=72"`
	ReferrerCode string `json:"referrer_code" validate:"omitempty,max=32"`
}

// Register creates a new pre-registration.
func (h *PreregHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	summary, err := h.registration.Register(c.Request.Context(), services.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     req.Password,
		ReferrerCode: req.ReferrerCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, summary)
}

// VerifyEmail confirms the account behind a verification token.
func (h *PreregHandler) VerifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	result, err := h.verification.ConfirmEmail(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// LookupInvite returns the public profile behind an invite code.
func (h *PreregHandler) LookupInvite(c *gin.Context) {
	profile, err := h.registration.LookupByInviteCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}

// InviteQR renders a PNG QR code pointing at the invite landing page.
func (h *PreregHandler) InviteQR(c *gin.Context) {
	profile, err := h.registration.LookupByInviteCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	link := h.inviteLinkBase + "/?ref=" + profile.InviteCode
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "could not render QR code"))
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}
