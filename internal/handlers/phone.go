package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamelaunch/prereg/internal/services"
	"github.com/gamelaunch/prereg/pkg/response"
)

// PhoneHandler exposes the one-time code issue and confirm endpoints.
type PhoneHandler struct {
	otp *services.OTPService
}

// NewPhoneHandler constructs a PhoneHandler.
func NewPhoneHandler(otp *services.OTPService) (*PhoneHandler, error) {
	if otp == nil {
		return nil, fmt.Errorf("phone handler: otp service is required")
	}
	return &PhoneHandler{otp: otp}, nil
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,min=8,max=20"`
}

// SendOTP issues a fresh verification code to the account's phone.
func (h *PhoneHandler) SendOTP(c *gin.Context) {
	var req sendOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.otp.IssueCode(c.Request.Context(), req.Email, req.Phone); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "verification code sent")
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyOTP consumes a pending verification code.
func (h *PhoneHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.otp.VerifyCode(c.Request.Context(), req.Email, req.Code); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "phone number confirmed")
}
