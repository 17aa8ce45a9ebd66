package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/middleware"
	"github.com/gamelaunch/prereg/internal/models"
	"github.com/gamelaunch/prereg/internal/services"
	apperrors "github.com/gamelaunch/prereg/pkg/errors"
	"github.com/gamelaunch/prereg/pkg/response"
)

// AuthHandler exposes login and the authenticated profile endpoint.
type AuthHandler struct {
	auth *services.AuthService
	db   *gorm.DB
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, db *gorm.DB) (*AuthHandler, error) {
	if auth == nil || db == nil {
		return nil, fmt.Errorf("auth handler: service and db are required")
	}
	return &AuthHandler{auth: auth, db: db}, nil
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Login authenticates an account and issues an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Me returns the authenticated account's own summary.
func (h *AuthHandler) Me(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var account models.Account
	err := h.db.WithContext(c.Request.Context()).Take(&account, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, services.NewAccountSummary(&account))
}
