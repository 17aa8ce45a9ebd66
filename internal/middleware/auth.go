package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/gamelaunch/prereg/internal/auth"
	apperrors "github.com/gamelaunch/prereg/pkg/errors"
	"github.com/gamelaunch/prereg/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxAccountIDKey = "accountID"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimSpace(authz[7:]))
		if err != nil {
			// Normalise all validation failures to 401.
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxAccountIDKey, claims.AccountID)

		c.Next()
	}
}

// AccountID extracts the authenticated account id from the request context.
func AccountID(c *gin.Context) (string, bool) {
	id, ok := c.Get(CtxAccountIDKey)
	if !ok {
		return "", false
	}
	str, ok := id.(string)
	return str, ok && str != ""
}
