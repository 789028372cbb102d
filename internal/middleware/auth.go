// File: internal/middleware/auth.go
package middleware

import (
	"strings"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequireSession authenticates API requests from the session cookie or an
// "Authorization: Bearer <session token>" header and answers 401 otherwise.
func RequireSession(decoder TokenDecoder, revoked RevocationList, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")
	return func(c *gin.Context) {
		raw := session.TokenFromRequest(c.Request)
		if raw == "" {
			raw = bearerToken(c.GetHeader(common.AuthorizationHeader))
		}
		if raw == "" {
			log.Debug("No session presented")
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("A session is required."))
			return
		}

		tok, err := decoder.Decode(raw)
		if err != nil || !tok.Authenticated() {
			log.Debug("Session token rejected", zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Session is invalid or expired."))
			return
		}
		if revoked != nil && revoked.IsBlocklisted(tok.ID) {
			log.Debug("Revoked session presented", zap.String("jti", tok.ID))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Session has been signed out."))
			return
		}

		c.Set(common.UserIDKey, tok.Subject)
		c.Set(common.UserEmailKey, tok.Email)
		c.Set(common.UserRoleKey, tok.Role)
		c.Set(common.SessionTokenKey, tok)
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], common.AuthorizationTypeBearer) {
		return ""
	}
	return parts[1]
}

// GetUserIDFromContext retrieves the user ID from the Gin context.
func GetUserIDFromContext(c *gin.Context) string {
	return c.GetString(common.UserIDKey)
}

// GetUserRoleFromContext retrieves the user role from the Gin context.
func GetUserRoleFromContext(c *gin.Context) string {
	return c.GetString(common.UserRoleKey)
}

// GetSessionTokenFromContext retrieves the decoded session token, or nil.
func GetSessionTokenFromContext(c *gin.Context) *session.Token {
	val, exists := c.Get(common.SessionTokenKey)
	if !exists {
		return nil
	}
	tok, _ := val.(*session.Token)
	return tok
}

// RoleAuthMiddleware checks that the authenticated user has one of the allowed roles.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := GetUserRoleFromContext(c)
		if userRole == "" {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("User role not found in context."))
			return
		}
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
	}
}
