package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "github.com/smallbiznis/tillway/internal/auth/domain"
)

const (
	contextStoreIDKey = "store_id"
	contextUserIDKey  = "user_id"
	contextRoleKey    = "role"
)

// SessionRequired authenticates the bearer token and binds the caller's
// store to the request context. Handlers never accept a store id from the
// client on store-scoped routes.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authSvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextStoreIDKey, session.StoreID)
		c.Set(contextUserIDKey, session.UserID.String())
		c.Set(contextRoleKey, string(session.Role))
		c.Next()
	}
}

// storeIDFromSession returns the store bound by SessionRequired.
func (s *Server) storeIDFromSession(c *gin.Context) (string, bool) {
	storeID := c.GetString(contextStoreIDKey)
	if storeID == "" {
		return "", false
	}
	return storeID, true
}

// requireAdmin aborts unless the session carries the admin role.
func (s *Server) requireAdmin(c *gin.Context) bool {
	if c.GetString(contextRoleKey) != string(authdomain.RoleAdmin) {
		AbortWithError(c, apiError{Status: http.StatusForbidden, Code: "forbidden"})
		return false
	}
	return true
}
