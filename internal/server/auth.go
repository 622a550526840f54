package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "github.com/smallbiznis/tillway/internal/auth/domain"
)

type loginRequest struct {
	StoreID  string `json:"store_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login issues a session token for a store user.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		StoreID:  strings.TrimSpace(req.StoreID),
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"store_id":   session.StoreID,
		"role":       session.Role,
		"expires_at": session.ExpiresAt,
	})
}

// Logout revokes the caller's session token.
func (s *Server) Logout(c *gin.Context) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.Fields(header)
	if len(parts) == 2 && parts[0] == "Bearer" {
		if err := s.authSvc.Logout(c.Request.Context(), parts[1]); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}
