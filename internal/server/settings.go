package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/smallbiznis/tillway/internal/settings"
)

// GetSettings returns the store's settings, creating defaults on first
// access.
func (s *Server) GetSettings(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	cfg, err := s.settingsSvc.Get(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type updateSettingsRequest struct {
	Currency string         `json:"currency,omitempty"`
	TaxRate  string         `json:"tax_rate,omitempty"`
	Payload  datatypes.JSON `json:"payload,omitempty"`
}

// UpdateSettings mutates the store's settings document.
func (s *Server) UpdateSettings(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !s.requireAdmin(c) {
		return
	}

	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cfg, err := s.settingsSvc.Update(c.Request.Context(), storeID, settings.UpdateRequest{
		Currency: strings.TrimSpace(req.Currency),
		TaxRate:  strings.TrimSpace(req.TaxRate),
		Payload:  req.Payload,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
