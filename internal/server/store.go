package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
)

type createStoreRequest struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix,omitempty"`
}

// CreateStore onboards a new store: directory record, shard assignment,
// tenant collections and the default admin account. Collection provisioning
// and admin creation are best-effort; the resolver provisions lazily on
// first access anyway.
func (s *Server) CreateStore(c *gin.Context) {
	var req createStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	store, err := s.storeSvc.Create(ctx, storedomain.CreateStoreRequest{
		Name:   strings.TrimSpace(req.Name),
		Prefix: strings.TrimSpace(req.Prefix),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.resolver.ProvisionStore(ctx, store); err != nil {
		s.log.Warn("store collection provisioning incomplete",
			zap.String("store_id", store.StoreID),
			zap.Error(err),
		)
	}
	if err := s.authSvc.EnsureStoreAdmin(ctx, store.StoreID); err != nil {
		s.log.Warn("default admin creation failed",
			zap.String("store_id", store.StoreID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusCreated, store)
}

// GetStore returns one directory record.
func (s *Server) GetStore(c *gin.Context) {
	storeID := c.Param("id")
	if storeID == "" {
		AbortWithError(c, newValidationError("id", "missing_id", "store id is required"))
		return
	}

	store, err := s.storeSvc.Get(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, store)
}

// ListStores returns the whole directory.
func (s *Server) ListStores(c *gin.Context) {
	stores, err := s.storeSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

// DeleteStore removes the directory record. Tenant collections are left in
// place on the shard.
func (s *Server) DeleteStore(c *gin.Context) {
	storeID := c.Param("id")
	if storeID == "" {
		AbortWithError(c, newValidationError("id", "missing_id", "store id is required"))
		return
	}

	if err := s.storeSvc.Delete(c.Request.Context(), storeID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
