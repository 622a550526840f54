package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	unifieddomain "github.com/smallbiznis/tillway/internal/unified/domain"
	"github.com/smallbiznis/tillway/pkg/db/pagination"
)

func bindPagination(c *gin.Context) pagination.Pagination {
	var p pagination.Pagination
	_ = c.ShouldBindQuery(&p)
	return p
}

type createWarehouseRequest struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// CreateWarehouse adds a warehouse for the caller's store.
func (s *Server) CreateWarehouse(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	wh, err := s.unifiedSvc.CreateWarehouse(c.Request.Context(), unifieddomain.CreateWarehouseRequest{
		StoreID: storeID,
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wh)
}

// ListWarehouses lists the caller's warehouses.
func (s *Server) ListWarehouses(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	warehouses, err := s.unifiedSvc.ListWarehouses(c.Request.Context(), storeID, bindPagination(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warehouses": warehouses})
}

// ListAllWarehouses is the admin-wide listing across stores.
func (s *Server) ListAllWarehouses(c *gin.Context) {
	warehouses, err := s.unifiedSvc.ListAllWarehouses(c.Request.Context(), bindPagination(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warehouses": warehouses})
}

type createMerchantRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CreateMerchant adds a merchant for the caller's store.
func (s *Server) CreateMerchant(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	merchant, err := s.unifiedSvc.CreateMerchant(c.Request.Context(), unifieddomain.CreateMerchantRequest{
		StoreID: storeID,
		Name:    req.Name,
		Phone:   req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, merchant)
}

// ListMerchants lists the caller's merchants.
func (s *Server) ListMerchants(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	merchants, err := s.unifiedSvc.ListMerchants(c.Request.Context(), storeID, bindPagination(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"merchants": merchants})
}

type recordPaymentRequest struct {
	MerchantID    string          `json:"merchant_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
}

// RecordPayment records a payment for the caller's store.
func (s *Server) RecordPayment(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payment, err := s.unifiedSvc.RecordPayment(c.Request.Context(), unifieddomain.RecordPaymentRequest{
		StoreID:       storeID,
		MerchantID:    strings.TrimSpace(req.MerchantID),
		InvoiceNumber: req.InvoiceNumber,
		Amount:        req.Amount,
		Method:        req.Method,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// ListPayments lists the caller's payments, optionally filtered by merchant.
func (s *Server) ListPayments(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if merchantID := strings.TrimSpace(c.Query("merchant_id")); merchantID != "" {
		payments, err := s.unifiedSvc.ListPaymentsByMerchant(c.Request.Context(), merchantID, bindPagination(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"payments": payments})
		return
	}

	payments, err := s.unifiedSvc.ListPayments(c.Request.Context(), storeID, bindPagination(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// GetStoreAccount returns the caller's financial account.
func (s *Server) GetStoreAccount(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	account, err := s.unifiedSvc.GetStoreAccount(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}
