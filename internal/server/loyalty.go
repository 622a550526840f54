package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	loyaltydomain "github.com/smallbiznis/tillway/internal/loyalty/domain"
)

type earnPointsRequest struct {
	CustomerID     string          `json:"customer_id"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	Percentage     decimal.Decimal `json:"percentage,omitempty"`
	InvoiceNumber  string          `json:"invoice_number,omitempty"`
}

// EarnPoints credits loyalty points for a purchase at the caller's store.
// The customer id references the store-local customer record.
func (s *Server) EarnPoints(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req earnPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	customerID, err := snowflake.ParseString(req.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "must be a valid id"))
		return
	}

	result, err := s.loyaltySvc.Earn(c.Request.Context(), loyaltydomain.EarnRequest{
		StoreID:        storeID,
		CustomerID:     customerID,
		PurchaseAmount: req.PurchaseAmount,
		Percentage:     req.Percentage,
		InvoiceNumber:  req.InvoiceNumber,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type redeemPointsRequest struct {
	Identifier    string `json:"identifier"`
	Points        int64  `json:"points"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
}

// RedeemPoints spends points at the caller's store, regardless of where
// they were earned.
func (s *Server) RedeemPoints(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req redeemPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.loyaltySvc.Redeem(c.Request.Context(), loyaltydomain.RedeemRequest{
		Identifier:    req.Identifier,
		StoreID:       storeID,
		Points:        req.Points,
		InvoiceNumber: req.InvoiceNumber,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// LoyaltyBalance returns the global customer's running balance.
func (s *Server) LoyaltyBalance(c *gin.Context) {
	if _, ok := s.storeIDFromSession(c); !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	identifier := c.Query("identifier")
	customer, balance, err := s.loyaltySvc.Balance(c.Request.Context(), identifier)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": customer, "balance": balance})
}

// LoyaltyHistory returns the customer's ledger entries, newest first.
func (s *Server) LoyaltyHistory(c *gin.Context) {
	if _, ok := s.storeIDFromSession(c); !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	history, err := s.loyaltySvc.History(c.Request.Context(), c.Query("identifier"), bindPagination(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": history})
}

// LoyaltyStoreAccount returns the caller's points settlement account.
func (s *Server) LoyaltyStoreAccount(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	account, err := s.loyaltySvc.StoreAccount(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}
