package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	customerdomain "github.com/smallbiznis/tillway/internal/customer/domain"
)

type createCustomerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// CreateCustomer registers a store-local customer.
func (s *Server) CreateCustomer(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customer, err := s.customerSvc.Create(c.Request.Context(), storeID, customerdomain.CreateCustomerRequest{
		Name:    strings.TrimSpace(req.Name),
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

// GetCustomer returns one customer.
func (s *Server) GetCustomer(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "customer id is invalid"))
		return
	}

	customer, err := s.customerSvc.GetByID(c.Request.Context(), storeID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// ListCustomers pages through the store's customers.
func (s *Server) ListCustomers(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit, offset := parseLimitOffset(c)
	customers, err := s.customerSvc.List(c.Request.Context(), storeID, limit, offset)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

// DeleteCustomer removes a customer.
func (s *Server) DeleteCustomer(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "customer id is invalid"))
		return
	}

	if err := s.customerSvc.Delete(c.Request.Context(), storeID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type recordCustomerPaymentRequest struct {
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
}

// RecordCustomerPayment stores a payment against a customer balance.
func (s *Server) RecordCustomerPayment(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "customer id is invalid"))
		return
	}

	var req recordCustomerPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payment, err := s.customerSvc.RecordPayment(c.Request.Context(), storeID, customerdomain.RecordPaymentRequest{
		CustomerID:    id,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Amount:        req.Amount,
		Method:        strings.TrimSpace(req.Method),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// ListCustomerPayments lists a customer's payments.
func (s *Server) ListCustomerPayments(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "customer id is invalid"))
		return
	}

	payments, err := s.customerSvc.ListPayments(c.Request.Context(), storeID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
