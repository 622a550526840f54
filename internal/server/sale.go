package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	salesdomain "github.com/smallbiznis/tillway/internal/sales/domain"
)

type createSaleLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type createSaleRequest struct {
	CustomerID string                  `json:"customer_id,omitempty"`
	Lines      []createSaleLineRequest `json:"lines"`
	Discount   decimal.Decimal         `json:"discount"`
	Tax        decimal.Decimal         `json:"tax"`
}

// CreateSale records a completed sale and decrements stock atomically.
func (s *Server) CreateSale(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	create := salesdomain.CreateSaleRequest{
		Discount: req.Discount,
		Tax:      req.Tax,
	}
	if req.CustomerID != "" {
		id, err := snowflake.ParseString(req.CustomerID)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		create.CustomerID = &id
	}
	for _, line := range req.Lines {
		id, err := snowflake.ParseString(line.ProductID)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		create.Lines = append(create.Lines, salesdomain.CreateSaleLine{
			ProductID: id,
			Quantity:  line.Quantity,
		})
	}

	sale, err := s.salesSvc.CreateSale(c.Request.Context(), storeID, create)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// GetSaleByInvoice looks up a sale by invoice number.
func (s *Server) GetSaleByInvoice(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	sale, err := s.salesSvc.GetSaleByInvoice(c.Request.Context(), storeID, c.Param("invoice"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// ListSales pages through the store's sales.
func (s *Server) ListSales(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit, offset := parseLimitOffset(c)
	sales, err := s.salesSvc.ListSales(c.Request.Context(), storeID, limit, offset)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

// ProcessReturn restores stock and marks the sale returned.
func (s *Server) ProcessReturn(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	sale, err := s.salesSvc.ProcessReturn(c.Request.Context(), storeID, c.Param("invoice"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
