package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	catalogdomain "github.com/smallbiznis/tillway/internal/catalog/domain"
	"github.com/smallbiznis/tillway/pkg/db/pagination"
)

type createProductRequest struct {
	Name       string          `json:"name"`
	Barcode    string          `json:"barcode"`
	BrandID    string          `json:"brand_id,omitempty"`
	CategoryID string          `json:"category_id,omitempty"`
	UnitID     string          `json:"unit_id,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	Stock      int64           `json:"stock"`
}

// CreateProduct adds a product to the caller's catalog.
func (s *Server) CreateProduct(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	create := catalogdomain.CreateProductRequest{
		Name:    strings.TrimSpace(req.Name),
		Barcode: strings.TrimSpace(req.Barcode),
		Price:   req.Price,
		Cost:    req.Cost,
		Stock:   req.Stock,
	}
	for _, ref := range []struct {
		raw  string
		dest **snowflake.ID
	}{
		{req.BrandID, &create.BrandID},
		{req.CategoryID, &create.CategoryID},
		{req.UnitID, &create.UnitID},
	} {
		if ref.raw == "" {
			continue
		}
		id, err := snowflake.ParseString(ref.raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		*ref.dest = &id
	}

	product, err := s.catalogSvc.CreateProduct(c.Request.Context(), storeID, create)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// GetProductByBarcode is the hot lookup path at the register.
func (s *Server) GetProductByBarcode(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	product, err := s.catalogSvc.GetProductByBarcode(c.Request.Context(), storeID, c.Param("barcode"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ListProducts pages through the store's catalog.
func (s *Server) ListProducts(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	products, err := s.catalogSvc.ListProducts(c.Request.Context(), storeID, p.Limit(), p.Offset())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

type updateProductRequest struct {
	Name  *string          `json:"name,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Cost  *decimal.Decimal `json:"cost,omitempty"`
}

// UpdateProduct mutates product fields.
func (s *Server) UpdateProduct(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "product id is invalid"))
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	product, err := s.catalogSvc.UpdateProduct(c.Request.Context(), storeID, id, catalogdomain.UpdateProductRequest{
		Name:  req.Name,
		Price: req.Price,
		Cost:  req.Cost,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type adjustStockRequest struct {
	Delta int64 `json:"delta"`
}

// AdjustStock applies a signed stock delta.
func (s *Server) AdjustStock(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "product id is invalid"))
		return
	}

	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	product, err := s.catalogSvc.AdjustStock(c.Request.Context(), storeID, id, req.Delta)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a product from the catalog.
func (s *Server) DeleteProduct(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "product id is invalid"))
		return
	}

	if err := s.catalogSvc.DeleteProduct(c.Request.Context(), storeID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createNamedRequest struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
}

// CreateBrand adds a brand.
func (s *Server) CreateBrand(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	var req createNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	brand, err := s.catalogSvc.CreateBrand(c.Request.Context(), storeID, strings.TrimSpace(req.Name))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, brand)
}

// ListBrands lists the store's brands.
func (s *Server) ListBrands(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	brands, err := s.catalogSvc.ListBrands(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

// CreateCategory adds a category.
func (s *Server) CreateCategory(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	var req createNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	category, err := s.catalogSvc.CreateCategory(c.Request.Context(), storeID, strings.TrimSpace(req.Name))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// ListCategories lists the store's categories.
func (s *Server) ListCategories(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	categories, err := s.catalogSvc.ListCategories(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateUnit adds a measurement unit.
func (s *Server) CreateUnit(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	var req createNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	unit, err := s.catalogSvc.CreateUnit(c.Request.Context(), storeID, strings.TrimSpace(req.Name), strings.TrimSpace(req.ShortName))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

// ListUnits lists the store's units.
func (s *Server) ListUnits(c *gin.Context) {
	storeID, ok := s.storeIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	units, err := s.catalogSvc.ListUnits(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"units": units})
}

func parseLimitOffset(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("page_size", "25"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	p := pagination.Pagination{Page: page, PageSize: limit}
	return p.Limit(), p.Offset()
}
