package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/tillway/internal/customer/domain"
	"github.com/smallbiznis/tillway/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceParam collects customer dependencies.
type ServiceParam struct {
	fx.In

	Resolver *tenant.Resolver
	Log      *zap.Logger
	GenID    *snowflake.Node
}

// Service implements store-local customers over sharded collections.
type Service struct {
	resolver *tenant.Resolver
	log      *zap.Logger
	genID    *snowflake.Node
}

// NewService builds the customer service.
func NewService(p ServiceParam) customerdomain.Service {
	return &Service{
		resolver: p.Resolver,
		log:      p.Log.Named("customer.service"),
		genID:    p.GenID,
	}
}

// Create registers a customer in the store's collection.
func (s *Service) Create(ctx context.Context, storeID string, req customerdomain.CreateCustomerRequest) (*customerdomain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, customerdomain.ErrInvalidName
	}

	model, err := s.resolver.Model(ctx, tenant.EntityCustomers, storeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	customer := customerdomain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := model.DB(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetByID fetches one customer.
func (s *Service) GetByID(ctx context.Context, storeID string, id snowflake.ID) (*customerdomain.Customer, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityCustomers, storeID)
	if err != nil {
		return nil, err
	}
	var customer customerdomain.Customer
	if err := model.DB(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, customerdomain.ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// List pages through the store's customers.
func (s *Service) List(ctx context.Context, storeID string, limit, offset int) ([]customerdomain.Customer, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityCustomers, storeID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var customers []customerdomain.Customer
	if err := model.DB(ctx).Order("name ASC").Limit(limit).Offset(offset).Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// Delete removes a customer record.
func (s *Service) Delete(ctx context.Context, storeID string, id snowflake.ID) error {
	model, err := s.resolver.Model(ctx, tenant.EntityCustomers, storeID)
	if err != nil {
		return err
	}
	result := model.DB(ctx).Where("id = ?", id).Delete(&customerdomain.Customer{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return customerdomain.ErrCustomerNotFound
	}
	return nil
}

// RecordPayment stores a payment against a store-local customer.
func (s *Service) RecordPayment(ctx context.Context, storeID string, req customerdomain.RecordPaymentRequest) (*customerdomain.CustomerPayment, error) {
	if req.Amount.Sign() <= 0 {
		return nil, customerdomain.ErrInvalidAmount
	}
	if _, err := s.GetByID(ctx, storeID, req.CustomerID); err != nil {
		return nil, err
	}

	model, err := s.resolver.Model(ctx, tenant.EntityCustomerPayments, storeID)
	if err != nil {
		return nil, err
	}
	payment := customerdomain.CustomerPayment{
		ID:            s.genID.Generate(),
		CustomerID:    req.CustomerID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Amount:        req.Amount,
		Method:        strings.TrimSpace(req.Method),
		CreatedAt:     time.Now().UTC(),
	}
	if err := model.DB(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListPayments returns a customer's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, storeID string, customerID snowflake.ID) ([]customerdomain.CustomerPayment, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityCustomerPayments, storeID)
	if err != nil {
		return nil, err
	}
	var payments []customerdomain.CustomerPayment
	if err := model.DB(ctx).Where("customer_id = ?", customerID).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
