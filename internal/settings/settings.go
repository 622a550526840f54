// Package settings stores the per-store settings document. It follows the
// sharded pattern: one settings collection per store, holding a single row.
package settings

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillway/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Settings is the store configuration document.
type Settings struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Currency  string         `gorm:"type:text;not null;default:USD" json:"currency"`
	TaxRate   string         `gorm:"type:text;not null;default:0" json:"tax_rate"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// UpdateRequest replaces the mutable settings fields.
type UpdateRequest struct {
	Currency string
	TaxRate  string
	Payload  datatypes.JSON
}

// Service reads and writes one store's settings document.
type Service struct {
	resolver *tenant.Resolver
	log      *zap.Logger
	genID    *snowflake.Node
}

// ServiceParam collects settings dependencies.
type ServiceParam struct {
	fx.In

	Resolver *tenant.Resolver
	Log      *zap.Logger
	GenID    *snowflake.Node
}

// NewService builds the settings service.
func NewService(p ServiceParam) *Service {
	return &Service{
		resolver: p.Resolver,
		log:      p.Log.Named("settings.service"),
		genID:    p.GenID,
	}
}

// Get returns the store's settings, creating defaults on first access.
func (s *Service) Get(ctx context.Context, storeID string) (*Settings, error) {
	model, err := s.resolver.Model(ctx, tenant.EntitySettings, storeID)
	if err != nil {
		return nil, err
	}

	var settings Settings
	err = model.DB(ctx).Order("id ASC").First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = Settings{
			ID:        s.genID.Generate(),
			Currency:  "USD",
			TaxRate:   "0",
			UpdatedAt: time.Now().UTC(),
		}
		if err := model.DB(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update replaces the store's settings document.
func (s *Service) Update(ctx context.Context, storeID string, req UpdateRequest) (*Settings, error) {
	current, err := s.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}

	model, err := s.resolver.Model(ctx, tenant.EntitySettings, storeID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if req.Currency != "" {
		updates["currency"] = req.Currency
	}
	if req.TaxRate != "" {
		updates["tax_rate"] = req.TaxRate
	}
	if req.Payload != nil {
		updates["payload"] = req.Payload
	}
	if err := model.DB(ctx).Where("id = ?", current.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, storeID)
}

// Module provides the settings service and registers its sharded schema.
var Module = fx.Module("settings.service",
	tenant.ProvideSchema(tenant.EntitySettings, func() any { return &Settings{} }),
	fx.Provide(NewService),
)
