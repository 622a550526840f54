package expiry

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	loyaltydomain "github.com/smallbiznis/tillway/internal/loyalty/domain"
	"github.com/smallbiznis/tillway/internal/observability/metrics"
)

// Params declares the dependencies of the expiry worker.
type Params struct {
	fx.In

	DB     *gorm.DB `name:"control"`
	Log    *zap.Logger
	GenID  *snowflake.Node
	Config Config `optional:"true"`
}

// Worker sweeps earned loyalty points past their expiry date. Each expired
// entry produces an offsetting ledger transaction keyed by the source earn,
// so re-running a sweep never expires the same points twice.
type Worker struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	cfg   Config
}

// NewWorker constructs the expiry worker.
func NewWorker(p Params) *Worker {
	cfg := p.Config.withDefaults()
	return &Worker{
		db:    p.DB,
		log:   p.Log.Named("loyalty.expiry"),
		genID: p.GenID,
		cfg:   cfg,
	}
}

// RunForever sweeps on the poll interval until the context is cancelled.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(); err != nil {
			w.log.Warn("points expiry run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single bounded sweep.
func (w *Worker) RunOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.RunTimeout)
	defer cancel()

	_, err := w.ProcessBatch(ctx, w.cfg.BatchSize)
	return err
}

// ProcessBatch expires up to limit earned transactions and returns how many
// were processed.
func (w *Worker) ProcessBatch(ctx context.Context, limit int) (int, error) {
	if w.db == nil {
		return 0, errors.New("expiry_worker_unavailable")
	}
	if limit <= 0 {
		limit = w.cfg.BatchSize
	}

	now := time.Now().UTC()
	processed := 0
	var totalExpired int64

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidates, err := w.lockExpirable(tx, now, limit)
		if err != nil {
			return err
		}

		for _, earned := range candidates {
			expired, err := w.expireTransaction(tx, earned, now)
			if err != nil {
				return err
			}
			processed++
			totalExpired += expired
		}
		return nil
	})
	if err != nil {
		return processed, err
	}

	if totalExpired > 0 {
		metrics.Routing().ObservePointsExpired(totalExpired)
		w.log.Info("points expired",
			zap.Int("transactions", processed),
			zap.Int64("points", totalExpired),
		)
	}
	return processed, nil
}

// lockExpirable finds earned transactions past expiry that have no
// offsetting expired entry yet.
func (w *Worker) lockExpirable(tx *gorm.DB, now time.Time, limit int) ([]loyaltydomain.PointsTransaction, error) {
	var out []loyaltydomain.PointsTransaction
	sub := tx.Model(&loyaltydomain.PointsTransaction{}).
		Select("source_transaction_id").
		Where("type = ? AND source_transaction_id IS NOT NULL", loyaltydomain.TransactionExpired)

	err := tx.Model(&loyaltydomain.PointsTransaction{}).
		Where("type = ? AND expires_at IS NOT NULL AND expires_at <= ?", loyaltydomain.TransactionEarned, now).
		Where("id NOT IN (?)", sub).
		Order("expires_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// expireTransaction writes the offsetting ledger entry and deducts the
// balance. The deduction is capped at the customer's available points, since
// some of the earned points may already have been redeemed.
func (w *Worker) expireTransaction(tx *gorm.DB, earned loyaltydomain.PointsTransaction, now time.Time) (int64, error) {
	var balance loyaltydomain.PointsBalance
	err := tx.First(&balance, "customer_id = ?", earned.CustomerID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	toExpire := earned.Points
	if toExpire > balance.AvailablePoints {
		toExpire = balance.AvailablePoints
	}
	if toExpire < 0 {
		toExpire = 0
	}

	// The offset deducts points, so it carries a negative delta like a
	// spent entry.
	sourceID := earned.ID
	offset := loyaltydomain.PointsTransaction{
		ID:                  w.genID.Generate(),
		CustomerID:          earned.CustomerID,
		StoreID:             earned.StoreID,
		Type:                loyaltydomain.TransactionExpired,
		Points:              -toExpire,
		PointsValue:         decimal.NewFromInt(-toExpire).Mul(w.cfg.PointValue),
		SourceTransactionID: &sourceID,
		CreatedAt:           now,
	}
	if err := tx.Create(&offset).Error; err != nil {
		return 0, err
	}

	if toExpire == 0 {
		return 0, nil
	}

	res := tx.Model(&loyaltydomain.PointsBalance{}).
		Where("customer_id = ?", earned.CustomerID).
		Updates(map[string]any{
			"available_points": gorm.Expr("available_points - ?", toExpire),
			"total_points":     gorm.Expr("total_points - ?", toExpire),
			"lifetime_spent":   gorm.Expr("lifetime_spent + ?", toExpire),
			"updated_at":       now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return toExpire, nil
}
