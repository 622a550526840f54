package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionType enumerates loyalty ledger entry kinds. The sign of the
// Points field encodes direction: earned entries are positive, spent and
// expired entries are negative.
type TransactionType string

const (
	TransactionEarned   TransactionType = "earned"
	TransactionSpent    TransactionType = "spent"
	TransactionExpired  TransactionType = "expired"
	TransactionAdjusted TransactionType = "adjusted"
)

// IdentifierType records which contact field the global identifier came from.
type IdentifierType string

const (
	IdentifierPhone IdentifierType = "phone"
	IdentifierEmail IdentifierType = "email"
)

// GlobalCustomer is the cross-store customer identity, keyed by a normalized
// phone or email. It lives on the control plane so every store resolves the
// same row.
type GlobalCustomer struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	Identifier     string         `gorm:"type:text;not null;uniqueIndex" json:"identifier"`
	IdentifierType IdentifierType `gorm:"type:text;not null" json:"identifier_type"`
	Name           string         `gorm:"type:text" json:"name,omitempty"`
	Phone          string         `gorm:"type:text" json:"phone,omitempty"`
	Email          string         `gorm:"type:text" json:"email,omitempty"`
	Stores         datatypes.JSON `gorm:"type:jsonb" json:"stores"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (GlobalCustomer) TableName() string { return "global_customers" }

// StoreLink records one store a global customer has transacted with, keeping
// the store-local customer row it maps to. The Stores array is append-only:
// links are never removed.
type StoreLink struct {
	StoreID      string       `json:"store_id"`
	CustomerID   snowflake.ID `json:"customer_id"`
	CustomerName string       `json:"customer_name,omitempty"`
	RegisteredAt time.Time    `json:"registered_at"`
}

// StoreLinks decodes the Stores JSON array.
func (c *GlobalCustomer) StoreLinks() ([]StoreLink, error) {
	if len(c.Stores) == 0 {
		return nil, nil
	}
	var links []StoreLink
	if err := json.Unmarshal(c.Stores, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// LinkedTo reports whether the customer already has a link to the store.
func (c *GlobalCustomer) LinkedTo(storeID string) bool {
	links, err := c.StoreLinks()
	if err != nil {
		return false
	}
	for _, l := range links {
		if l.StoreID == storeID {
			return true
		}
	}
	return false
}

// AppendStoreLink adds the link if the store is not already present. It
// reports whether the array changed.
func (c *GlobalCustomer) AppendStoreLink(link StoreLink) (bool, error) {
	if c.LinkedTo(link.StoreID) {
		return false, nil
	}
	links, err := c.StoreLinks()
	if err != nil {
		return false, err
	}
	links = append(links, link)
	raw, err := json.Marshal(links)
	if err != nil {
		return false, err
	}
	c.Stores = raw
	return true, nil
}

// PointsBalance is the per-customer running balance. The ledger invariant is
// TotalPoints == LifetimeEarned - LifetimeSpent, where LifetimeSpent covers
// redemptions and expiry.
type PointsBalance struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID      snowflake.ID `gorm:"not null;uniqueIndex" json:"customer_id"`
	AvailablePoints int64        `gorm:"not null;default:0" json:"available_points"`
	PendingPoints   int64        `gorm:"not null;default:0" json:"pending_points"`
	TotalPoints     int64        `gorm:"not null;default:0" json:"total_points"`
	LifetimeEarned  int64        `gorm:"not null;default:0" json:"lifetime_earned"`
	LifetimeSpent   int64        `gorm:"not null;default:0" json:"lifetime_spent"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PointsBalance) TableName() string { return "points_balances" }

// PointsTransaction is one immutable ledger entry. Points carries the signed
// delta and PointsValue its monetary equivalent. Expiry entries reference the
// source earned transaction in SourceTransactionID so a sweep never expires
// the same entry twice.
type PointsTransaction struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID          snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	StoreID             string          `gorm:"type:text;not null;index" json:"store_id"`
	Type                TransactionType `gorm:"type:text;not null" json:"type"`
	Points              int64           `gorm:"not null" json:"points"`
	PointsValue         decimal.Decimal `gorm:"type:numeric" json:"points_value"`
	PurchaseAmount      decimal.Decimal `gorm:"type:numeric" json:"purchase_amount,omitempty"`
	InvoiceNumber       string          `gorm:"type:text" json:"invoice_number,omitempty"`
	SourceTransactionID *snowflake.ID   `gorm:"uniqueIndex" json:"source_transaction_id,omitempty"`
	ExpiresAt           *time.Time      `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (PointsTransaction) TableName() string { return "points_transactions" }

// StorePointsAccount tracks, per store, how many points its customers earned
// and redeemed. Every derived field comes out of Recalculate; nothing sets
// them independently.
type StorePointsAccount struct {
	ID                       snowflake.ID    `gorm:"primaryKey" json:"id"`
	StoreID                  string          `gorm:"type:text;not null;uniqueIndex" json:"store_id"`
	PointsIssued             int64           `gorm:"not null;default:0" json:"points_issued"`
	PointsRedeemed           int64           `gorm:"not null;default:0" json:"points_redeemed"`
	NetPointsBalance         int64           `gorm:"not null;default:0" json:"net_points_balance"`
	TotalPointsValueIssued   decimal.Decimal `gorm:"type:numeric;not null" json:"total_points_value_issued"`
	TotalPointsValueRedeemed decimal.Decimal `gorm:"type:numeric;not null" json:"total_points_value_redeemed"`
	NetFinancialBalance      decimal.Decimal `gorm:"type:numeric;not null" json:"net_financial_balance"`
	AmountOwed               decimal.Decimal `gorm:"type:numeric;not null" json:"amount_owed"`
	UpdatedAt                time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (StorePointsAccount) TableName() string { return "store_points_accounts" }

// Recalculate derives every aggregate field from the issued and redeemed
// counters. AmountOwed is the magnitude of the net financial balance in
// either direction: the settlement amount outstanding between the store and
// the program.
func (a *StorePointsAccount) Recalculate(pointValue decimal.Decimal) {
	a.NetPointsBalance = a.PointsIssued - a.PointsRedeemed
	a.TotalPointsValueIssued = decimal.NewFromInt(a.PointsIssued).Mul(pointValue)
	a.TotalPointsValueRedeemed = decimal.NewFromInt(a.PointsRedeemed).Mul(pointValue)
	a.NetFinancialBalance = a.TotalPointsValueIssued.Sub(a.TotalPointsValueRedeemed)
	a.AmountOwed = a.NetFinancialBalance.Abs()
}
