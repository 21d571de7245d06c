package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry records one capital movement against a portfolio. Entries
// are append-only: never updated or deleted after creation.
type LedgerEntry struct {
	ID          uint `gorm:"primaryKey"`
	PortfolioID uint `gorm:"index;not null"`
	PositionID  uint `gorm:"index"` // zero when not tied to a position

	Amount    decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	EntryType string          `gorm:"not null"`
	Reason    string          `gorm:"not null"`

	Metadata string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

const (
	LedgerEntryCredit = "credit"
	LedgerEntryDebit  = "debit"

	LedgerReasonRebalance      = "capital_rebalance"
	LedgerReasonPositionOpened = "position_opened"
	LedgerReasonPositionClosed = "position_closed"
)

// RebalanceMetadata is the typed metadata written with a
// capital_rebalance entry. It is marshalled once at the write boundary.
type RebalanceMetadata struct {
	Phase       string          `json:"phase"`
	SwingPct    decimal.Decimal `json:"swing_pct"`
	LongTermPct decimal.Decimal `json:"long_term_pct"`
	CashPct     decimal.Decimal `json:"cash_pct"`
}

// NewLedgerEntry builds a valid entry; the amount must be positive and
// the type one of credit/debit.
func NewLedgerEntry(portfolioID uint, amount decimal.Decimal, entryType, reason string) (*LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("ledger amount must be positive, got %s", amount)
	}
	if entryType != LedgerEntryCredit && entryType != LedgerEntryDebit {
		return nil, fmt.Errorf("unknown ledger entry type %q", entryType)
	}
	return &LedgerEntry{
		PortfolioID: portfolioID,
		Amount:      amount,
		EntryType:   entryType,
		Reason:      reason,
	}, nil
}

// WithMetadata attaches a serialized metadata payload.
func (e *LedgerEntry) WithMetadata(meta any) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal ledger metadata: %w", err)
	}
	e.Metadata = string(raw)
	return nil
}
