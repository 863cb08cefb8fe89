// Package domain defines the seller wallet and its append-only transaction
// ledger. The ledger is the audit source of truth; Balance is a materialized
// running total that must always equal a replay of the ledger.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionDebit  TransactionType = "debit"
	TransactionCredit TransactionType = "credit"
)

var (
	ErrWalletNotFound      = errors.New("wallet_not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAmount       = errors.New("invalid_amount")
)

type Wallet struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	SellerID snowflake.ID `gorm:"not null;uniqueIndex"`

	Balance            decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	TotalEarnings      decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	TotalWithdrawals   decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	PendingWithdrawals decimal.Decimal `gorm:"type:decimal(20,8);not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Wallet) TableName() string { return "wallets" }

type Transaction struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	WalletID snowflake.ID `gorm:"not null;index"`
	SellerID snowflake.ID `gorm:"not null;index"`

	Type   TransactionType `gorm:"type:text;not null"`
	Amount decimal.Decimal `gorm:"type:decimal(20,8);not null"`

	// BalanceAfter snapshots the wallet balance as of this row's commit.
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,8);not null"`

	Description string        `gorm:"type:text"`
	OrderID     *snowflake.ID `gorm:"index"`
	AdID        *snowflake.ID `gorm:"index"`

	CreatedAt time.Time `gorm:"not null"`
}

func (Transaction) TableName() string { return "wallet_transactions" }

// Service mutates wallets. Debit and Credit run against the supplied tx so a
// caller can fold the balance change into its own transaction; the wallet row
// is locked for the duration and a ledger row is always appended with it.
type Service interface {
	Debit(ctx context.Context, tx *gorm.DB, req MutationRequest) (*Transaction, error)
	Credit(ctx context.Context, tx *gorm.DB, req MutationRequest) (*Transaction, error)
	GetBalance(ctx context.Context, sellerID snowflake.ID) (decimal.Decimal, error)
}

type MutationRequest struct {
	SellerID    snowflake.ID
	Amount      decimal.Decimal
	Description string
	OrderID     *snowflake.ID
	AdID        *snowflake.ID
}
