package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"github.com/adlanelabs/adlane/internal/wallet/service"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&walletdomain.Wallet{}, &walletdomain.Transaction{}))
	return db
}

func newTestService(t *testing.T) (walletdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := service.NewService(service.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	return svc, db, node
}

func seedWallet(t *testing.T, db *gorm.DB, node *snowflake.Node, balance string) snowflake.ID {
	t.Helper()
	sellerID := node.Generate()
	amount, err := decimal.NewFromString(balance)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, db.Create(&walletdomain.Wallet{
		ID:        node.Generate(),
		SellerID:  sellerID,
		Balance:   amount,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)
	return sellerID
}

func TestDebit(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()
	sellerID := seedWallet(t, db, node, "10.00")

	txn, err := svc.Debit(ctx, db, walletdomain.MutationRequest{
		SellerID:    sellerID,
		Amount:      decimal.RequireFromString("2.50"),
		Description: "ad click charge",
	})
	require.NoError(t, err)
	assert.Equal(t, walletdomain.TransactionDebit, txn.Type)
	assert.True(t, txn.BalanceAfter.Equal(decimal.RequireFromString("7.50")),
		"balance_after = %s", txn.BalanceAfter)

	balance, err := svc.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("7.50")))

	// Ledger row committed alongside the balance change.
	var rows []walletdomain.Transaction
	require.NoError(t, db.Where("seller_id = ?", sellerID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("2.50")))
}

func TestDebitInsufficientBalance(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()
	sellerID := seedWallet(t, db, node, "1.00")

	_, err := svc.Debit(ctx, db, walletdomain.MutationRequest{
		SellerID: sellerID,
		Amount:   decimal.RequireFromString("1.01"),
	})
	assert.ErrorIs(t, err, walletdomain.ErrInsufficientBalance)

	// Balance untouched, no ledger row.
	balance, err := svc.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.00")))

	var count int64
	require.NoError(t, db.Model(&walletdomain.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDebitRejectsNonPositiveAmounts(t *testing.T) {
	svc, db, node := newTestService(t)
	sellerID := seedWallet(t, db, node, "5.00")

	for _, amount := range []string{"0", "-1.00"} {
		_, err := svc.Debit(context.Background(), db, walletdomain.MutationRequest{
			SellerID: sellerID,
			Amount:   decimal.RequireFromString(amount),
		})
		assert.ErrorIs(t, err, walletdomain.ErrInvalidAmount)
	}
}

func TestCredit(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()
	sellerID := seedWallet(t, db, node, "3.00")

	txn, err := svc.Credit(ctx, db, walletdomain.MutationRequest{
		SellerID:    sellerID,
		Amount:      decimal.RequireFromString("4.25"),
		Description: "top up",
	})
	require.NoError(t, err)
	assert.Equal(t, walletdomain.TransactionCredit, txn.Type)
	assert.True(t, txn.BalanceAfter.Equal(decimal.RequireFromString("7.25")))
}

func TestBalanceAfterMatchesLedgerReplay(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()
	sellerID := seedWallet(t, db, node, "100.00")

	amounts := []string{"1.00", "2.50", "0.01", "30.00"}
	running := decimal.RequireFromString("100.00")
	for _, a := range amounts {
		amount := decimal.RequireFromString(a)
		txn, err := svc.Debit(ctx, db, walletdomain.MutationRequest{SellerID: sellerID, Amount: amount})
		require.NoError(t, err)
		running = running.Sub(amount)
		assert.True(t, txn.BalanceAfter.Equal(running),
			"after debiting %s want %s got %s", a, running, txn.BalanceAfter)
	}

	balance, err := svc.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(running))
}

func TestGetBalanceUnknownSeller(t *testing.T) {
	svc, _, node := newTestService(t)
	_, err := svc.GetBalance(context.Background(), node.Generate())
	assert.ErrorIs(t, err, walletdomain.ErrWalletNotFound)
}
