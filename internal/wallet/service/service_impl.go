package service

import (
	"context"
	"time"

	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"github.com/adlanelabs/adlane/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewService(p ServiceParam) walletdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("wallet.service"),
		genID: p.GenID,
	}
}

func (s *Service) Debit(ctx context.Context, tx *gorm.DB, req walletdomain.MutationRequest) (*walletdomain.Transaction, error) {
	if req.Amount.Sign() <= 0 {
		return nil, walletdomain.ErrInvalidAmount
	}

	wallet, err := lockWallet(ctx, tx, req.SellerID)
	if err != nil {
		return nil, err
	}

	if wallet.Balance.LessThan(req.Amount) {
		return nil, walletdomain.ErrInsufficientBalance
	}

	newBalance := wallet.Balance.Sub(req.Amount)
	return s.apply(ctx, tx, wallet, walletdomain.TransactionDebit, newBalance, req)
}

func (s *Service) Credit(ctx context.Context, tx *gorm.DB, req walletdomain.MutationRequest) (*walletdomain.Transaction, error) {
	if req.Amount.Sign() <= 0 {
		return nil, walletdomain.ErrInvalidAmount
	}

	wallet, err := lockWallet(ctx, tx, req.SellerID)
	if err != nil {
		return nil, err
	}

	newBalance := wallet.Balance.Add(req.Amount)
	return s.apply(ctx, tx, wallet, walletdomain.TransactionCredit, newBalance, req)
}

func (s *Service) GetBalance(ctx context.Context, sellerID snowflake.ID) (decimal.Decimal, error) {
	var wallet walletdomain.Wallet
	err := s.db.WithContext(ctx).Model(&walletdomain.Wallet{}).
		Where("seller_id = ?", sellerID).
		First(&wallet).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, walletdomain.ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

func (s *Service) apply(
	ctx context.Context,
	tx *gorm.DB,
	wallet *walletdomain.Wallet,
	kind walletdomain.TransactionType,
	newBalance decimal.Decimal,
	req walletdomain.MutationRequest,
) (*walletdomain.Transaction, error) {
	now := time.Now().UTC()

	err := tx.WithContext(ctx).Model(&walletdomain.Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]any{
			"balance":    newBalance,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}

	row := walletdomain.Transaction{
		ID:           s.genID.Generate(),
		WalletID:     wallet.ID,
		SellerID:     wallet.SellerID,
		Type:         kind,
		Amount:       req.Amount,
		BalanceAfter: newBalance,
		Description:  req.Description,
		OrderID:      req.OrderID,
		AdID:         req.AdID,
		CreatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func lockWallet(ctx context.Context, tx *gorm.DB, sellerID snowflake.ID) (*walletdomain.Wallet, error) {
	var wallet walletdomain.Wallet
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("seller_id = ?", sellerID).
		First(&wallet).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, walletdomain.ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}
