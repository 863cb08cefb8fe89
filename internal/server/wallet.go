package server

import (
	"strings"

	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func sellerIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("seller_id")))
	if err != nil {
		AbortWithError(c, newValidationError("seller_id", "invalid_id", "seller id must be a snowflake id"))
		return 0, false
	}
	return id, true
}

func (s *Server) GetWalletBalance(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	balance, err := s.walletSvc.GetBalance(c.Request.Context(), sellerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"seller_id": sellerID.String(), "balance": balance})
}

type creditRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) CreditWallet(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be a decimal string"))
		return
	}

	var txn *walletdomain.Transaction
	err = s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var txErr error
		txn, txErr = s.walletSvc.Credit(c.Request.Context(), tx, walletdomain.MutationRequest{
			SellerID:    sellerID,
			Amount:      amount,
			Description: req.Description,
		})
		return txErr
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, txn)
}
