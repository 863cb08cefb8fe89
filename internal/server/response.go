package server

import (
	"errors"
	"net/http"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	productdomain "github.com/adlanelabs/adlane/internal/product/domain"
	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"github.com/gin-gonic/gin"
)

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Message }

func newValidationError(field, code, message string) error {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// AbortWithError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with the bare error string.
func AbortWithError(c *gin.Context, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": vErr.Message,
			"field": vErr.Field,
			"code":  vErr.Code,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, addomain.ErrAdNotFound),
		errors.Is(err, productdomain.ErrProductNotFound),
		errors.Is(err, walletdomain.ErrWalletNotFound):
		status = http.StatusNotFound
	case errors.Is(err, walletdomain.ErrInsufficientBalance),
		errors.Is(err, addomain.ErrAdNotActive),
		errors.Is(err, addomain.ErrAdAutoPaused):
		status = http.StatusConflict
	case errors.Is(err, walletdomain.ErrInvalidAmount):
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
