// Package domain holds the read-only product snapshot consumed by ad
// validation and ranking. Product management itself lives outside this module.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

var ErrProductNotFound = errors.New("product_not_found")

type Product struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	SellerID snowflake.ID `gorm:"not null;index"`

	Name         string `gorm:"type:text;not null"`
	CategoryID   snowflake.ID
	CategoryName string `gorm:"type:text"`

	Status   ProductStatus `gorm:"type:text;not null"`
	Approved bool          `gorm:"not null;default:false"`

	// Ranking inputs.
	Rating       float64 `gorm:"not null;default:0"`
	MonthlySales int64   `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Product) TableName() string { return "products" }

type Repository interface {
	GetByID(ctx context.Context, id snowflake.ID) (*Product, error)
}
