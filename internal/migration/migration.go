// Package migration owns the schema. AutoMigrate is sufficient here: the
// model set is small and additive, and the migrate entrypoint runs it
// explicitly before serving starts.
package migration

import (
	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	adeventsdomain "github.com/adlanelabs/adlane/internal/adevents/domain"
	clickdomain "github.com/adlanelabs/adlane/internal/clickevent/domain"
	productdomain "github.com/adlanelabs/adlane/internal/product/domain"
	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"gorm.io/gorm"
)

func Models() []any {
	return []any{
		&addomain.Ad{},
		&productdomain.Product{},
		&walletdomain.Wallet{},
		&walletdomain.Transaction{},
		&clickdomain.ClickEvent{},
		&clickdomain.DailySpendRecord{},
		&adeventsdomain.AdEvent{},
	}
}

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
