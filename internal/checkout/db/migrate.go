package db

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

// Migrate creates the checkout schema from the bun models. Deployments that
// manage schema through versioned SQL files use the migrations runner
// instead.
func Migrate(db *bun.DB) {
	ctx := context.Background()

	tables := []interface{}{
		(*models.CartItem)(nil),
		(*models.Voucher)(nil),
		(*models.UserVoucher)(nil),
		(*models.Order)(nil),
		(*models.OrderDetail)(nil),
		(*models.OrderVoucher)(nil),
		(*models.Transaction)(nil),
		(*models.Ticket)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}

	log.Println("checkout schema ready")
}
