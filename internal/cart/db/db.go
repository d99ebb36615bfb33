package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetCartItem(ctx context.Context, cartItemID string) (*models.CartItem, error) {
	var item models.CartItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("cart_item_id = ?", cartItemID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *DB) GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindByCatalogItem locates the user's existing cart line for a catalog item,
// nil when there is none. Adding the same item twice bumps the quantity
// instead of creating a second line.
func (d *DB) FindByCatalogItem(ctx context.Context, userID, catalogItemID string) (*models.CartItem, error) {
	var item models.CartItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("user_id = ?", userID).
		Where("catalog_item_id = ?", catalogItemID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *DB) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	_, err := d.Bun.NewInsert().Model(item).Exec(ctx)
	return err
}

func (d *DB) UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.CartItem)(nil)).
		Set("quantity = ?", quantity).
		Where("cart_item_id = ?", cartItemID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteCartItem(ctx context.Context, cartItemID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.CartItem)(nil)).
		Where("cart_item_id = ?", cartItemID).
		Exec(ctx)
	return err
}
