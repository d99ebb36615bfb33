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

func (d *DB) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := d.Bun.NewSelect().
		Model(&voucher).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (d *DB) GetUserVouchers(ctx context.Context, userID string) ([]models.UserVoucher, error) {
	var vouchers []models.UserVoucher
	err := d.Bun.NewSelect().
		Model(&vouchers).
		Relation("Voucher").
		Where("uv.user_id = ?", userID).
		Order("uv.obtained_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return vouchers, nil
}

// HasUnusedInstance reports whether the user already holds an unconsumed
// instance of the voucher.
func (d *DB) HasUnusedInstance(ctx context.Context, userID, voucherID string) (bool, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.UserVoucher)(nil)).
		Where("uv.user_id = ?", userID).
		Where("uv.voucher_id = ?", voucherID).
		Where("uv.is_used = ?", false).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *DB) InsertUserVoucher(ctx context.Context, uv *models.UserVoucher) error {
	_, err := d.Bun.NewInsert().Model(uv).Exec(ctx)
	return err
}
