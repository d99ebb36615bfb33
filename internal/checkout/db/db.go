package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- CART ----------------

func (d *DB) GetCartItemsByIDs(ctx context.Context, ids []string) ([]models.CartItem, error) {
	var items []models.CartItem
	if len(ids) == 0 {
		return items, nil
	}
	err := d.Bun.NewSelect().
		Model(&items).
		Where("cart_item_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// pruneCartItems deletes the user's cart items whose catalog reference is in
// the purchased set. The caller passes the snapshot captured at order-build
// time, never a live re-read.
func pruneCartItems(ctx context.Context, idb bun.IDB, userID string, catalogItemIDs []string) (int, error) {
	if len(catalogItemIDs) == 0 {
		return 0, nil
	}
	res, err := idb.NewDelete().
		Model((*models.CartItem)(nil)).
		Where("user_id = ?", userID).
		Where("catalog_item_id IN (?)", bun.In(catalogItemIDs)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (d *DB) CountCartItems(ctx context.Context, userID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.CartItem)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
}

// ---------------- VOUCHERS ----------------

// GetUserVouchers returns every voucher instance the user has obtained, with
// the voucher definitions loaded.
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

// ConsumeUserVoucher flips is_used exactly once. The WHERE guard makes the
// transition safe under concurrent settlements; consumed reports whether this
// call did the flip.
func (d *DB) ConsumeUserVoucher(ctx context.Context, userVoucherID string) (*models.UserVoucher, bool, error) {
	var uv models.UserVoucher
	err := d.Bun.NewSelect().
		Model(&uv).
		Where("user_voucher_id = ?", userVoucherID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, false, err
	}

	res, err := d.Bun.NewUpdate().
		Model((*models.UserVoucher)(nil)).
		Set("is_used = ?", true).
		Set("used_at = ?", time.Now()).
		Where("user_voucher_id = ?", userVoucherID).
		Where("is_used = ?", false).
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	affected, _ := res.RowsAffected()
	return &uv, affected == 1, nil
}

// FindUnusedUserVoucher locates an unconsumed instance of a voucher owned by
// the user. Legacy settlement path for orders that recorded only the primary
// voucher.
func (d *DB) FindUnusedUserVoucher(ctx context.Context, userID, voucherID string) (*models.UserVoucher, error) {
	var uv models.UserVoucher
	err := d.Bun.NewSelect().
		Model(&uv).
		Where("user_id = ?", userID).
		Where("voucher_id = ?", voucherID).
		Where("is_used = ?", false).
		Order("obtained_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &uv, nil
}

// IncrementVoucherUsage bumps usage_count atomically, bounded by the usage
// limit when one is set.
func (d *DB) IncrementVoucherUsage(ctx context.Context, voucherID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Voucher)(nil)).
		Set("usage_count = usage_count + 1").
		Where("voucher_id = ?", voucherID).
		Where("usage_limit IS NULL OR usage_count < usage_limit").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

// ---------------- ORDERS ----------------

// CreateOrderGraph persists the order, its detail lines, the applied-voucher
// rows, and the PENDING transaction as one unit. Any failure rolls the whole
// graph back.
func (d *DB) CreateOrderGraph(ctx context.Context, order models.Order, details []models.OrderDetail, vouchers []models.OrderVoucher, tx models.Transaction) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, dbTx bun.Tx) error {
		if _, err := dbTx.NewInsert().Model(&order).Exec(ctx); err != nil {
			return err
		}
		if len(details) > 0 {
			if _, err := dbTx.NewInsert().Model(&details).Exec(ctx); err != nil {
				return err
			}
		}
		if len(vouchers) > 0 {
			if _, err := dbTx.NewInsert().Model(&vouchers).Exec(ctx); err != nil {
				return err
			}
		}
		if _, err := dbTx.NewInsert().Model(&tx).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

func (d *DB) GetOrderWithDetails(ctx context.Context, orderID string) (*models.OrderWithDetails, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var details []models.OrderDetail
	err = d.Bun.NewSelect().
		Model(&details).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var tx models.Transaction
	err = d.Bun.NewSelect().
		Model(&tx).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.OrderWithDetails{Order: order, Details: details}, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.OrderWithDetails{Order: order, Details: details, Transaction: &tx}, nil
}

func (d *DB) GetOrderVouchers(ctx context.Context, orderID string) ([]models.OrderVoucher, error) {
	var rows []models.OrderVoucher
	err := d.Bun.NewSelect().
		Model(&rows).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ---------------- TRANSACTIONS ----------------

func (d *DB) GetTransactionByGatewayRef(ctx context.Context, gatewayRef string) (*models.Transaction, error) {
	var tx models.Transaction
	err := d.Bun.NewSelect().
		Model(&tx).
		Where("gateway_ref = ?", gatewayRef).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// markTransactionSuccess is the settlement idempotency guard: a conditional
// transition PENDING -> SUCCESS affecting exactly one row. Returns false when
// another confirmation already won.
func markTransactionSuccess(ctx context.Context, idb bun.IDB, transactionID string) (bool, error) {
	res, err := idb.NewUpdate().
		Model((*models.Transaction)(nil)).
		Set("status = ?", models.TransactionSuccess).
		Set("settled_at = ?", time.Now()).
		Where("transaction_id = ?", transactionID).
		Where("status = ?", models.TransactionPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

// ---------------- TICKETS ----------------

func insertTickets(ctx context.Context, idb bun.IDB, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := idb.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

// SettleOrder is the settlement unit: the PENDING -> SUCCESS transition on the
// transaction, ticket insertion, and cart pruning commit or roll back as one.
// A paid order can never end up settled without its tickets. won reports
// whether this call did the transition; removed is the number of cart lines
// pruned.
func (d *DB) SettleOrder(ctx context.Context, transactionID string, tickets []models.Ticket, userID string, catalogItemIDs []string) (won bool, removed int, err error) {
	err = d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, dbTx bun.Tx) error {
		var txErr error
		won, txErr = markTransactionSuccess(ctx, dbTx, transactionID)
		if txErr != nil || !won {
			return txErr
		}
		if txErr = insertTickets(ctx, dbTx, tickets); txErr != nil {
			return txErr
		}
		removed, txErr = pruneCartItems(ctx, dbTx, userID, catalogItemIDs)
		return txErr
	})
	if err != nil {
		return false, 0, err
	}
	return won, removed, nil
}

func (d *DB) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("issued_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
