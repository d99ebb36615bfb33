package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-checkout/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })

	Migrate(bunDB)
	return &DB{Bun: bunDB}
}

func insertVoucher(t *testing.T, d *DB, voucher models.Voucher) {
	t.Helper()
	_, err := d.Bun.NewInsert().Model(&voucher).Exec(context.Background())
	require.NoError(t, err)
}

func insertUserVoucher(t *testing.T, d *DB, uv models.UserVoucher) {
	t.Helper()
	if uv.ObtainedAt.IsZero() {
		uv.ObtainedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(&uv).Exec(context.Background())
	require.NoError(t, err)
}

func insertCartItem(t *testing.T, d *DB, item models.CartItem) {
	t.Helper()
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(&item).Exec(context.Background())
	require.NoError(t, err)
}

func sampleGraph(orderID string, orderCode int64) (models.Order, []models.OrderDetail, models.Transaction) {
	now := time.Now()
	order := models.Order{
		OrderID:        orderID,
		UserID:         "user-1",
		TotalAmount:    100,
		DiscountAmount: 10,
		FinalAmount:    90,
		CreatedAt:      now,
	}
	details := []models.OrderDetail{{
		OrderDetailID: orderID + "-d1",
		OrderID:       orderID,
		CatalogItemID: "item-1",
		ItemName:      "Pottery Workshop",
		OwnerType:     models.OwnerWorkshop,
		Quantity:      2,
		UnitPrice:     50,
	}}
	tx := models.Transaction{
		TransactionID: orderID + "-tx",
		OrderID:       orderID,
		OrderCode:     orderCode,
		GatewayRef:    models.GatewayRef(orderCode),
		Amount:        90,
		Currency:      "VND",
		Status:        models.TransactionPending,
		Description:   "Payment for order " + orderID,
		CreatedAt:     now,
	}
	return order, details, tx
}

func sampleTickets(orderID, detailID string) []models.Ticket {
	now := time.Now()
	return []models.Ticket{
		{TicketID: orderID + "-t1", OrderID: orderID, OrderDetailID: detailID, UserID: "user-1", CatalogItemID: "item-1", Type: models.TicketTypeWorkshop, TicketCode: "tc-1", RedemptionCode: "rc-1", Status: models.TicketActive, IssuedAt: now},
		{TicketID: orderID + "-t2", OrderID: orderID, OrderDetailID: detailID, UserID: "user-1", CatalogItemID: "item-1", Type: models.TicketTypeWorkshop, TicketCode: "tc-2", RedemptionCode: "rc-2", Status: models.TicketActive, IssuedAt: now.Add(time.Second)},
	}
}

func TestSettleOrderOnlyOnce(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	order, details, tx := sampleGraph("order-1", 1001)
	require.NoError(t, d.CreateOrderGraph(ctx, order, details, nil, tx))
	insertCartItem(t, d, models.CartItem{CartItemID: "ci-1", UserID: "user-1", CatalogItemID: "item-1", Quantity: 2})

	tickets := sampleTickets("order-1", details[0].OrderDetailID)
	won, removed, err := d.SettleOrder(ctx, tx.TransactionID, tickets, "user-1", []string{"item-1"})
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, 1, removed)

	// A second confirmation must lose the guard and write nothing
	retry := sampleTickets("order-1-dup", details[0].OrderDetailID)
	won, removed, err = d.SettleOrder(ctx, tx.TransactionID, retry, "user-1", []string{"item-1"})
	require.NoError(t, err)
	assert.False(t, won)
	assert.Zero(t, removed)

	stored, err := d.GetTransactionByGatewayRef(ctx, tx.GatewayRef)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, stored.Status)
	assert.False(t, stored.SettledAt.IsZero())

	got, err := d.GetTicketsByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSettleOrderRollsBackOnTicketFailure(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	order, details, tx := sampleGraph("order-1", 1001)
	require.NoError(t, d.CreateOrderGraph(ctx, order, details, nil, tx))
	insertCartItem(t, d, models.CartItem{CartItemID: "ci-1", UserID: "user-1", CatalogItemID: "item-1", Quantity: 2})

	// Duplicate ticket primary key forces the insert to fail after the
	// status transition already happened inside the transaction
	tickets := sampleTickets("order-1", details[0].OrderDetailID)
	tickets[1].TicketID = tickets[0].TicketID

	won, removed, err := d.SettleOrder(ctx, tx.TransactionID, tickets, "user-1", []string{"item-1"})
	require.Error(t, err)
	assert.False(t, won)
	assert.Zero(t, removed)

	// The CAS rolled back with the tickets; the order is still settleable
	stored, err := d.GetTransactionByGatewayRef(ctx, tx.GatewayRef)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, stored.Status)

	count, err := d.Bun.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "no tickets may survive a failed settlement unit")

	remaining, err := d.CountCartItems(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining, "cart must be untouched when settlement fails")

	// A retry with a clean batch settles and issues the tickets
	won, removed, err = d.SettleOrder(ctx, tx.TransactionID, sampleTickets("order-1", details[0].OrderDetailID), "user-1", []string{"item-1"})
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, 1, removed)

	got, err := d.GetTicketsByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCreateOrderGraphRollsBackOnFailure(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	order, details, tx := sampleGraph("order-1", 1001)
	// Duplicate detail primary key forces the insert to fail mid-transaction
	details = append(details, details[0])

	err := d.CreateOrderGraph(ctx, order, details, nil, tx)
	require.Error(t, err)

	count, err := d.Bun.NewSelect().Model((*models.Order)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "order must not survive a failed graph insert")
}

func TestCreateOrderGraphRejectsDuplicateOrderCode(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	order1, details1, tx1 := sampleGraph("order-1", 1001)
	require.NoError(t, d.CreateOrderGraph(ctx, order1, details1, nil, tx1))

	order2, details2, tx2 := sampleGraph("order-2", 1001)
	err := d.CreateOrderGraph(ctx, order2, details2, nil, tx2)
	require.Error(t, err)
}

func TestGetTransactionByGatewayRefUnknown(t *testing.T) {
	d := newTestDB(t)

	_, err := d.GetTransactionByGatewayRef(context.Background(), models.GatewayRef(9999))
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestIncrementVoucherUsageBoundedByLimit(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	limit := 2
	insertVoucher(t, d, models.Voucher{
		VoucherID:     "v-1",
		Code:          "LIM2",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		UsageLimit:    &limit,
		StartDate:     time.Now().AddDate(0, -1, 0),
		EndDate:       time.Now().AddDate(0, 1, 0),
	})

	for i := 0; i < 2; i++ {
		ok, err := d.IncrementVoucherUsage(ctx, "v-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := d.IncrementVoucherUsage(ctx, "v-1")
	require.NoError(t, err)
	assert.False(t, ok, "increment past the usage limit must be refused")

	var voucher models.Voucher
	require.NoError(t, d.Bun.NewSelect().Model(&voucher).Where("voucher_id = ?", "v-1").Scan(ctx))
	assert.Equal(t, 2, voucher.UsageCount)
}

func TestIncrementVoucherUsageUnlimited(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	insertVoucher(t, d, models.Voucher{
		VoucherID:     "v-1",
		Code:          "FREE",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 5,
		StartDate:     time.Now().AddDate(0, -1, 0),
		EndDate:       time.Now().AddDate(0, 1, 0),
	})

	for i := 0; i < 5; i++ {
		ok, err := d.IncrementVoucherUsage(ctx, "v-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestConsumeUserVoucherOnlyOnce(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	insertVoucher(t, d, models.Voucher{
		VoucherID:     "v-1",
		Code:          "ONCE",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		StartDate:     time.Now().AddDate(0, -1, 0),
		EndDate:       time.Now().AddDate(0, 1, 0),
	})
	insertUserVoucher(t, d, models.UserVoucher{
		UserVoucherID: "uv-1",
		UserID:        "user-1",
		VoucherID:     "v-1",
	})

	_, consumed, err := d.ConsumeUserVoucher(ctx, "uv-1")
	require.NoError(t, err)
	assert.True(t, consumed)

	_, consumed, err = d.ConsumeUserVoucher(ctx, "uv-1")
	require.NoError(t, err)
	assert.False(t, consumed, "a consumed instance must not flip again")
}

func TestFindUnusedUserVoucherSkipsUsed(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	insertVoucher(t, d, models.Voucher{
		VoucherID:     "v-1",
		Code:          "MULTI",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		StartDate:     time.Now().AddDate(0, -1, 0),
		EndDate:       time.Now().AddDate(0, 1, 0),
	})
	insertUserVoucher(t, d, models.UserVoucher{
		UserVoucherID: "uv-used",
		UserID:        "user-1",
		VoucherID:     "v-1",
		IsUsed:        true,
		ObtainedAt:    time.Now().Add(-2 * time.Hour),
	})
	insertUserVoucher(t, d, models.UserVoucher{
		UserVoucherID: "uv-fresh",
		UserID:        "user-1",
		VoucherID:     "v-1",
		ObtainedAt:    time.Now().Add(-1 * time.Hour),
	})

	uv, err := d.FindUnusedUserVoucher(ctx, "user-1", "v-1")
	require.NoError(t, err)
	require.NotNil(t, uv)
	assert.Equal(t, "uv-fresh", uv.UserVoucherID)

	uv, err = d.FindUnusedUserVoucher(ctx, "user-1", "v-missing")
	require.NoError(t, err)
	assert.Nil(t, uv)
}

func TestPruneCartItemsUsesSnapshot(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	insertCartItem(t, d, models.CartItem{CartItemID: "ci-1", UserID: "user-1", CatalogItemID: "item-1", Quantity: 1})
	insertCartItem(t, d, models.CartItem{CartItemID: "ci-2", UserID: "user-1", CatalogItemID: "item-2", Quantity: 2})
	insertCartItem(t, d, models.CartItem{CartItemID: "ci-3", UserID: "user-1", CatalogItemID: "item-3", Quantity: 1})
	insertCartItem(t, d, models.CartItem{CartItemID: "ci-4", UserID: "user-2", CatalogItemID: "item-1", Quantity: 1})

	removed, err := pruneCartItems(ctx, d.Bun, "user-1", []string{"item-1", "item-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := d.CountCartItems(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// Other users keep their lines for the same catalog items
	otherUser, err := d.CountCartItems(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 1, otherUser)
}

func TestPruneCartItemsEmptySnapshot(t *testing.T) {
	d := newTestDB(t)

	removed, err := pruneCartItems(context.Background(), d.Bun, "user-1", nil)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestGetOrderWithDetails(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	order, details, tx := sampleGraph("order-1", 1001)
	require.NoError(t, d.CreateOrderGraph(ctx, order, details, nil, tx))

	got, err := d.GetOrderWithDetails(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.Order.FinalAmount)
	require.Len(t, got.Details, 1)
	assert.Equal(t, 50.0, got.Details[0].UnitPrice)
	require.NotNil(t, got.Transaction)
	assert.Equal(t, models.TransactionPending, got.Transaction.Status)
}

func TestInsertAndListTickets(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	order, details, tx := sampleGraph("order-1", 1001)
	require.NoError(t, d.CreateOrderGraph(ctx, order, details, nil, tx))

	now := time.Now()
	tickets := []models.Ticket{
		{TicketID: "t-1", OrderID: "order-1", OrderDetailID: details[0].OrderDetailID, UserID: "user-1", CatalogItemID: "item-1", Type: models.TicketTypeWorkshop, TicketCode: "tc-1", RedemptionCode: "rc-1", Status: models.TicketActive, IssuedAt: now},
		{TicketID: "t-2", OrderID: "order-1", OrderDetailID: details[0].OrderDetailID, UserID: "user-1", CatalogItemID: "item-1", Type: models.TicketTypeWorkshop, TicketCode: "tc-2", RedemptionCode: "rc-2", Status: models.TicketActive, IssuedAt: now.Add(time.Second)},
	}
	require.NoError(t, insertTickets(ctx, d.Bun, tickets))

	got, err := d.GetTicketsByOrder(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t-1", got[0].TicketID)
}
