package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

type mockDB struct {
	mock.Mock
}

func (m *mockDB) GetCartItemsByIDs(ctx context.Context, ids []string) ([]models.CartItem, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.CartItem), args.Error(1)
}

func (m *mockDB) GetUserVouchers(ctx context.Context, userID string) ([]models.UserVoucher, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.UserVoucher), args.Error(1)
}

func (m *mockDB) CreateOrderGraph(ctx context.Context, order models.Order, details []models.OrderDetail, vouchers []models.OrderVoucher, tx models.Transaction) error {
	args := m.Called(ctx, order, details, vouchers, tx)
	return args.Error(0)
}

func (m *mockDB) GetOrderWithDetails(ctx context.Context, orderID string) (*models.OrderWithDetails, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderWithDetails), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetItem(ctx context.Context, catalogItemID string) (*models.CatalogItem, error) {
	args := m.Called(ctx, catalogItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CatalogItem), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreatePaymentLink(ctx context.Context, orderCode int64, amount float64, description string, items []models.CheckoutItem) (string, error) {
	args := m.Called(ctx, orderCode, amount, description, items)
	return args.String(0), args.Error(1)
}

type mockLinkStore struct {
	mock.Mock
}

func (m *mockLinkStore) SavePaymentLink(link *models.PaymentLink) error {
	args := m.Called(link)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderCreated(order models.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func farPast() time.Time   { return time.Now().AddDate(-1, 0, 0) }
func farFuture() time.Time { return time.Now().AddDate(1, 0, 0) }

func newTestService(db *mockDB, cat *mockCatalog, gw *mockGateway, links LinkStore, kafka KafkaPublisher) *OrderService {
	return NewOrderService(db, cat, gw, links, kafka, "VND", logger.NewLogger())
}

func ownedFixedVoucher(userVoucherID, voucherID string, value float64) models.UserVoucher {
	return models.UserVoucher{
		UserVoucherID: userVoucherID,
		UserID:        "user-1",
		VoucherID:     voucherID,
		Voucher: &models.Voucher{
			VoucherID:     voucherID,
			Code:          "TEST",
			DiscountType:  models.DiscountFixed,
			DiscountValue: value,
			StartDate:     farPast(),
			EndDate:       farFuture(),
		},
	}
}

func TestPlaceOrderBuildsImmutableOrder(t *testing.T) {
	db := new(mockDB)
	cat := new(mockCatalog)
	gw := new(mockGateway)
	links := new(mockLinkStore)
	kafka := new(mockPublisher)
	svc := newTestService(db, cat, gw, links, kafka)

	db.On("GetCartItemsByIDs", mock.Anything, []string{"ci-1"}).Return([]models.CartItem{
		{CartItemID: "ci-1", UserID: "user-1", CatalogItemID: "item-1", Quantity: 2},
	}, nil)
	cat.On("GetItem", mock.Anything, "item-1").Return(&models.CatalogItem{
		CatalogItemID: "item-1",
		Name:          "Pottery Workshop",
		UnitPrice:     50,
		OwnerType:     models.OwnerWorkshop,
	}, nil)
	db.On("GetUserVouchers", mock.Anything, "user-1").Return([]models.UserVoucher{
		ownedFixedVoucher("uv-1", "v-1", 10),
	}, nil)

	var savedOrder models.Order
	var savedDetails []models.OrderDetail
	var savedVouchers []models.OrderVoucher
	var savedTx models.Transaction
	db.On("CreateOrderGraph", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			savedOrder = args.Get(1).(models.Order)
			savedDetails = args.Get(2).([]models.OrderDetail)
			savedVouchers = args.Get(3).([]models.OrderVoucher)
			savedTx = args.Get(4).(models.Transaction)
		}).
		Return(nil)
	gw.On("CreatePaymentLink", mock.Anything, mock.Anything, 90.0, mock.Anything, mock.Anything).
		Return("https://pay.example.com/link", nil)
	links.On("SavePaymentLink", mock.Anything).Return(nil)
	kafka.On("PublishOrderCreated", mock.Anything).Return(nil)

	resp, err := svc.PlaceOrder(context.Background(), "user-1", models.OrderRequest{
		CartItemIDs: []string{"ci-1"},
		VoucherIDs:  []string{"uv-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, savedOrder.TotalAmount)
	assert.Equal(t, 10.0, savedOrder.DiscountAmount)
	assert.Equal(t, 90.0, savedOrder.FinalAmount)
	assert.Equal(t, "v-1", savedOrder.PrimaryVoucherID)

	require.Len(t, savedDetails, 1)
	assert.Equal(t, 50.0, savedDetails[0].UnitPrice)
	assert.Equal(t, 2, savedDetails[0].Quantity)
	assert.Equal(t, models.OwnerWorkshop, savedDetails[0].OwnerType)

	require.Len(t, savedVouchers, 1)
	assert.Equal(t, "uv-1", savedVouchers[0].UserVoucherID)
	assert.Equal(t, 10.0, savedVouchers[0].DiscountAmount)

	assert.Equal(t, models.TransactionPending, savedTx.Status)
	assert.Equal(t, 90.0, savedTx.Amount)
	assert.True(t, strings.HasPrefix(savedTx.GatewayRef, models.GatewayRefPrefix))
	assert.Equal(t, []string{"uv-1"}, models.DecodeVoucherList(savedTx.Description))

	assert.Equal(t, "https://pay.example.com/link", resp.CheckoutURL)
	links.AssertCalled(t, "SavePaymentLink", mock.Anything)
	kafka.AssertCalled(t, "PublishOrderCreated", mock.Anything)
}

func TestPlaceOrderRejectsForeignCartItem(t *testing.T) {
	db := new(mockDB)
	cat := new(mockCatalog)
	gw := new(mockGateway)
	svc := newTestService(db, cat, gw, nil, nil)

	db.On("GetCartItemsByIDs", mock.Anything, []string{"ci-1"}).Return([]models.CartItem{
		{CartItemID: "ci-1", UserID: "someone-else", CatalogItemID: "item-1", Quantity: 1},
	}, nil)

	_, err := svc.PlaceOrder(context.Background(), "user-1", models.OrderRequest{CartItemIDs: []string{"ci-1"}})
	require.Error(t, err)

	var ownership *OwnershipError
	assert.ErrorAs(t, err, &ownership)
	db.AssertNotCalled(t, "CreateOrderGraph", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrderEmptySelection(t *testing.T) {
	svc := newTestService(new(mockDB), new(mockCatalog), new(mockGateway), nil, nil)

	_, err := svc.PlaceOrder(context.Background(), "user-1", models.OrderRequest{})
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestPlaceOrderGatewayFailureLeavesPendingTransaction(t *testing.T) {
	db := new(mockDB)
	cat := new(mockCatalog)
	gw := new(mockGateway)
	svc := newTestService(db, cat, gw, nil, nil)

	db.On("GetCartItemsByIDs", mock.Anything, mock.Anything).Return([]models.CartItem{
		{CartItemID: "ci-1", UserID: "user-1", CatalogItemID: "item-1", Quantity: 1},
	}, nil)
	cat.On("GetItem", mock.Anything, "item-1").Return(&models.CatalogItem{
		CatalogItemID: "item-1", Name: "City Tour", UnitPrice: 30, OwnerType: models.OwnerAttraction,
	}, nil)
	db.On("GetUserVouchers", mock.Anything, "user-1").Return([]models.UserVoucher{}, nil)
	db.On("CreateOrderGraph", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("CreatePaymentLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("gateway down"))

	_, err := svc.PlaceOrder(context.Background(), "user-1", models.OrderRequest{CartItemIDs: []string{"ci-1"}})
	require.Error(t, err)

	var external *ExternalError
	assert.ErrorAs(t, err, &external)
	// The order graph was persisted before the gateway call; the transaction
	// stays PENDING for a later retry
	db.AssertNumberOfCalls(t, "CreateOrderGraph", 1)
}

func TestPlaceOrderRetriesOnceOnOrderCodeCollision(t *testing.T) {
	db := new(mockDB)
	cat := new(mockCatalog)
	gw := new(mockGateway)
	svc := newTestService(db, cat, gw, nil, nil)

	db.On("GetCartItemsByIDs", mock.Anything, mock.Anything).Return([]models.CartItem{
		{CartItemID: "ci-1", UserID: "user-1", CatalogItemID: "item-1", Quantity: 1},
	}, nil)
	cat.On("GetItem", mock.Anything, "item-1").Return(&models.CatalogItem{
		CatalogItemID: "item-1", Name: "City Tour", UnitPrice: 30, OwnerType: models.OwnerAttraction,
	}, nil)
	db.On("GetUserVouchers", mock.Anything, "user-1").Return([]models.UserVoucher{}, nil)

	var codes []int64
	db.On("CreateOrderGraph", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			codes = append(codes, args.Get(4).(models.Transaction).OrderCode)
		}).
		Return(errors.New(`duplicate key value violates unique constraint "transactions_order_code_key"`)).Once()
	db.On("CreateOrderGraph", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			codes = append(codes, args.Get(4).(models.Transaction).OrderCode)
		}).
		Return(nil).Once()
	gw.On("CreatePaymentLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://pay.example.com/link", nil)

	resp, err := svc.PlaceOrder(context.Background(), "user-1", models.OrderRequest{CartItemIDs: []string{"ci-1"}})
	require.NoError(t, err)

	require.Len(t, codes, 2)
	assert.NotEqual(t, codes[0], codes[1])
	assert.Equal(t, codes[1], resp.Transaction.OrderCode)
}

func TestPreviewCommitsNothing(t *testing.T) {
	db := new(mockDB)
	cat := new(mockCatalog)
	svc := newTestService(db, cat, new(mockGateway), nil, nil)

	db.On("GetCartItemsByIDs", mock.Anything, mock.Anything).Return([]models.CartItem{
		{CartItemID: "ci-1", UserID: "user-1", CatalogItemID: "item-1", Quantity: 3},
	}, nil)
	cat.On("GetItem", mock.Anything, "item-1").Return(&models.CatalogItem{
		CatalogItemID: "item-1", Name: "Jazz Night", UnitPrice: 20, OwnerType: models.OwnerEvent,
	}, nil)
	db.On("GetUserVouchers", mock.Anything, "user-1").Return([]models.UserVoucher{}, nil)

	quote, err := svc.Preview(context.Background(), "user-1", models.PreviewRequest{CartItemIDs: []string{"ci-1"}})
	require.NoError(t, err)

	assert.Equal(t, 60.0, quote.Subtotal)
	assert.Equal(t, 60.0, quote.FinalAmount)
	db.AssertNotCalled(t, "CreateOrderGraph", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPreviewUnknownCartItem(t *testing.T) {
	db := new(mockDB)
	svc := newTestService(db, new(mockCatalog), new(mockGateway), nil, nil)

	db.On("GetCartItemsByIDs", mock.Anything, mock.Anything).Return([]models.CartItem{}, nil)

	_, err := svc.Preview(context.Background(), "user-1", models.PreviewRequest{CartItemIDs: []string{"ci-missing"}})
	require.Error(t, err)

	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
