package voucher

import (
	"context"
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

func (m *mockDB) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Voucher), args.Error(1)
}

func (m *mockDB) GetUserVouchers(ctx context.Context, userID string) ([]models.UserVoucher, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.UserVoucher), args.Error(1)
}

func (m *mockDB) HasUnusedInstance(ctx context.Context, userID, voucherID string) (bool, error) {
	args := m.Called(ctx, userID, voucherID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDB) InsertUserVoucher(ctx context.Context, uv *models.UserVoucher) error {
	args := m.Called(ctx, uv)
	return args.Error(0)
}

func liveVoucher() *models.Voucher {
	return &models.Voucher{
		VoucherID:     "v-1",
		Code:          "WELCOME10",
		DiscountType:  models.DiscountPercent,
		DiscountValue: 10,
		StartDate:     time.Now().AddDate(0, -1, 0),
		EndDate:       time.Now().AddDate(0, 1, 0),
	}
}

func TestClaimCreatesInstance(t *testing.T) {
	db := new(mockDB)
	svc := NewService(db, logger.NewLogger())

	db.On("GetVoucherByCode", mock.Anything, "WELCOME10").Return(liveVoucher(), nil)
	db.On("HasUnusedInstance", mock.Anything, "user-1", "v-1").Return(false, nil)
	db.On("InsertUserVoucher", mock.Anything, mock.Anything).Return(nil)

	uv, err := svc.Claim(context.Background(), "user-1", "WELCOME10")
	require.NoError(t, err)

	assert.NotEmpty(t, uv.UserVoucherID)
	assert.Equal(t, "user-1", uv.UserID)
	assert.Equal(t, "v-1", uv.VoucherID)
	assert.False(t, uv.IsUsed)
	assert.False(t, uv.ObtainedAt.IsZero())
}

func TestClaimUnknownCode(t *testing.T) {
	db := new(mockDB)
	svc := NewService(db, logger.NewLogger())

	db.On("GetVoucherByCode", mock.Anything, "NOPE").Return(nil, nil)

	_, err := svc.Claim(context.Background(), "user-1", "NOPE")
	assert.ErrorIs(t, err, ErrUnknownCode)
}

func TestClaimEndedCampaign(t *testing.T) {
	db := new(mockDB)
	svc := NewService(db, logger.NewLogger())

	ended := liveVoucher()
	ended.EndDate = time.Now().AddDate(0, 0, -1)
	db.On("GetVoucherByCode", mock.Anything, "WELCOME10").Return(ended, nil)

	_, err := svc.Claim(context.Background(), "user-1", "WELCOME10")
	assert.ErrorIs(t, err, ErrVoucherEnded)
}

func TestClaimExhaustedVoucher(t *testing.T) {
	db := new(mockDB)
	svc := NewService(db, logger.NewLogger())

	limit := 100
	maxed := liveVoucher()
	maxed.UsageLimit = &limit
	maxed.UsageCount = 100
	db.On("GetVoucherByCode", mock.Anything, "WELCOME10").Return(maxed, nil)

	_, err := svc.Claim(context.Background(), "user-1", "WELCOME10")
	assert.ErrorIs(t, err, ErrLimitExhausted)
}

func TestClaimWhileHoldingUnusedInstance(t *testing.T) {
	db := new(mockDB)
	svc := NewService(db, logger.NewLogger())

	db.On("GetVoucherByCode", mock.Anything, "WELCOME10").Return(liveVoucher(), nil)
	db.On("HasUnusedInstance", mock.Anything, "user-1", "v-1").Return(true, nil)

	_, err := svc.Claim(context.Background(), "user-1", "WELCOME10")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	db.AssertNotCalled(t, "InsertUserVoucher", mock.Anything, mock.Anything)
}

func TestListReturnsWallet(t *testing.T) {
	db := new(mockDB)
	svc := NewService(db, logger.NewLogger())

	db.On("GetUserVouchers", mock.Anything, "user-1").Return([]models.UserVoucher{
		{UserVoucherID: "uv-1"}, {UserVoucherID: "uv-2", IsUsed: true},
	}, nil)

	wallet, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, wallet, 2)
}
