package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/models"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func activeWindow() (time.Time, time.Time) {
	return now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)
}

func ownedVoucher(userVoucherID string, v models.Voucher) models.UserVoucher {
	start, end := activeWindow()
	if v.StartDate.IsZero() {
		v.StartDate = start
	}
	if v.EndDate.IsZero() {
		v.EndDate = end
	}
	if v.VoucherID == "" {
		v.VoucherID = "v-" + userVoucherID
	}
	voucher := v
	return models.UserVoucher{
		UserVoucherID: userVoucherID,
		UserID:        "user-1",
		VoucherID:     voucher.VoucherID,
		ObtainedAt:    now.AddDate(0, 0, -3),
		Voucher:       &voucher,
	}
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func lines(subtotal float64) []LineItem {
	return []LineItem{{
		CatalogItemID: "item-1",
		Name:          "Pottery Workshop",
		OwnerType:     models.OwnerWorkshop,
		UnitPrice:     subtotal,
		Quantity:      1,
	}}
}

func TestPercentVoucherCappedAtMaxDiscount(t *testing.T) {
	e := NewEvaluator()
	owned := []models.UserVoucher{
		ownedVoucher("uv-1", models.Voucher{
			Code:             "CAP20",
			DiscountType:     models.DiscountPercent,
			DiscountValue:    20,
			MaxDiscountValue: floatPtr(20),
		}),
	}

	quote, err := e.Evaluate(lines(150), owned, []string{"uv-1"}, now)
	require.NoError(t, err)

	assert.Equal(t, 150.0, quote.Subtotal)
	// 20% of 150 is 30, capped at 20
	assert.Equal(t, 20.0, quote.DiscountAmount)
	assert.Equal(t, 130.0, quote.FinalAmount)
	require.Len(t, quote.Applied, 1)
	assert.Equal(t, 20.0, quote.Applied[0].Amount)
}

func TestMinOrderValueBlocksRequestedVoucher(t *testing.T) {
	e := NewEvaluator()
	owned := []models.UserVoucher{
		ownedVoucher("uv-1", models.Voucher{
			Code:          "MIN50",
			DiscountType:  models.DiscountFixed,
			DiscountValue: 10,
			MinOrderValue: floatPtr(50),
		}),
	}

	_, err := e.Evaluate(lines(40), owned, []string{"uv-1"}, now)
	require.Error(t, err)

	var ineligible *IneligibleVoucherError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, "MIN50", ineligible.Code)
	assert.Contains(t, ineligible.Reason, "minimum")
}

func TestStackedFixedVouchers(t *testing.T) {
	e := NewEvaluator()
	owned := []models.UserVoucher{
		ownedVoucher("uv-1", models.Voucher{Code: "F10", DiscountType: models.DiscountFixed, DiscountValue: 10}),
		ownedVoucher("uv-2", models.Voucher{Code: "F15", DiscountType: models.DiscountFixed, DiscountValue: 15}),
	}

	quote, err := e.Evaluate(lines(100), owned, []string{"uv-1", "uv-2"}, now)
	require.NoError(t, err)

	assert.Equal(t, 25.0, quote.DiscountAmount)
	assert.Equal(t, 75.0, quote.FinalAmount)
	assert.Len(t, quote.Applied, 2)
}

func TestDiscountClampedToSubtotal(t *testing.T) {
	e := NewEvaluator()
	owned := []models.UserVoucher{
		ownedVoucher("uv-1", models.Voucher{Code: "BIG", DiscountType: models.DiscountFixed, DiscountValue: 100}),
	}

	quote, err := e.Evaluate(lines(60), owned, []string{"uv-1"}, now)
	require.NoError(t, err)

	assert.Equal(t, 60.0, quote.DiscountAmount)
	assert.Equal(t, 0.0, quote.FinalAmount)
}

func TestExpiredVoucherListedAsUnusable(t *testing.T) {
	e := NewEvaluator()
	expired := ownedVoucher("uv-1", models.Voucher{
		Code:          "OLD",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
	})
	expired.Voucher.EndDate = now.AddDate(0, 0, -1)

	quote, err := e.Evaluate(lines(100), []models.UserVoucher{expired}, nil, now)
	require.NoError(t, err)

	assert.Empty(t, quote.Usable)
	require.Len(t, quote.Unusable, 1)
	assert.Contains(t, quote.Unusable[0].Reason, "expired")
	assert.Equal(t, 100.0, quote.FinalAmount)
}

func TestRequestedVoucherNotOwned(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate(lines(100), nil, []string{"uv-ghost"}, now)
	require.Error(t, err)

	var ineligible *IneligibleVoucherError
	require.ErrorAs(t, err, &ineligible)
	assert.Contains(t, ineligible.Reason, "not owned")
}

func TestUsedVoucherRejected(t *testing.T) {
	e := NewEvaluator()
	used := ownedVoucher("uv-1", models.Voucher{Code: "ONCE", DiscountType: models.DiscountFixed, DiscountValue: 10})
	used.IsUsed = true

	_, err := e.Evaluate(lines(100), []models.UserVoucher{used}, []string{"uv-1"}, now)
	require.Error(t, err)

	var ineligible *IneligibleVoucherError
	require.ErrorAs(t, err, &ineligible)
	assert.Contains(t, ineligible.Reason, "already been used")
}

func TestDuplicateRequestRejected(t *testing.T) {
	e := NewEvaluator()
	owned := []models.UserVoucher{
		ownedVoucher("uv-1", models.Voucher{Code: "F10", DiscountType: models.DiscountFixed, DiscountValue: 10}),
	}

	_, err := e.Evaluate(lines(100), owned, []string{"uv-1", "uv-1"}, now)
	require.Error(t, err)

	var ineligible *IneligibleVoucherError
	require.ErrorAs(t, err, &ineligible)
	assert.Contains(t, ineligible.Reason, "more than once")
}

func TestUsageLimitReached(t *testing.T) {
	e := NewEvaluator()
	maxed := ownedVoucher("uv-1", models.Voucher{
		Code:          "LIM",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		UsageLimit:    intPtr(5),
		UsageCount:    5,
	})

	quote, err := e.Evaluate(lines(100), []models.UserVoucher{maxed}, nil, now)
	require.NoError(t, err)
	require.Len(t, quote.Unusable, 1)
	assert.Contains(t, quote.Unusable[0].Reason, "usage limit")
}

func TestSubtotalSumsQuantities(t *testing.T) {
	items := []LineItem{
		{UnitPrice: 25, Quantity: 2},
		{UnitPrice: 10, Quantity: 3},
	}
	assert.Equal(t, 80.0, Subtotal(items))
}
