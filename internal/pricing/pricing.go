package pricing

import (
	"fmt"
	"time"

	"ms-checkout/internal/models"
)

// LineItem is a cart selection resolved against the catalog: price and name
// as observed at evaluation time.
type LineItem struct {
	CatalogItemID string
	Name          string
	OwnerType     models.OwnerType
	UnitPrice     float64
	Quantity      int
}

// VoucherStanding classifies one owned voucher instance against the current
// selection. Unusable vouchers carry the reason for display.
type VoucherStanding struct {
	UserVoucherID string  `json:"user_voucher_id"`
	VoucherID     string  `json:"voucher_id"`
	Code          string  `json:"code"`
	Eligible      bool    `json:"eligible"`
	Reason        string  `json:"reason,omitempty"`
	Discount      float64 `json:"discount,omitempty"`
}

// AppliedVoucher is a requested, validated voucher and the discount it
// contributes to the order.
type AppliedVoucher struct {
	UserVoucherID string  `json:"user_voucher_id"`
	VoucherID     string  `json:"voucher_id"`
	Code          string  `json:"code"`
	Amount        float64 `json:"amount"`
}

// Quote is the full pricing outcome for one selection plus a tentative
// voucher choice. FinalAmount is never negative.
type Quote struct {
	Subtotal       float64           `json:"subtotal"`
	DiscountAmount float64           `json:"discount_amount"`
	FinalAmount    float64           `json:"final_amount"`
	Usable         []VoucherStanding `json:"usable_vouchers"`
	Unusable       []VoucherStanding `json:"unusable_vouchers"`
	Applied        []AppliedVoucher  `json:"applied_vouchers"`
}

// IneligibleVoucherError rejects the whole checkout, naming the voucher that
// failed validation.
type IneligibleVoucherError struct {
	VoucherID string
	Code      string
	Reason    string
}

func (e *IneligibleVoucherError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("voucher %s cannot be applied: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("voucher %s cannot be applied: %s", e.VoucherID, e.Reason)
}

// Evaluator prices a selection and validates voucher choices. It is pure:
// callers pass "now" so preview and commit share the exact same rules.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Subtotal sums unit price times quantity over the selected lines.
func Subtotal(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// standing evaluates one owned voucher instance against the subtotal,
// independent of whether it was requested.
func standing(uv models.UserVoucher, subtotal float64, now time.Time) VoucherStanding {
	st := VoucherStanding{
		UserVoucherID: uv.UserVoucherID,
		VoucherID:     uv.VoucherID,
	}
	voucher := uv.Voucher
	if voucher == nil {
		st.Reason = "voucher definition missing"
		return st
	}
	st.Code = voucher.Code

	if uv.IsUsed {
		st.Reason = "voucher has already been used"
		return st
	}
	if now.Before(voucher.StartDate) {
		st.Reason = "voucher is not yet active"
		return st
	}
	if now.After(voucher.EndDate) {
		st.Reason = "voucher has expired"
		return st
	}
	if voucher.UsageLimit != nil && voucher.UsageCount >= *voucher.UsageLimit {
		st.Reason = "voucher usage limit has been reached"
		return st
	}
	if voucher.MinOrderValue != nil && subtotal < *voucher.MinOrderValue {
		st.Reason = fmt.Sprintf("order subtotal does not meet minimum of %.2f", *voucher.MinOrderValue)
		return st
	}

	st.Eligible = true
	st.Discount = discountFor(voucher, subtotal)
	return st
}

// discountFor computes the discount one voucher contributes against the
// subtotal. PERCENT is capped at MaxDiscountValue when set; FIXED is taken
// as-is. Clamping the summed discount to the subtotal happens in Evaluate.
func discountFor(voucher *models.Voucher, subtotal float64) float64 {
	switch voucher.DiscountType {
	case models.DiscountPercent:
		amount := subtotal * voucher.DiscountValue / 100
		if voucher.MaxDiscountValue != nil && amount > *voucher.MaxDiscountValue {
			amount = *voucher.MaxDiscountValue
		}
		return amount
	case models.DiscountFixed:
		return voucher.DiscountValue
	default:
		return 0
	}
}

// Evaluate computes the subtotal for the selection, classifies every owned
// voucher, and validates the requested voucher instances. A requested voucher
// that is not owned, already used, or otherwise ineligible fails the whole
// evaluation with an IneligibleVoucherError.
func (e *Evaluator) Evaluate(items []LineItem, owned []models.UserVoucher, requested []string, now time.Time) (*Quote, error) {
	quote := &Quote{
		Subtotal: Subtotal(items),
		Usable:   []VoucherStanding{},
		Unusable: []VoucherStanding{},
		Applied:  []AppliedVoucher{},
	}

	standings := make(map[string]VoucherStanding, len(owned))
	for _, uv := range owned {
		st := standing(uv, quote.Subtotal, now)
		standings[uv.UserVoucherID] = st
		if st.Eligible {
			quote.Usable = append(quote.Usable, st)
		} else {
			quote.Unusable = append(quote.Unusable, st)
		}
	}

	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if seen[id] {
			return nil, &IneligibleVoucherError{VoucherID: id, Reason: "voucher requested more than once"}
		}
		seen[id] = true

		st, ok := standings[id]
		if !ok {
			return nil, &IneligibleVoucherError{VoucherID: id, Reason: "voucher is not owned by this user"}
		}
		if !st.Eligible {
			return nil, &IneligibleVoucherError{VoucherID: id, Code: st.Code, Reason: st.Reason}
		}

		quote.DiscountAmount += st.Discount
		quote.Applied = append(quote.Applied, AppliedVoucher{
			UserVoucherID: st.UserVoucherID,
			VoucherID:     st.VoucherID,
			Code:          st.Code,
			Amount:        st.Discount,
		})
	}

	// Total discount can never exceed the subtotal
	if quote.DiscountAmount > quote.Subtotal {
		quote.DiscountAmount = quote.Subtotal
	}
	quote.FinalAmount = quote.Subtotal - quote.DiscountAmount

	return quote, nil
}
