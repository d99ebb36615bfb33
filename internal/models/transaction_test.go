package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayRef(t *testing.T) {
	assert.Equal(t, "PAYOS_1700000000001", GatewayRef(1700000000001))
}

func TestVoucherListRoundTrip(t *testing.T) {
	desc := EncodeVoucherList("Payment for order order-1", []string{"uv-1", "uv-2"})
	assert.Equal(t, "Payment for order order-1 | Vouchers: uv-1,uv-2", desc)
	assert.Equal(t, []string{"uv-1", "uv-2"}, DecodeVoucherList(desc))
}

func TestEncodeVoucherListEmpty(t *testing.T) {
	assert.Equal(t, "plain description", EncodeVoucherList("plain description", nil))
}

func TestDecodeVoucherListAbsent(t *testing.T) {
	assert.Nil(t, DecodeVoucherList("Payment for order order-1"))
	assert.Nil(t, DecodeVoucherList(""))
}

func TestDecodeVoucherListMalformed(t *testing.T) {
	// Trailing commas and spaces must not yield empty ids
	assert.Equal(t, []string{"uv-1"}, DecodeVoucherList("desc | Vouchers: uv-1,, "))
	assert.Nil(t, DecodeVoucherList("desc | Vouchers: "))
}
