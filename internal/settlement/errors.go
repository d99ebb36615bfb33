package settlement

import (
	"errors"
	"fmt"
)

// ErrSettlementInProgress means another confirmation currently holds the
// settlement lock for this order code and it has not finished yet.
var ErrSettlementInProgress = errors.New("settlement already in progress")

// UnknownOrderCodeError means no transaction carries the given gateway
// correlation key.
type UnknownOrderCodeError struct {
	OrderCode int64
}

func (e *UnknownOrderCodeError) Error() string {
	return fmt.Sprintf("no transaction found for order code %d", e.OrderCode)
}

// GatewayError wraps a failure to reach or parse the payment gateway.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway unavailable: %v", e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
