package checkout

import (
	"errors"
	"fmt"
)

// ErrEmptySelection rejects checkouts with no cart items selected.
var ErrEmptySelection = errors.New("no cart items selected")

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// OwnershipError reports a cart item that belongs to a different user. It is
// distinct from validation failures so handlers can answer 403 instead of 400.
type OwnershipError struct {
	CartItemID string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("cart item %s does not belong to the requesting user", e.CartItemID)
}

// ExternalError wraps a failure of an outside dependency (catalog service or
// payment gateway). Safe to retry; any persisted transaction stays PENDING.
type ExternalError struct {
	Service string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}
