package storage

import (
	"ms-checkout/internal/models"
)

// Store is the audit record of checkout links handed to users. It is a side
// store, not the source of truth; settlement reads transaction rows only, but
// mirrors the settled status back here so the audit trail stays honest.
type Store interface {
	SavePaymentLink(link *models.PaymentLink) error
	GetPaymentLinkByOrderCode(orderCode int64) (*models.PaymentLink, error)
	UpdatePaymentLinkStatus(id, status string) error

	Close() error
	HealthCheck() error
}
