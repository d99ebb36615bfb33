package voucher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

var (
	ErrUnknownCode    = errors.New("voucher code does not exist")
	ErrVoucherEnded   = errors.New("voucher campaign has ended")
	ErrLimitExhausted = errors.New("voucher usage limit exhausted")
	ErrAlreadyClaimed = errors.New("an unused instance is already held")
)

type DBLayer interface {
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	GetUserVouchers(ctx context.Context, userID string) ([]models.UserVoucher, error)
	HasUnusedInstance(ctx context.Context, userID, voucherID string) (bool, error)
	InsertUserVoucher(ctx context.Context, uv *models.UserVoucher) error
}

// Service manages the user's voucher wallet. Claiming creates an instance;
// consumption happens only at settlement, never here.
type Service struct {
	DB     DBLayer
	logger *logger.Logger
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, logger: log}
}

// Claim obtains an instance of a voucher by its public code. A user holds at
// most one unused instance of a given voucher at a time.
func (s *Service) Claim(ctx context.Context, userID, code string) (*models.UserVoucher, error) {
	voucher, err := s.DB.GetVoucherByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up voucher code: %w", err)
	}
	if voucher == nil {
		return nil, ErrUnknownCode
	}

	now := time.Now()
	if now.After(voucher.EndDate) {
		return nil, ErrVoucherEnded
	}
	if voucher.UsageLimit != nil && voucher.UsageCount >= *voucher.UsageLimit {
		return nil, ErrLimitExhausted
	}

	held, err := s.DB.HasUnusedInstance(ctx, userID, voucher.VoucherID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing instances: %w", err)
	}
	if held {
		return nil, ErrAlreadyClaimed
	}

	uv := &models.UserVoucher{
		UserVoucherID: uuid.NewString(),
		UserID:        userID,
		VoucherID:     voucher.VoucherID,
		ObtainedAt:    now,
		Voucher:       voucher,
	}
	if err := s.DB.InsertUserVoucher(ctx, uv); err != nil {
		return nil, fmt.Errorf("failed to claim voucher: %w", err)
	}

	s.logger.LogVoucher("CLAIM", uv.UserVoucherID, fmt.Sprintf("User %s claimed voucher %s", userID, voucher.Code))
	return uv, nil
}

// List returns every voucher instance the user holds, consumed or not.
func (s *Service) List(ctx context.Context, userID string) ([]models.UserVoucher, error) {
	vouchers, err := s.DB.GetUserVouchers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vouchers: %w", err)
	}
	return vouchers, nil
}
