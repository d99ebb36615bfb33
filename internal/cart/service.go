package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-checkout/internal/catalog"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// NotOwnedError means the cart item exists but belongs to someone else.
type NotOwnedError struct {
	CartItemID string
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("cart item %s does not belong to the requesting user", e.CartItemID)
}

type DBLayer interface {
	GetCartItem(ctx context.Context, cartItemID string) (*models.CartItem, error)
	GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error)
	FindByCatalogItem(ctx context.Context, userID, catalogItemID string) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, item *models.CartItem) error
	UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error
	DeleteCartItem(ctx context.Context, cartItemID string) error
}

// Service manages the pre-checkout cart. The cart holds references only;
// prices come from the catalog at preview and order time, never from here.
type Service struct {
	DB      DBLayer
	Catalog catalog.Fetcher
	logger  *logger.Logger
}

func NewService(db DBLayer, cat catalog.Fetcher, log *logger.Logger) *Service {
	return &Service{DB: db, Catalog: cat, logger: log}
}

// AddItem puts a catalog item in the user's cart, merging with an existing
// line for the same item.
func (s *Service) AddItem(ctx context.Context, userID string, req models.AddCartItemRequest) (*models.CartItem, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	// The catalog is the source of truth for item existence
	if _, err := s.Catalog.GetItem(ctx, req.CatalogItemID); err != nil {
		return nil, fmt.Errorf("catalog item %s unavailable: %w", req.CatalogItemID, err)
	}

	existing, err := s.DB.FindByCatalogItem(ctx, userID, req.CatalogItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to check cart: %w", err)
	}
	if existing != nil {
		newQuantity := existing.Quantity + req.Quantity
		if err := s.DB.UpdateQuantity(ctx, existing.CartItemID, newQuantity); err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
		existing.Quantity = newQuantity
		s.logger.Info("CART", fmt.Sprintf("Merged %s into cart item %s, quantity now %d", req.CatalogItemID, existing.CartItemID, newQuantity))
		return existing, nil
	}

	item := &models.CartItem{
		CartItemID:    uuid.NewString(),
		UserID:        userID,
		CatalogItemID: req.CatalogItemID,
		Quantity:      req.Quantity,
		AddedAt:       time.Now(),
	}
	if err := s.DB.InsertCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	s.logger.Info("CART", fmt.Sprintf("Added catalog item %s to cart for user %s", req.CatalogItemID, userID))
	return item, nil
}

func (s *Service) ListItems(ctx context.Context, userID string) (*models.CartResponse, error) {
	items, err := s.DB.GetCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &models.CartResponse{Items: items, ItemCount: len(items)}, nil
}

// UpdateItem changes the quantity of a line the user owns.
func (s *Service) UpdateItem(ctx context.Context, userID, cartItemID string, req models.UpdateCartItemRequest) (*models.CartItem, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.DB.GetCartItem(ctx, cartItemID)
	if err != nil {
		return nil, fmt.Errorf("cart item %s not found: %w", cartItemID, err)
	}
	if item.UserID != userID {
		return nil, &NotOwnedError{CartItemID: cartItemID}
	}

	if err := s.DB.UpdateQuantity(ctx, cartItemID, req.Quantity); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	item.Quantity = req.Quantity
	return item, nil
}

// RemoveItem deletes a line the user owns.
func (s *Service) RemoveItem(ctx context.Context, userID, cartItemID string) error {
	item, err := s.DB.GetCartItem(ctx, cartItemID)
	if err != nil {
		return fmt.Errorf("cart item %s not found: %w", cartItemID, err)
	}
	if item.UserID != userID {
		return &NotOwnedError{CartItemID: cartItemID}
	}

	if err := s.DB.DeleteCartItem(ctx, cartItemID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	s.logger.Info("CART", fmt.Sprintf("Removed cart item %s for user %s", cartItemID, userID))
	return nil
}
