package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/belanjaid/storefront-backend/pkg/db/models"
	pkgerrors "github.com/belanjaid/storefront-backend/pkg/errors"
)

type variantLoader interface {
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
}

// AddItemInput captures an add-to-cart request after validation.
type AddItemInput struct {
	VariantID uuid.UUID
	Quantity  int
	Note      *string
}

// Service owns cart reads and mutations for a single user.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, variantID uuid.UUID) error
}

type service struct {
	repo     Repository
	variants variantLoader
}

// NewService builds the cart service.
func NewService(repo Repository, variants variantLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if variants == nil {
		return nil, fmt.Errorf("variant loader required")
	}
	return &service{repo: repo, variants: variants}, nil
}

// Get returns the user's cart with items, creating an empty cart lazily.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.withItems(ctx, cart)
}

// AddItem upserts a variant line: an existing line's quantity is incremented,
// a new line is inserted otherwise.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if input.VariantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	if _, err := s.variants.FindVariantByID(ctx, input.VariantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find variant")
	}

	cart, err := s.repo.FindOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	item, err := s.repo.FindItem(ctx, cart.ID, input.VariantID)
	switch {
	case err == nil:
		item.Quantity += input.Quantity
		if input.Note != nil {
			item.Note = input.Note
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = &models.CartItem{
			CartID:    cart.ID,
			VariantID: input.VariantID,
			Quantity:  input.Quantity,
			Note:      input.Note,
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart item")
	}

	if err := s.repo.SaveItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return s.withItems(ctx, cart)
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, cart.ID, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not in cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart item")
	}

	item.Quantity = quantity
	if err := s.repo.SaveItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return s.withItems(ctx, cart)
}

func (s *service) RemoveItem(ctx context.Context, userID, variantID uuid.UUID) error {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return err
	}

	affected, err := s.repo.DeleteItem(ctx, cart.ID, variantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not in cart")
	}
	return nil
}

func (s *service) findCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) withItems(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	items, err := s.repo.FindItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	cart.Items = items
	return cart, nil
}
