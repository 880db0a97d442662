package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/belanjaid/storefront-backend/internal/cart"
	"github.com/belanjaid/storefront-backend/internal/catalog"
	"github.com/belanjaid/storefront-backend/pkg/db/models"
	"github.com/belanjaid/storefront-backend/pkg/enums"
	pkgerrors "github.com/belanjaid/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the order lifecycle: the cart-to-order transaction plus reads
// and the later status mutations.
type Service interface {
	CreateFromCart(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, orderID uuid.UUID, patch UpdateInput) (*models.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	tx       txRunner
	repo     Repository
	cartRepo cart.Repository
	catalog  catalog.Repository
}

// NewService builds the order service.
func NewService(tx txRunner, repo Repository, cartRepo cart.Repository, catalogRepo catalog.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		cartRepo: cartRepo,
		catalog:  catalogRepo,
	}, nil
}

// CreateFromCart converts the user's cart into an order inside one
// transaction: the cart row is locked, every line is priced from the catalog,
// the order and its items are inserted, and the cart is emptied. Any failure
// rolls the whole unit back, leaving the cart untouched.
func (s *service) CreateFromCart(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.repo.WithTx(tx)
		catalogRepo := s.catalog.WithTx(tx)

		userCart, err := cartRepo.FindByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		items, err := cartRepo.FindItems(ctx, userCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart is empty")
		}

		// One price per variant, resolved inside the transaction. The same
		// value feeds both the stored line price and the order total.
		total := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			variant, err := catalogRepo.FindVariantByID(ctx, item.VariantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "cart contains a variant that can no longer be priced").
						WithDetails(map[string]any{"variant_id": item.VariantID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "price cart item")
			}
			total = total.Add(variant.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			orderItems = append(orderItems, models.OrderItem{
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
				UnitPrice: variant.Price,
			})
		}

		order, err := ordersRepo.CreateOrder(ctx, &models.Order{
			UserID:        userID,
			TotalAmount:   total,
			OrderStatus:   enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		for i := range orderItems {
			orderItems[i].OrderID = order.ID
		}
		if err := ordersRepo.CreateOrderItems(ctx, orderItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		// The cart row survives for reuse; only its items go.
		if err := cartRepo.DeleteItems(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		result, err = ordersRepo.FindByIDWithItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}
	return order, nil
}

// Update applies a partial status patch. Statuses must be known values but no
// transition graph is enforced; re-applying the current value is a no-op.
func (s *service) Update(ctx context.Context, orderID uuid.UUID, patch UpdateInput) (*models.Order, error) {
	if patch.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one of order status or payment status is required")
	}
	if patch.OrderStatus != nil && *patch.OrderStatus != "" && !patch.OrderStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", *patch.OrderStatus))
	}
	if patch.PaymentStatus != nil && *patch.PaymentStatus != "" && !patch.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment status %q", *patch.PaymentStatus))
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}

	if patch.OrderStatus != nil && *patch.OrderStatus != "" {
		order.OrderStatus = *patch.OrderStatus
	}
	if patch.PaymentStatus != nil && *patch.PaymentStatus != "" {
		order.PaymentStatus = *patch.PaymentStatus
	}

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}
	return order, nil
}

// Delete removes the order and its items in one transaction.
func (s *service) Delete(ctx context.Context, orderID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteItemsByOrder(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order items")
		}
		if err := repo.Delete(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return nil
	})
}
