package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/belanjaid/storefront-backend/internal/cart"
	"github.com/belanjaid/storefront-backend/internal/catalog"
	"github.com/belanjaid/storefront-backend/pkg/db/models"
	"github.com/belanjaid/storefront-backend/pkg/enums"
	pkgerrors "github.com/belanjaid/storefront-backend/pkg/errors"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  note TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, variant_id)
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  price TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  order_status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// gormTxRunner mirrors the production transaction wrapper for the in-memory DB.
type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// idAssigningRepo sets UUIDs client-side; the test schema carries no column
// defaults. FailItems injects a mid-transaction failure.
type idAssigningRepo struct {
	Repository
	FailItems bool
}

func (r *idAssigningRepo) WithTx(tx *gorm.DB) Repository {
	return &idAssigningRepo{Repository: r.Repository.WithTx(tx), FailItems: r.FailItems}
}

func (r *idAssigningRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.Repository.CreateOrder(ctx, order)
}

func (r *idAssigningRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if r.FailItems {
		return errors.New("simulated write failure")
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.Repository.CreateOrderItems(ctx, items)
}

func seedCart(t *testing.T, db *gorm.DB, userID uuid.UUID) *models.Cart {
	t.Helper()
	record := &models.Cart{ID: uuid.New(), UserID: userID}
	require.NoError(t, db.Create(record).Error)
	return record
}

func seedVariant(t *testing.T, db *gorm.DB, price string) *models.ProductVariant {
	t.Helper()
	product := &models.Product{ID: uuid.New(), Name: "Ceramic Mug"}
	require.NoError(t, db.Create(product).Error)

	amount, err := decimal.NewFromString(price)
	require.NoError(t, err)
	variant := &models.ProductVariant{
		ID:        uuid.New(),
		ProductID: product.ID,
		Name:      "Default",
		SKU:       "SKU-" + uuid.NewString()[:8],
		Price:     amount,
	}
	require.NoError(t, db.Create(variant).Error)
	return variant
}

func seedCartItem(t *testing.T, db *gorm.DB, cartID, variantID uuid.UUID, qty int) *models.CartItem {
	t.Helper()
	item := &models.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		VariantID: variantID,
		Quantity:  qty,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func newOrdersService(t *testing.T, db *gorm.DB, repo Repository) Service {
	t.Helper()
	svc, err := NewService(gormTxRunner{db: db}, repo, cart.NewRepository(db), catalog.NewRepository(db))
	require.NoError(t, err)
	return svc
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func TestCreateFromCartComputesTotalAndClearsCart(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db, &idAssigningRepo{Repository: NewRepository(db)})

	userID := uuid.New()
	userCart := seedCart(t, db, userID)
	mug := seedVariant(t, db, "10.00")
	coaster := seedVariant(t, db, "5.00")
	seedCartItem(t, db, userCart.ID, mug.ID, 2)
	seedCartItem(t, db, userCart.ID, coaster.ID, 1)

	order, err := svc.CreateFromCart(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, userID, order.UserID)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("25.00")),
		"expected total 25.00, got %s", order.TotalAmount)
	assert.Equal(t, enums.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Items, 2)

	priceByVariant := map[uuid.UUID]decimal.Decimal{}
	for _, item := range order.Items {
		priceByVariant[item.VariantID] = item.UnitPrice
	}
	assert.True(t, priceByVariant[mug.ID].Equal(decimal.RequireFromString("10.00")))
	assert.True(t, priceByVariant[coaster.ID].Equal(decimal.RequireFromString("5.00")))

	// cart row survives, its items do not
	var survivor models.Cart
	require.NoError(t, db.Where("user_id = ?", userID).First(&survivor).Error)
	assert.Equal(t, int64(0), countRows(t, db, &models.CartItem{}))
}

func TestCreateFromCartRollsBackOnItemWriteFailure(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db, &idAssigningRepo{Repository: NewRepository(db), FailItems: true})

	userID := uuid.New()
	userCart := seedCart(t, db, userID)
	variant := seedVariant(t, db, "10.00")
	seedCartItem(t, db, userCart.ID, variant.ID, 2)

	_, err := svc.CreateFromCart(context.Background(), userID)
	require.Error(t, err)

	// nothing persisted, cart untouched
	assert.Equal(t, int64(0), countRows(t, db, &models.Order{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.OrderItem{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.CartItem{}))
}

func TestCreateFromCartRejectsMissingCart(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db, &idAssigningRepo{Repository: NewRepository(db)})

	_, err := svc.CreateFromCart(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCreateFromCartRejectsEmptyCart(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db, &idAssigningRepo{Repository: NewRepository(db)})

	userID := uuid.New()
	seedCart(t, db, userID)

	_, err := svc.CreateFromCart(context.Background(), userID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, "cart is empty", typed.Message())
}

func TestCreateFromCartFailsWhenVariantUnpriceable(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db, &idAssigningRepo{Repository: NewRepository(db)})

	userID := uuid.New()
	userCart := seedCart(t, db, userID)
	seedCartItem(t, db, userCart.ID, uuid.New(), 1)

	_, err := svc.CreateFromCart(context.Background(), userID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	// the failed checkout must not consume the cart
	assert.Equal(t, int64(0), countRows(t, db, &models.Order{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.CartItem{}))
}

func TestCreateFromCartSecondCheckoutFindsEmptyCart(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db, &idAssigningRepo{Repository: NewRepository(db)})

	userID := uuid.New()
	userCart := seedCart(t, db, userID)
	variant := seedVariant(t, db, "10.00")
	seedCartItem(t, db, userCart.ID, variant.ID, 1)

	first, err := svc.CreateFromCart(context.Background(), userID)
	require.NoError(t, err)

	_, err = svc.CreateFromCart(context.Background(), userID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	// exactly one order, from the first call
	assert.Equal(t, int64(1), countRows(t, db, &models.Order{}))
	var persisted models.Order
	require.NoError(t, db.First(&persisted).Error)
	assert.Equal(t, first.ID, persisted.ID)
}

func TestCreateFromCartConcurrentCheckoutsCreateOneOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db, &idAssigningRepo{Repository: NewRepository(db)})

	userID := uuid.New()
	userCart := seedCart(t, db, userID)
	variant := seedVariant(t, db, "10.00")
	seedCartItem(t, db, userCart.ID, variant.ID, 1)

	// sqlite has no FOR UPDATE row lock; a single pooled connection
	// serializes the two transactions the way the postgres lock does
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	start := make(chan struct{})
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.CreateFromCart(context.Background(), userID)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	// the winner consumes the cart; the loser re-reads it empty
	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	}
	assert.Equal(t, 1, successes, "exactly one checkout may succeed")
	assert.Equal(t, int64(1), countRows(t, db, &models.Order{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.CartItem{}))
}

func TestListReturnsOnlyOwnOrders(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := &idAssigningRepo{Repository: NewRepository(db)}
	svc := newOrdersService(t, db, repo)

	owner := uuid.New()
	other := uuid.New()
	for _, userID := range []uuid.UUID{owner, other} {
		userCart := seedCart(t, db, userID)
		variant := seedVariant(t, db, "7.50")
		seedCartItem(t, db, userCart.ID, variant.ID, 1)
		_, err := svc.CreateFromCart(context.Background(), userID)
		require.NoError(t, err)
	}

	orders, err := svc.List(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, owner, orders[0].UserID)
	require.Len(t, orders[0].Items, 1)
}

func TestUpdateAppliesPartialPatch(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := &idAssigningRepo{Repository: NewRepository(db)}
	svc := newOrdersService(t, db, repo)

	userID := uuid.New()
	userCart := seedCart(t, db, userID)
	variant := seedVariant(t, db, "10.00")
	seedCartItem(t, db, userCart.ID, variant.ID, 1)
	order, err := svc.CreateFromCart(context.Background(), userID)
	require.NoError(t, err)

	paid := enums.PaymentStatusPaid
	updated, err := svc.Update(context.Background(), order.ID, UpdateInput{PaymentStatus: &paid})
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPending, updated.OrderStatus, "untouched field keeps its value")

	// re-applying the same patch is a no-op, not an error
	again, err := svc.Update(context.Background(), order.ID, UpdateInput{PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, again.PaymentStatus)
}

func TestUpdateRejectsEmptyAndUnknownStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := &idAssigningRepo{Repository: NewRepository(db)}
	svc := newOrdersService(t, db, repo)

	userID := uuid.New()
	userCart := seedCart(t, db, userID)
	variant := seedVariant(t, db, "10.00")
	seedCartItem(t, db, userCart.ID, variant.ID, 1)
	order, err := svc.CreateFromCart(context.Background(), userID)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), order.ID, UpdateInput{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	bogus := enums.OrderStatus("teleported")
	_, err = svc.Update(context.Background(), order.ID, UpdateInput{OrderStatus: &bogus})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUpdateMissingOrderReturnsNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersService(t, db, &idAssigningRepo{Repository: NewRepository(db)})

	paid := enums.PaymentStatusPaid
	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{PaymentStatus: &paid})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestDeleteRemovesOrderAndItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := &idAssigningRepo{Repository: NewRepository(db)}
	svc := newOrdersService(t, db, repo)

	userID := uuid.New()
	userCart := seedCart(t, db, userID)
	variant := seedVariant(t, db, "10.00")
	seedCartItem(t, db, userCart.ID, variant.ID, 2)
	order, err := svc.CreateFromCart(context.Background(), userID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), order.ID))

	assert.Equal(t, int64(0), countRows(t, db, &models.Order{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.OrderItem{}))

	err = svc.Delete(context.Background(), order.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
