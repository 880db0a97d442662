package wishlist

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/belanjaid/storefront-backend/pkg/db/models"
	pkgerrors "github.com/belanjaid/storefront-backend/pkg/errors"
)

func setupWishlistTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS wishlist_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (user_id, product_id)
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

// idAssigningRepo sets UUIDs client-side; the test schema carries no column
// defaults.
type idAssigningRepo struct {
	Repository
}

func (r *idAssigningRepo) Add(ctx context.Context, item *models.WishlistItem) (*models.WishlistItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.Repository.Add(ctx, item)
}

type stubProductLoader struct {
	known map[uuid.UUID]bool
}

func (s *stubProductLoader) FindProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if !s.known[id] {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Product{ID: id, Name: "Ceramic Mug"}, nil
}

func newWishlistService(t *testing.T, db *gorm.DB, productIDs ...uuid.UUID) Service {
	t.Helper()
	known := map[uuid.UUID]bool{}
	for _, id := range productIDs {
		known[id] = true
	}
	svc, err := NewService(&idAssigningRepo{Repository: NewRepository(db)}, &stubProductLoader{known: known})
	require.NoError(t, err)
	return svc
}

func TestAddRequiresExistingProduct(t *testing.T) {
	svc := newWishlistService(t, setupWishlistTestDB(t))

	_, err := svc.Add(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = svc.Add(context.Background(), uuid.New(), uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestAddListRemoveRoundTrip(t *testing.T) {
	productID := uuid.New()
	db := setupWishlistTestDB(t)
	svc := newWishlistService(t, db, productID)
	userID := uuid.New()

	item, err := svc.Add(context.Background(), userID, productID)
	require.NoError(t, err)
	assert.Equal(t, productID, item.ProductID)

	// adding the same product again conflicts
	_, err = svc.Add(context.Background(), userID, productID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	items, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.Remove(context.Background(), userID, productID))

	items, err = svc.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = svc.Remove(context.Background(), userID, productID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListScopedToUser(t *testing.T) {
	productID := uuid.New()
	db := setupWishlistTestDB(t)
	svc := newWishlistService(t, db, productID)

	first := uuid.New()
	second := uuid.New()
	_, err := svc.Add(context.Background(), first, productID)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), second, productID)
	require.NoError(t, err)

	items, err := svc.List(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first, items[0].UserID)
}
