package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"
)

func TestOpenSQLTranslatesDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQL(config.DBConfig{
		Driver: config.DriverSQLite,
		Name:   filepath.Join(t.TempDir(), "storefront.db"),
	}, true)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	st := store.NewGormStore(db)
	require.NoError(t, st.Migrate(ctx))

	category := &models.Category{Name: "Home", Slug: "home"}
	require.NoError(t, st.CreateCategory(ctx, category))

	lamp := &models.Product{Name: "Lamp", Slug: "same", Price: 10, Stock: 1, CategoryID: category.ID, IsActive: true}
	require.NoError(t, st.CreateProduct(ctx, lamp))
	twin := &models.Product{Name: "Other lamp", Slug: "same", Price: 12, Stock: 1, CategoryID: category.ID, IsActive: true}
	assert.ErrorIs(t, st.CreateProduct(ctx, twin), store.ErrConflict)

	twin.Slug = "other"
	require.NoError(t, st.CreateProduct(ctx, twin))
	twin.Slug = "same"
	assert.ErrorIs(t, st.UpdateProduct(ctx, twin), store.ErrConflict, "renaming onto a taken slug")
}
