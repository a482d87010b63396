package catalog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db/dbtest"
)

func TestRepository_ProductLifecycle(t *testing.T) {
	pool := dbtest.Open(t)
	repo := catalog.NewRepository(pool)
	ctx := context.Background()

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, categories)

	p := &catalog.Product{
		Name:       "Retro Console",
		Price:      decimal.RequireFromString("199.90"),
		Stock:      2,
		CategoryID: categories[0].ID,
		Active:     true,
	}
	require.NoError(t, repo.CreateProduct(ctx, p))
	require.NotZero(t, p.ID)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(got.Price))
	assert.Equal(t, categories[0].Name, got.CategoryName)

	drained, err := catalog.ApplyStockDelta(*got, -2)
	require.NoError(t, err)
	require.NoError(t, repo.SaveStock(ctx, drained))

	got, err = repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.False(t, got.Active)

	listed, err := repo.ListProducts(ctx, catalog.ProductFilter{InStockOnly: true})
	require.NoError(t, err)
	assert.Empty(t, listed)

	updated, err := repo.ModifyProduct(ctx, p.ID, func(p *catalog.Product) error {
		p.Stock = 5
		p.Active = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Stock)

	ordered, err := repo.IsOrdered(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ordered)

	require.NoError(t, repo.DeleteProduct(ctx, p.ID))
	_, err = repo.GetProduct(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepository_ModifyProduct_AbortLeavesRowUntouched(t *testing.T) {
	pool := dbtest.Open(t)
	repo := catalog.NewRepository(pool)
	ctx := context.Background()

	id := dbtest.SeedProduct(t, pool, "Joystick", "25.00", 3)

	_, err := repo.ModifyProduct(ctx, id, func(p *catalog.Product) error {
		p.Stock = 100
		return apperr.ErrInvalidInput
	})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	got, err := repo.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestRepository_CreateCategory_Duplicate(t *testing.T) {
	pool := dbtest.Open(t)
	repo := catalog.NewRepository(pool)

	err := repo.CreateCategory(context.Background(), &catalog.Category{Name: "Consoles"})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRepository_ProductNameUniquePerCategory(t *testing.T) {
	pool := dbtest.Open(t)
	repo := catalog.NewRepository(pool)
	ctx := context.Background()

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(categories), 2)
	first, second := categories[0].ID, categories[1].ID

	newProduct := func(name string, categoryID int64) *catalog.Product {
		return &catalog.Product{Name: name, Price: decimal.RequireFromString("10.00"), Stock: 1, CategoryID: categoryID, Active: true}
	}

	original := newProduct("Arcade Stick", first)
	require.NoError(t, repo.CreateProduct(ctx, original))

	err = repo.CreateProduct(ctx, newProduct("arcade stick", first))
	require.ErrorIs(t, err, apperr.ErrConflict)

	other := newProduct("Arcade Stick", second)
	require.NoError(t, repo.CreateProduct(ctx, other))

	taken, err := repo.NameTaken(ctx, "ARCADE STICK", first, 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.NameTaken(ctx, "Arcade Stick", first, original.ID)
	require.NoError(t, err)
	assert.False(t, taken, "the product being edited does not collide with itself")

	_, err = repo.ModifyProduct(ctx, other.ID, func(p *catalog.Product) error {
		p.CategoryID = first
		return nil
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
}
