package main

import (
	"context"
	"fmt"
	"testing"

	"backend/internal/catalog"
	"backend/internal/infra"
	"backend/internal/logger"
	"backend/internal/search"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seedDBSeq int

func setupSeedTest(t *testing.T) (*gorm.DB, search.KeywordSearcher) {
	t.Helper()
	require.NoError(t, logger.Init("error", "console", "stdout"))

	seedDBSeq++
	dsn := fmt.Sprintf("file:seed_tool_%d?mode=memory&cache=shared", seedDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, infra.AutoMigrate(db, &catalog.Product{}, &catalog.Campaign{}))

	mirror := search.NewKeywordSearcher(db)
	require.NoError(t, mirror.EnsureIndex(context.Background()))
	return db, mirror
}

func productRequest(name string) catalog.CreateProductRequest {
	price := 19.9
	return catalog.CreateProductRequest{
		Name:        name,
		Description: "Produto de teste",
		Price:       &price,
		Category:    "Canecas",
	}
}

func TestImportProducts(t *testing.T) {
	t.Run("导入全部商品", func(t *testing.T) {
		db, mirror := setupSeedTest(t)

		imported, err := importProducts(context.Background(), db, mirror, []catalog.CreateProductRequest{
			productRequest("Caneca Azul"),
			productRequest("Almofada Estrela"),
		}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, imported)

		var count int64
		require.NoError(t, db.Model(&catalog.Product{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("中途失败整体回滚", func(t *testing.T) {
		db, mirror := setupSeedTest(t)

		_, err := importProducts(context.Background(), db, mirror, []catalog.CreateProductRequest{
			productRequest("Caneca Azul"),
			productRequest(""), // 名称缺失，校验失败
		}, false)
		require.Error(t, err)

		var count int64
		require.NoError(t, db.Model(&catalog.Product{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("replace 清空现有商品", func(t *testing.T) {
		db, mirror := setupSeedTest(t)

		_, err := importProducts(context.Background(), db, mirror, []catalog.CreateProductRequest{
			productRequest("Caneca Antiga"),
		}, false)
		require.NoError(t, err)

		imported, err := importProducts(context.Background(), db, mirror, []catalog.CreateProductRequest{
			productRequest("Caneca Nova"),
		}, true)
		require.NoError(t, err)
		assert.Equal(t, 1, imported)

		var products []*catalog.Product
		require.NoError(t, db.Find(&products).Error)
		require.Len(t, products, 1)
		assert.Equal(t, "Caneca Nova", products[0].Name)
	})
}
