// Package storetest 为测试提供独立的临时 SQLite 库。
package storetest

import (
	"path/filepath"
	"testing"

	"storefront/internal/model"
	"storefront/internal/store"

	"gorm.io/gorm"
)

// Open 在 t.TempDir() 下建库，测试结束时关闭。
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(db) })
	return db
}

// SeedProduct 直接写入一条商品记录。
func SeedProduct(t testing.TB, db *gorm.DB, slug string, price int64, currency string) *model.Product {
	t.Helper()
	p := &model.Product{Slug: slug, Name: slug, Price: price, Currency: currency}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product %s: %v", slug, err)
	}
	return p
}
