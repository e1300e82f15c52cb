package checkout_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anasbld/pos_system/internal/checkout"
	"github.com/anasbld/pos_system/internal/models"
	"github.com/anasbld/pos_system/internal/session"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// a single connection so every in-memory handle sees the same database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.Transaction{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, stock uint) models.Product {
	t.Helper()
	p := models.Product{Name: name, Batch: "900800700", Category: "Electronics", Price: price, Stock: stock, ImgURL: "./tmp/x.jpg"}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func cartFor(p models.Product, qty uint) []session.CartLine {
	return []session.CartLine{{
		ProductID: p.ID,
		Name:      p.Name,
		Batch:     p.Batch,
		Price:     p.Price,
		ImgURL:    p.ImgURL,
		Quantity:  qty,
		MaxStock:  p.Stock,
	}}
}

func TestCheckoutEmptyCart(t *testing.T) {
	co := &checkout.Coordinator{DB: newTestDB(t)}

	_, err := co.Checkout(context.Background(), 1, nil)
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestCheckoutSuccess(t *testing.T) {
	db := newTestDB(t)
	co := &checkout.Coordinator{DB: db}

	p := seedProduct(t, db, "Bluetooth Speaker", 79.99, 5)

	receipt, err := co.Checkout(context.Background(), 1, cartFor(p, 2))
	require.NoError(t, err)
	require.NotZero(t, receipt.TransactionID)
	require.InDelta(t, 159.98, receipt.Total, 0.001)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(3), got.Stock)

	var tx models.Transaction
	require.NoError(t, db.First(&tx, receipt.TransactionID).Error)
	require.Equal(t, uint(1), tx.UserID)
	require.InDelta(t, 159.98, tx.Total, 0.001)
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	db := newTestDB(t)
	co := &checkout.Coordinator{DB: db}

	p := seedProduct(t, db, "Running Shoes", 89.99, 3)
	cart := cartFor(p, 3)

	// stock moved since the cart snapshot was taken
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Update("stock", 2).Error)

	_, err := co.Checkout(context.Background(), 1, cart)
	var stockErr *checkout.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, p.ID, stockErr.ProductID)
	require.Equal(t, uint(2), stockErr.Available)

	// nothing committed
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Zero(t, count)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(2), got.Stock)
}

func TestCheckoutMissingProductRollsBack(t *testing.T) {
	db := newTestDB(t)
	co := &checkout.Coordinator{DB: db}

	p := seedProduct(t, db, "Premium Coffee", 12.99, 10)
	ghost := []session.CartLine{
		cartFor(p, 1)[0],
		{ProductID: 9999, Name: "Discontinued", Price: 1, Quantity: 1, MaxStock: 1},
	}

	_, err := co.Checkout(context.Background(), 1, ghost)
	var stockErr *checkout.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, uint(9999), stockErr.ProductID)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(10), got.Stock)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCheckoutMultipleLines(t *testing.T) {
	db := newTestDB(t)
	co := &checkout.Coordinator{DB: db}

	a := seedProduct(t, db, "Cotton T-Shirt", 19.99, 4)
	b := seedProduct(t, db, "Bestseller Novel", 24.99, 2)

	cart := append(cartFor(a, 2), cartFor(b, 2)...)
	receipt, err := co.Checkout(context.Background(), 3, cart)
	require.NoError(t, err)
	require.InDelta(t, 2*19.99+2*24.99, receipt.Total, 0.001)

	var gotA, gotB models.Product
	require.NoError(t, db.First(&gotA, a.ID).Error)
	require.NoError(t, db.First(&gotB, b.ID).Error)
	require.Equal(t, uint(2), gotA.Stock)
	require.Equal(t, uint(0), gotB.Stock)
}

// Two checkouts racing for stock that covers only one of them: exactly one
// commits, the store ends drained, and a single transaction row exists.
func TestConcurrentCheckoutNeverOversells(t *testing.T) {
	db := newTestDB(t)
	co := &checkout.Coordinator{DB: db}

	p := seedProduct(t, db, "Smartphone X10", 599.99, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = co.Checkout(context.Background(), uint(i+1), cartFor(p, 2))
		}(i)
	}
	wg.Wait()

	var stockErr *checkout.StockError
	switch {
	case errs[0] == nil:
		require.ErrorAs(t, errs[1], &stockErr)
	case errs[1] == nil:
		require.ErrorAs(t, errs[0], &stockErr)
	default:
		t.Fatalf("both checkouts failed: %v / %v", errs[0], errs[1])
	}

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.Equal(t, uint(0), got.Stock)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

// The stored items JSON reproduces the exact cart snapshot independent of
// later product edits.
func TestTransactionItemsSnapshotRoundTrip(t *testing.T) {
	db := newTestDB(t)
	co := &checkout.Coordinator{DB: db}

	p := seedProduct(t, db, "Wireless Headphones", 149.99, 22)
	cart := cartFor(p, 3)

	receipt, err := co.Checkout(context.Background(), 1, cart)
	require.NoError(t, err)

	// mutate the product after commit
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).
		Updates(map[string]any{"name": "Renamed", "price": 999.0}).Error)

	var tx models.Transaction
	require.NoError(t, db.First(&tx, receipt.TransactionID).Error)

	var items []session.CartLine
	require.NoError(t, json.Unmarshal([]byte(tx.Items), &items))
	require.Len(t, items, 1)
	require.Equal(t, p.ID, items[0].ProductID)
	require.Equal(t, "Wireless Headphones", items[0].Name)
	require.Equal(t, uint(3), items[0].Quantity)
	require.InDelta(t, 149.99, items[0].Price, 0.001)
}
