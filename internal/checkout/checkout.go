// Package checkout converts a session's cart into a durable transaction
// without ever overselling stock. The store transaction is the only
// serialization boundary: concurrent checkouts over overlapping products
// cannot both pass the stock check for stock that covers only one of them.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/anasbld/pos_system/internal/logging"
	"github.com/anasbld/pos_system/internal/models"
	"github.com/anasbld/pos_system/internal/session"
)

// ErrEmptyCart rejects a checkout before any store work begins.
var ErrEmptyCart = errors.New("cart is empty")

// StockError reports the first cart line whose live stock no longer covers
// the requested quantity. The whole checkout rolls back when it is returned.
type StockError struct {
	ProductID uint
	Name      string
	Available uint
}

func (e *StockError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("product %d not available", e.ProductID)
	}
	return fmt.Sprintf("%s not available, only %d in stock", e.Name, e.Available)
}

type Receipt struct {
	TransactionID uint    `json:"transaction_id"`
	Total         float64 `json:"total"`
}

type Coordinator struct {
	DB *gorm.DB
}

// Checkout commits the cart as one atomic unit: re-read live stock, verify
// every line, insert the transaction record, then decrement stock with a
// guarded update. Any failure rolls the whole attempt back and the caller's
// cart is left untouched.
func (co *Coordinator) Checkout(ctx context.Context, userID uint, cart []session.CartLine) (Receipt, error) {
	l := logging.FromContext(ctx).With("component", "checkout")

	if len(cart) == 0 {
		return Receipt{}, ErrEmptyCart
	}

	var total float64
	ids := make([]uint, 0, len(cart))
	for _, line := range cart {
		total += line.Price * float64(line.Quantity)
		ids = append(ids, line.ProductID)
	}

	itemsJSON, err := json.Marshal(cart)
	if err != nil {
		return Receipt{}, fmt.Errorf("checkout: cannot freeze cart: %w", err)
	}

	var record models.Transaction

	txErr := co.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var products []models.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return fmt.Errorf("checkout: stock read failed: %w", err)
		}

		live := make(map[uint]models.Product, len(products))
		for _, p := range products {
			live[p.ID] = p
		}

		for _, line := range cart {
			p, ok := live[line.ProductID]
			if !ok {
				return &StockError{ProductID: line.ProductID, Name: line.Name}
			}
			if line.Quantity > p.Stock {
				return &StockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
			}
		}

		// The record goes in before any stock moves so neither can exist
		// without the other inside this atomic scope.
		record = models.Transaction{
			UserID: userID,
			Total:  total,
			Items:  string(itemsJSON),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("checkout: cannot create transaction: %w", err)
		}

		for _, line := range cart {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
			if res.Error != nil {
				return fmt.Errorf("checkout: stock decrement failed: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				// stock moved under us between the read and the decrement
				return &StockError{ProductID: line.ProductID, Name: line.Name}
			}
		}
		return nil
	})

	if txErr != nil {
		var stockErr *StockError
		if errors.As(txErr, &stockErr) {
			l.Warn("checkout_rejected", "user_id", userID, "product_id", stockErr.ProductID)
		} else if !errors.Is(txErr, ErrEmptyCart) {
			l.Error("checkout_failed", "user_id", userID, "error", txErr)
		}
		return Receipt{}, txErr
	}

	l.Info("checkout_success", "user_id", userID, "transaction_id", record.ID, "total", total)
	return Receipt{TransactionID: record.ID, Total: total}, nil
}
