package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// adjustStockTx is the single funnel through which product stock changes.
// Every purchase/sale create, edit and status cascade calls it inside the
// enclosing transaction, so stock and lot bookkeeping always move together.
// requireActive rejects disabled products (sales only; purchases may restock
// a disabled product).
func adjustStockTx(ctx context.Context, tx pgx.Tx, productID int, delta int64, requireActive bool) error {
	var stock int64
	var isActive bool
	err := tx.QueryRow(ctx,
		"SELECT stock, is_active FROM products WHERE id = $1 FOR UPDATE",
		productID,
	).Scan(&stock, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundErrorf("product %d does not exist", productID)
		}
		return fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	if requireActive && !isActive {
		return ValidationErrorf("product %d is inactive and cannot be sold", productID)
	}

	newStock := stock + delta
	if newStock < 0 {
		return &InsufficientStockError{ProductID: productID, Requested: -delta, Available: stock}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE products SET stock = $1 WHERE id = $2",
		newStock, productID,
	); err != nil {
		return fmt.Errorf("failed to adjust stock for product %d: %w", productID, err)
	}
	return nil
}
