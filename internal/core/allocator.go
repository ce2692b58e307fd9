package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// loadOpenLotsTx fetches every lot of the product that belongs to a completed
// purchase and still has unallocated units, in FIFO order.
func loadOpenLotsTx(ctx context.Context, q pgxRowQuerier, productID int) ([]Lot, error) {
	rows, err := q.Query(ctx, `
		SELECT pl.id, p.id, g.id, pl.line_number, p.ingested_at, pl.product_id,
		       pl.quantity, pl.consumed, pl.unit_cost
		FROM purchase_lots pl
		JOIN purchase_lot_groups g ON g.id = pl.lot_group_id
		JOIN purchases p ON p.id = g.purchase_id
		WHERE pl.product_id = $1
		  AND p.status = 'completed'
		  AND g.is_active = true
		  AND pl.consumed < pl.quantity
		ORDER BY p.ingested_at, g.id, pl.line_number
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open lots for product %d: %w", productID, err)
	}
	defer rows.Close()

	return scanLots(rows)
}

// loadCompletedLotsTx fetches every lot of the product from completed
// purchases regardless of consumption, in FIFO order. The reversal guard and
// the profit aggregator replay history over these raw quantities.
func loadCompletedLotsTx(ctx context.Context, q pgxRowQuerier, productID int) ([]Lot, error) {
	rows, err := q.Query(ctx, `
		SELECT pl.id, p.id, g.id, pl.line_number, p.ingested_at, pl.product_id,
		       pl.quantity, pl.consumed, pl.unit_cost
		FROM purchase_lots pl
		JOIN purchase_lot_groups g ON g.id = pl.lot_group_id
		JOIN purchases p ON p.id = g.purchase_id
		WHERE pl.product_id = $1
		  AND p.status = 'completed'
		  AND g.is_active = true
		ORDER BY p.ingested_at, g.id, pl.line_number
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed lots for product %d: %w", productID, err)
	}
	defer rows.Close()

	return scanLots(rows)
}

func scanLots(rows pgx.Rows) ([]Lot, error) {
	var lots []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.LotID, &l.PurchaseID, &l.LotGroupID, &l.LineNumber,
			&l.IngestedAt, &l.ProductID, &l.Quantity, &l.Consumed, &l.UnitCost); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}
	return lots, nil
}

// allocateTx performs a FIFO allocation for one product inside the caller's
// transaction: picks the lots, advances their consumed counters, and returns
// the allocations with their total cost basis. All-or-nothing; on
// InsufficientStockError no counter has moved.
func allocateTx(ctx context.Context, tx pgx.Tx, productID int, quantity int64) ([]Allocation, decimal.Decimal, error) {
	lots, err := loadOpenLotsTx(ctx, tx, productID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	allocs, err := AllocateFIFO(productID, quantity, lots)
	if err != nil {
		return nil, decimal.Zero, err
	}

	for _, a := range allocs {
		if _, err := tx.Exec(ctx,
			"UPDATE purchase_lots SET consumed = consumed + $1 WHERE id = $2",
			a.Quantity, a.Lot.LotID,
		); err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to advance consumed counter on lot %d: %w", a.Lot.LotID, err)
		}
	}
	return allocs, CostBasis(allocs), nil
}

// activeSaleDemandTx sums the quantity of the product across every active
// sale line. Order-independent total demand, as the replay requires.
func activeSaleDemandTx(ctx context.Context, q pgxQuerier, productID int) (int64, error) {
	var demand int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(sl.quantity), 0)
		FROM sale_lines sl
		JOIN sale_line_groups g ON g.id = sl.line_group_id
		WHERE sl.product_id = $1 AND g.is_active = true
	`, productID).Scan(&demand)
	if err != nil {
		return 0, fmt.Errorf("failed to sum sale demand for product %d: %w", productID, err)
	}
	return demand, nil
}
