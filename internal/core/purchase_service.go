package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PurchaseService manages the purchase lifecycle: lot ingestion, line edits,
// and status transitions with their stock cascades. Every mutation runs in a
// single serializable transaction so stock, lots and totals change together.
type PurchaseService interface {
	// CreatePurchase records a received purchase. It is created directly in
	// "completed" status: its lots become eligible for FIFO allocation and
	// each line adds its quantity to physical stock.
	CreatePurchase(ctx context.Context, supplierID, createdBy int, notes string, lines []PurchaseLineInput) (*Purchase, error)
	// AddPurchaseLines appends a new lot group to an existing purchase. Stock
	// moves only if the purchase is currently completed.
	AddPurchaseLines(ctx context.Context, purchaseID int, lines []PurchaseLineInput) (*Purchase, error)
	// EditPurchaseLines replaces the lines of one lot group. Stock is adjusted
	// by the per-product difference against the previous lines, removed
	// products are reverted, and any quantity reduction is gated by the
	// reversal guard.
	EditPurchaseLines(ctx context.Context, lotGroupID int, lines []PurchaseLineInput) (*Purchase, error)
	// SetPurchaseStatus transitions the purchase between pending, completed
	// and cancelled. Leaving "completed" is gated by the reversal guard; lot
	// groups flip their active flag and stock follows.
	SetPurchaseStatus(ctx context.Context, purchaseID int, status OrderStatus) (*Purchase, error)

	GetPurchase(ctx context.Context, purchaseID int) (*Purchase, error)
	GetPurchases(ctx context.Context) ([]Purchase, error)
}

type purchaseService struct {
	pool *pgxpool.Pool
}

func NewPurchaseService(pool *pgxpool.Pool) PurchaseService {
	return &purchaseService{pool: pool}
}

func (s *purchaseService) CreatePurchase(ctx context.Context, supplierID, createdBy int, notes string, lines []PurchaseLineInput) (*Purchase, error) {
	if supplierID <= 0 {
		return nil, ValidationErrorf("supplier id is required")
	}
	if err := validatePurchaseLines(lines); err != nil {
		return nil, err
	}

	var purchaseID int
	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)", supplierID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to verify supplier: %w", err)
		}
		if !exists {
			return NotFoundErrorf("supplier %d does not exist", supplierID)
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO purchases (supplier_id, ingested_at, status, total, created_by, notes)
			VALUES ($1, NOW(), 'completed', 0, $2, $3)
			RETURNING id
		`, supplierID, createdBy, notes).Scan(&purchaseID); err != nil {
			return fmt.Errorf("failed to insert purchase: %w", err)
		}

		if err := insertLotGroupTx(ctx, tx, purchaseID, true, lines); err != nil {
			return err
		}
		for _, ln := range lines {
			if err := adjustStockTx(ctx, tx, ln.ProductID, ln.Quantity, false); err != nil {
				return err
			}
		}
		return recomputePurchaseTotalTx(ctx, tx, purchaseID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPurchase(ctx, purchaseID)
}

func (s *purchaseService) AddPurchaseLines(ctx context.Context, purchaseID int, lines []PurchaseLineInput) (*Purchase, error) {
	if err := validatePurchaseLines(lines); err != nil {
		return nil, err
	}

	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		var status OrderStatus
		err := tx.QueryRow(ctx,
			"SELECT status FROM purchases WHERE id = $1 FOR UPDATE", purchaseID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundErrorf("purchase %d does not exist", purchaseID)
			}
			return fmt.Errorf("failed to load purchase %d: %w", purchaseID, err)
		}

		active := status == StatusCompleted
		if err := insertLotGroupTx(ctx, tx, purchaseID, active, lines); err != nil {
			return err
		}
		if active {
			for _, ln := range lines {
				if err := adjustStockTx(ctx, tx, ln.ProductID, ln.Quantity, false); err != nil {
					return err
				}
			}
		}
		return recomputePurchaseTotalTx(ctx, tx, purchaseID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPurchase(ctx, purchaseID)
}

func (s *purchaseService) EditPurchaseLines(ctx context.Context, lotGroupID int, lines []PurchaseLineInput) (*Purchase, error) {
	if err := validatePurchaseLines(lines); err != nil {
		return nil, err
	}

	var purchaseID int
	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		var active bool
		var status OrderStatus
		err := tx.QueryRow(ctx, `
			SELECT g.purchase_id, g.is_active, p.status
			FROM purchase_lot_groups g
			JOIN purchases p ON p.id = g.purchase_id
			WHERE g.id = $1
			FOR UPDATE OF g, p
		`, lotGroupID).Scan(&purchaseID, &active, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundErrorf("purchase lot group %d does not exist", lotGroupID)
			}
			return fmt.Errorf("failed to load lot group %d: %w", lotGroupID, err)
		}

		prev, err := fetchLotsQ(ctx, tx, lotGroupID)
		if err != nil {
			return err
		}

		prevQty := make(map[int]int64)
		prevConsumed := make(map[int]int64)
		for _, lot := range prev {
			prevQty[lot.ProductID] += lot.Quantity
			prevConsumed[lot.ProductID] += lot.Consumed
		}
		newQty := make(map[int]int64)
		for _, ln := range lines {
			newQty[ln.ProductID] += ln.Quantity
		}

		// Quantity reductions and removals rewrite cost-accounting history,
		// so they pass through the reversal guard first.
		if status == StatusCompleted && shrinksAnyProduct(prevQty, newQty) {
			if err := guardPurchaseReleaseTx(ctx, tx, purchaseID); err != nil {
				return err
			}
		}

		if active {
			for productID, qty := range newQty {
				delta := qty - prevQty[productID]
				if delta != 0 {
					if err := adjustStockTx(ctx, tx, productID, delta, false); err != nil {
						return err
					}
				}
			}
			for productID, qty := range prevQty {
				if _, kept := newQty[productID]; !kept {
					if err := adjustStockTx(ctx, tx, productID, -qty, false); err != nil {
						return err
					}
				}
			}
		}

		if _, err := tx.Exec(ctx, "DELETE FROM purchase_lots WHERE lot_group_id = $1", lotGroupID); err != nil {
			return fmt.Errorf("failed to clear lots of group %d: %w", lotGroupID, err)
		}
		// Consumed units survive the edit: each product's prior attribution is
		// redistributed over its new lines in order.
		for i, ln := range lines {
			carry := prevConsumed[ln.ProductID]
			if carry > ln.Quantity {
				carry = ln.Quantity
			}
			prevConsumed[ln.ProductID] -= carry
			subtotal := ln.UnitCost.Mul(decimal.NewFromInt(ln.Quantity))
			if _, err := tx.Exec(ctx, `
				INSERT INTO purchase_lots (lot_group_id, line_number, product_id, quantity, unit_cost, unit_price, subtotal, consumed)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, lotGroupID, i, ln.ProductID, ln.Quantity, ln.UnitCost, ln.UnitPrice, subtotal, carry); err != nil {
				return fmt.Errorf("failed to insert lot %d of group %d: %w", i, lotGroupID, err)
			}
		}
		return recomputePurchaseTotalTx(ctx, tx, purchaseID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPurchase(ctx, purchaseID)
}

func (s *purchaseService) SetPurchaseStatus(ctx context.Context, purchaseID int, status OrderStatus) (*Purchase, error) {
	if !ValidStatus(status) {
		return nil, ValidationErrorf("status must be one of pending, completed, cancelled; got %q", status)
	}

	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		var current OrderStatus
		err := tx.QueryRow(ctx,
			"SELECT status FROM purchases WHERE id = $1 FOR UPDATE", purchaseID,
		).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundErrorf("purchase %d does not exist", purchaseID)
			}
			return fmt.Errorf("failed to load purchase %d: %w", purchaseID, err)
		}

		if current == StatusCompleted && status != StatusCompleted {
			if err := guardPurchaseReleaseTx(ctx, tx, purchaseID); err != nil {
				return err
			}
		}

		newActive := status == StatusCompleted
		groups, err := fetchLotGroupsQ(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if g.IsActive == newActive {
				continue
			}
			for _, lot := range g.Lots {
				delta := lot.Quantity
				if !newActive {
					delta = -delta
				}
				if err := adjustStockTx(ctx, tx, lot.ProductID, delta, false); err != nil {
					return err
				}
			}
			if _, err := tx.Exec(ctx,
				"UPDATE purchase_lot_groups SET is_active = $1 WHERE id = $2",
				newActive, g.ID,
			); err != nil {
				return fmt.Errorf("failed to flip lot group %d: %w", g.ID, err)
			}
		}

		if _, err := tx.Exec(ctx,
			"UPDATE purchases SET status = $1 WHERE id = $2", status, purchaseID,
		); err != nil {
			return fmt.Errorf("failed to update purchase %d status: %w", purchaseID, err)
		}
		return recomputePurchaseTotalTx(ctx, tx, purchaseID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPurchase(ctx, purchaseID)
}

func (s *purchaseService) GetPurchase(ctx context.Context, purchaseID int) (*Purchase, error) {
	var p Purchase
	err := s.pool.QueryRow(ctx, `
		SELECT id, supplier_id, ingested_at, status, total, created_by, COALESCE(notes, '')
		FROM purchases WHERE id = $1
	`, purchaseID).Scan(&p.ID, &p.SupplierID, &p.IngestedAt, &p.Status, &p.Total, &p.CreatedBy, &p.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundErrorf("purchase %d does not exist", purchaseID)
		}
		return nil, fmt.Errorf("failed to fetch purchase %d: %w", purchaseID, err)
	}

	groups, err := fetchLotGroupsQ(ctx, s.pool, purchaseID)
	if err != nil {
		return nil, err
	}
	p.LotGroups = groups
	return &p, nil
}

func (s *purchaseService) GetPurchases(ctx context.Context) ([]Purchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, supplier_id, ingested_at, status, total, created_by, COALESCE(notes, '')
		FROM purchases
		ORDER BY ingested_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.IngestedAt, &p.Status, &p.Total, &p.CreatedBy, &p.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// ── Shared helpers ───────────────────────────────────────────────────────────

func insertLotGroupTx(ctx context.Context, tx pgx.Tx, purchaseID int, active bool, lines []PurchaseLineInput) error {
	var groupID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_lot_groups (purchase_id, is_active, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id
	`, purchaseID, active).Scan(&groupID); err != nil {
		return fmt.Errorf("failed to insert lot group for purchase %d: %w", purchaseID, err)
	}
	for i, ln := range lines {
		subtotal := ln.UnitCost.Mul(decimal.NewFromInt(ln.Quantity))
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_lots (lot_group_id, line_number, product_id, quantity, unit_cost, unit_price, subtotal, consumed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		`, groupID, i, ln.ProductID, ln.Quantity, ln.UnitCost, ln.UnitPrice, subtotal); err != nil {
			return fmt.Errorf("failed to insert lot %d of group %d: %w", i, groupID, err)
		}
	}
	return nil
}

// recomputePurchaseTotalTx derives the purchase total from its active lot
// subtotals, never from stored running totals.
func recomputePurchaseTotalTx(ctx context.Context, tx pgx.Tx, purchaseID int) error {
	if _, err := tx.Exec(ctx, `
		UPDATE purchases SET total = (
			SELECT COALESCE(SUM(pl.subtotal), 0)
			FROM purchase_lots pl
			JOIN purchase_lot_groups g ON g.id = pl.lot_group_id
			WHERE g.purchase_id = $1 AND g.is_active = true
		)
		WHERE id = $1
	`, purchaseID); err != nil {
		return fmt.Errorf("failed to recompute total of purchase %d: %w", purchaseID, err)
	}
	return nil
}

func shrinksAnyProduct(prev, next map[int]int64) bool {
	for productID, qty := range prev {
		if next[productID] < qty {
			return true
		}
	}
	return false
}

func fetchLotGroupsQ(ctx context.Context, q pgxRowQuerier, purchaseID int) ([]PurchaseLotGroup, error) {
	rows, err := q.Query(ctx, `
		SELECT id, purchase_id, is_active, created_at
		FROM purchase_lot_groups
		WHERE purchase_id = $1
		ORDER BY id
	`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lot groups of purchase %d: %w", purchaseID, err)
	}
	defer rows.Close()

	var groups []PurchaseLotGroup
	for rows.Next() {
		var g PurchaseLotGroup
		if err := rows.Scan(&g.ID, &g.PurchaseID, &g.IsActive, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lot group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lot groups: %w", err)
	}

	for i := range groups {
		lots, err := fetchLotsQ(ctx, q, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Lots = lots
	}
	return groups, nil
}

func fetchLotsQ(ctx context.Context, q pgxRowQuerier, lotGroupID int) ([]PurchaseLot, error) {
	rows, err := q.Query(ctx, `
		SELECT id, lot_group_id, line_number, product_id, quantity, unit_cost, unit_price, subtotal, consumed
		FROM purchase_lots
		WHERE lot_group_id = $1
		ORDER BY line_number
	`, lotGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots of group %d: %w", lotGroupID, err)
	}
	defer rows.Close()

	var lots []PurchaseLot
	for rows.Next() {
		var l PurchaseLot
		if err := rows.Scan(&l.ID, &l.LotGroupID, &l.LineNumber, &l.ProductID, &l.Quantity,
			&l.UnitCost, &l.UnitPrice, &l.Subtotal, &l.Consumed); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}
