package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AdminChecker reports whether a user currently holds the administrator
// capability. The sale machine consumes this as an opaque boolean; identity
// management lives elsewhere.
type AdminChecker interface {
	IsAdministrator(ctx context.Context, userID int) (bool, error)
}

// SaleService manages the sale lifecycle. Entering "completed" is the event
// that spends purchase lots: the FIFO allocator advances consumed counters
// and physical stock drops by the quantity sold, atomically.
type SaleService interface {
	// CreateSale records a sale directly in "completed" status: lines are
	// FIFO-allocated against the oldest available lots and stock is
	// decremented, all-or-nothing.
	CreateSale(ctx context.Context, sellerID int, lines []SaleLineInput) (*Sale, error)
	// AddSaleLines appends a line group to an existing sale. Allocation and
	// stock movement happen only if the sale is currently completed.
	AddSaleLines(ctx context.Context, saleID, actorID int, lines []SaleLineInput) (*Sale, error)
	// EditSaleLines replaces the lines of one group using per-product
	// quantity diffs: increases allocate and decrement stock, decreases and
	// removals return stock. Only pending or completed sales may be edited.
	EditSaleLines(ctx context.Context, lineGroupID, actorID int, lines []SaleLineInput) (*Sale, error)
	// SetSaleStatus transitions the sale. Leaving "completed" returns
	// physical stock; consumed counters on the lots are left in place — the
	// profit ledger replays raw history and is not fooled by flips.
	SetSaleStatus(ctx context.Context, saleID, actorID int, status OrderStatus) (*Sale, error)

	GetSale(ctx context.Context, saleID int) (*Sale, error)
	GetSales(ctx context.Context) ([]Sale, error)
}

type saleService struct {
	pool  *pgxpool.Pool
	roles AdminChecker
	loc   *time.Location
	now   func() time.Time
}

// NewSaleService builds a SaleService. loc is the business-local timezone
// used for the same-calendar-day edit rule.
func NewSaleService(pool *pgxpool.Pool, roles AdminChecker, loc *time.Location) SaleService {
	return &saleService{pool: pool, roles: roles, loc: loc, now: time.Now}
}

func (s *saleService) CreateSale(ctx context.Context, sellerID int, lines []SaleLineInput) (*Sale, error) {
	if sellerID <= 0 {
		return nil, ValidationErrorf("seller id is required")
	}
	if err := validateSaleLines(lines); err != nil {
		return nil, err
	}

	var saleID int
	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO sales (sold_at, seller_id, status, total)
			VALUES (NOW(), $1, 'completed', 0)
			RETURNING id
		`, sellerID).Scan(&saleID); err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}
		if err := insertSaleLineGroupTx(ctx, tx, saleID, true, lines); err != nil {
			return err
		}
		return recomputeSaleTotalTx(ctx, tx, saleID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetSale(ctx, saleID)
}

func (s *saleService) AddSaleLines(ctx context.Context, saleID, actorID int, lines []SaleLineInput) (*Sale, error) {
	if err := validateSaleLines(lines); err != nil {
		return nil, err
	}

	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		var status OrderStatus
		var soldAt time.Time
		err := tx.QueryRow(ctx,
			"SELECT status, sold_at FROM sales WHERE id = $1 FOR UPDATE", saleID,
		).Scan(&status, &soldAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundErrorf("sale %d does not exist", saleID)
			}
			return fmt.Errorf("failed to load sale %d: %w", saleID, err)
		}
		if err := s.authorizeSaleChange(ctx, actorID, status, soldAt); err != nil {
			return err
		}
		if status == StatusCancelled {
			return ValidationErrorf("cannot add lines to a cancelled sale")
		}

		if err := insertSaleLineGroupTx(ctx, tx, saleID, status == StatusCompleted, lines); err != nil {
			return err
		}
		return recomputeSaleTotalTx(ctx, tx, saleID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetSale(ctx, saleID)
}

func (s *saleService) EditSaleLines(ctx context.Context, lineGroupID, actorID int, lines []SaleLineInput) (*Sale, error) {
	if err := validateSaleLines(lines); err != nil {
		return nil, err
	}

	var saleID int
	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		var active bool
		var status OrderStatus
		var soldAt time.Time
		err := tx.QueryRow(ctx, `
			SELECT g.sale_id, g.is_active, sa.status, sa.sold_at
			FROM sale_line_groups g
			JOIN sales sa ON sa.id = g.sale_id
			WHERE g.id = $1
			FOR UPDATE OF g, sa
		`, lineGroupID).Scan(&saleID, &active, &status, &soldAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundErrorf("sale line group %d does not exist", lineGroupID)
			}
			return fmt.Errorf("failed to load sale line group %d: %w", lineGroupID, err)
		}
		if status != StatusPending && status != StatusCompleted {
			return ValidationErrorf("only pending or completed sales can be edited")
		}
		if err := s.authorizeSaleChange(ctx, actorID, status, soldAt); err != nil {
			return err
		}

		prev, err := fetchSaleLinesQ(ctx, tx, lineGroupID)
		if err != nil {
			return err
		}
		prevQty := make(map[int]int64)
		for _, ln := range prev {
			prevQty[ln.ProductID] += ln.Quantity
		}

		if active {
			for _, ln := range lines {
				diff := ln.Quantity - prevQty[ln.ProductID]
				switch {
				case diff > 0:
					// Extra demand spends lots like a fresh sale.
					if _, _, err := allocateTx(ctx, tx, ln.ProductID, diff); err != nil {
						return err
					}
					if err := adjustStockTx(ctx, tx, ln.ProductID, -diff, true); err != nil {
						return err
					}
				case diff < 0:
					if err := adjustStockTx(ctx, tx, ln.ProductID, -diff, true); err != nil {
						return err
					}
				}
			}
			for productID, qty := range prevQty {
				removed := true
				for _, ln := range lines {
					if ln.ProductID == productID {
						removed = false
						break
					}
				}
				if removed {
					if err := adjustStockTx(ctx, tx, productID, qty, false); err != nil {
						return err
					}
				}
			}
		}

		if _, err := tx.Exec(ctx, "DELETE FROM sale_lines WHERE line_group_id = $1", lineGroupID); err != nil {
			return fmt.Errorf("failed to clear lines of group %d: %w", lineGroupID, err)
		}
		for i, ln := range lines {
			subtotal := ln.UnitPrice.Mul(decimal.NewFromInt(ln.Quantity))
			if _, err := tx.Exec(ctx, `
				INSERT INTO sale_lines (line_group_id, line_number, product_id, quantity, unit_price, subtotal)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, lineGroupID, i, ln.ProductID, ln.Quantity, ln.UnitPrice, subtotal); err != nil {
				return fmt.Errorf("failed to insert sale line %d of group %d: %w", i, lineGroupID, err)
			}
		}
		return recomputeSaleTotalTx(ctx, tx, saleID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetSale(ctx, saleID)
}

func (s *saleService) SetSaleStatus(ctx context.Context, saleID, actorID int, status OrderStatus) (*Sale, error) {
	if !ValidStatus(status) {
		return nil, ValidationErrorf("status must be one of pending, completed, cancelled; got %q", status)
	}

	err := runSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		var current OrderStatus
		var soldAt time.Time
		err := tx.QueryRow(ctx,
			"SELECT status, sold_at FROM sales WHERE id = $1 FOR UPDATE", saleID,
		).Scan(&current, &soldAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundErrorf("sale %d does not exist", saleID)
			}
			return fmt.Errorf("failed to load sale %d: %w", saleID, err)
		}
		if err := s.authorizeSaleChange(ctx, actorID, current, soldAt); err != nil {
			return err
		}

		newActive := status == StatusCompleted
		groups, err := fetchSaleLineGroupsQ(ctx, tx, saleID)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if g.IsActive == newActive {
				continue
			}
			for _, ln := range g.Lines {
				delta := ln.Quantity
				if newActive {
					delta = -delta
				}
				if err := adjustStockTx(ctx, tx, ln.ProductID, delta, newActive); err != nil {
					return err
				}
			}
			if _, err := tx.Exec(ctx,
				"UPDATE sale_line_groups SET is_active = $1 WHERE id = $2",
				newActive, g.ID,
			); err != nil {
				return fmt.Errorf("failed to flip sale line group %d: %w", g.ID, err)
			}
		}

		if _, err := tx.Exec(ctx,
			"UPDATE sales SET status = $1 WHERE id = $2", status, saleID,
		); err != nil {
			return fmt.Errorf("failed to update sale %d status: %w", saleID, err)
		}
		return recomputeSaleTotalTx(ctx, tx, saleID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetSale(ctx, saleID)
}

func (s *saleService) GetSale(ctx context.Context, saleID int) (*Sale, error) {
	var sale Sale
	err := s.pool.QueryRow(ctx, `
		SELECT id, sold_at, seller_id, status, total
		FROM sales WHERE id = $1
	`, saleID).Scan(&sale.ID, &sale.SoldAt, &sale.SellerID, &sale.Status, &sale.Total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundErrorf("sale %d does not exist", saleID)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}

	groups, err := fetchSaleLineGroupsQ(ctx, s.pool, saleID)
	if err != nil {
		return nil, err
	}
	sale.LineGroups = groups
	return &sale, nil
}

func (s *saleService) GetSales(ctx context.Context) ([]Sale, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sold_at, seller_id, status, total
		FROM sales
		ORDER BY sold_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sale Sale
		if err := rows.Scan(&sale.ID, &sale.SoldAt, &sale.SellerID, &sale.Status, &sale.Total); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// authorizeSaleChange enforces the edit window: a non-administrator may only
// touch a sale recorded on the current business-local calendar day, and a
// cancelled sale only yields to an administrator.
func (s *saleService) authorizeSaleChange(ctx context.Context, actorID int, status OrderStatus, soldAt time.Time) error {
	admin, err := s.roles.IsAdministrator(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to resolve administrator capability for user %d: %w", actorID, err)
	}
	if admin {
		return nil
	}
	if status == StatusCancelled {
		return PermissionDeniedErrorf("only an administrator can modify a cancelled sale")
	}
	if !SamePeriod(soldAt, s.now(), GranularityDay, s.loc) {
		return PermissionDeniedErrorf("only an administrator can modify a sale from a different day")
	}
	return nil
}

// insertSaleLineGroupTx creates the group and its lines. If the group is
// active (parent sale completed) each line is FIFO-allocated and stock drops
// by the quantity sold.
func insertSaleLineGroupTx(ctx context.Context, tx pgx.Tx, saleID int, active bool, lines []SaleLineInput) error {
	var groupID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO sale_line_groups (sale_id, is_active, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id
	`, saleID, active).Scan(&groupID); err != nil {
		return fmt.Errorf("failed to insert sale line group for sale %d: %w", saleID, err)
	}

	for i, ln := range lines {
		if active {
			if _, _, err := allocateTx(ctx, tx, ln.ProductID, ln.Quantity); err != nil {
				return err
			}
			if err := adjustStockTx(ctx, tx, ln.ProductID, -ln.Quantity, true); err != nil {
				return err
			}
		}
		subtotal := ln.UnitPrice.Mul(decimal.NewFromInt(ln.Quantity))
		if _, err := tx.Exec(ctx, `
			INSERT INTO sale_lines (line_group_id, line_number, product_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, groupID, i, ln.ProductID, ln.Quantity, ln.UnitPrice, subtotal); err != nil {
			return fmt.Errorf("failed to insert sale line %d of group %d: %w", i, groupID, err)
		}
	}
	return nil
}

// recomputeSaleTotalTx derives the sale total from its active line groups,
// never by incrementing a stored running total, so edits cannot double count.
func recomputeSaleTotalTx(ctx context.Context, tx pgx.Tx, saleID int) error {
	if _, err := tx.Exec(ctx, `
		UPDATE sales SET total = (
			SELECT COALESCE(SUM(sl.subtotal), 0)
			FROM sale_lines sl
			JOIN sale_line_groups g ON g.id = sl.line_group_id
			WHERE g.sale_id = $1 AND g.is_active = true
		)
		WHERE id = $1
	`, saleID); err != nil {
		return fmt.Errorf("failed to recompute total of sale %d: %w", saleID, err)
	}
	return nil
}

func fetchSaleLineGroupsQ(ctx context.Context, q pgxRowQuerier, saleID int) ([]SaleLineGroup, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, is_active, created_at
		FROM sale_line_groups
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line groups of sale %d: %w", saleID, err)
	}
	defer rows.Close()

	var groups []SaleLineGroup
	for rows.Next() {
		var g SaleLineGroup
		if err := rows.Scan(&g.ID, &g.SaleID, &g.IsActive, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sale line group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sale line groups: %w", err)
	}

	for i := range groups {
		lines, err := fetchSaleLinesQ(ctx, q, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Lines = lines
	}
	return groups, nil
}

func fetchSaleLinesQ(ctx context.Context, q pgxRowQuerier, lineGroupID int) ([]SaleLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, line_group_id, line_number, product_id, quantity, unit_price, subtotal
		FROM sale_lines
		WHERE line_group_id = $1
		ORDER BY line_number
	`, lineGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines of group %d: %w", lineGroupID, err)
	}
	defer rows.Close()

	var lines []SaleLine
	for rows.Next() {
		var ln SaleLine
		if err := rows.Scan(&ln.ID, &ln.LineGroupID, &ln.LineNumber, &ln.ProductID,
			&ln.Quantity, &ln.UnitPrice, &ln.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}
