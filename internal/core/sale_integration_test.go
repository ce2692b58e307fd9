package core_test

import (
	"context"
	"errors"
	"testing"

	"retail-backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// setupSaleTestDB extends the base test DB with received stock: 10 units of
// product 1 at cost 5 (two days old) and 5 more at cost 6 (one day old).
func setupSaleTestDB(t *testing.T) (*pgxpool.Pool, core.SaleService, core.PurchaseService, context.Context) {
	t.Helper()
	pool := setupTestDB(t)
	ctx := context.Background()

	purchases := core.NewPurchaseService(pool)
	users := core.NewUserService(pool)
	sales := core.NewSaleService(pool, users, laPaz(t))

	a, err := purchases.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("Failed to seed purchase A: %v", err)
	}
	backdatePurchase(t, pool, a.ID, 2)

	b, err := purchases.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 5, UnitCost: decimal.NewFromInt(6), UnitPrice: decimal.NewFromInt(9)},
	})
	if err != nil {
		t.Fatalf("Failed to seed purchase B: %v", err)
	}
	backdatePurchase(t, pool, b.ID, 1)

	return pool, sales, purchases, ctx
}

// backdateSale shifts sold_at into the past to test the same-day edit window.
func backdateSale(t *testing.T, pool *pgxpool.Pool, saleID, days int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		"UPDATE sales SET sold_at = NOW() - make_interval(days => $2) WHERE id = $1",
		saleID, days)
	if err != nil {
		t.Fatalf("Failed to backdate sale %d: %v", saleID, err)
	}
}

func TestSaleService_CreateAllocatesOldestLots(t *testing.T) {
	pool, sales, _, ctx := setupSaleTestDB(t)
	defer pool.Close()

	sale, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 12, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	if sale.Status != core.StatusCompleted {
		t.Errorf("Expected completed, got %s", sale.Status)
	}
	if !sale.Total.Equal(decimal.NewFromInt(96)) {
		t.Errorf("Expected total 96 (12×8), got %s", sale.Total)
	}
	if got := getStock(t, pool, 1); got != 3 {
		t.Errorf("Expected stock 3 after selling 12 of 15, got %d", got)
	}

	// Oldest purchase is drained first; the newer one covers the remainder.
	var consumedOld, consumedNew int64
	err = pool.QueryRow(ctx, `
		SELECT
			SUM(pl.consumed) FILTER (WHERE pl.unit_cost = 5),
			SUM(pl.consumed) FILTER (WHERE pl.unit_cost = 6)
		FROM purchase_lots pl
	`).Scan(&consumedOld, &consumedNew)
	if err != nil {
		t.Fatalf("Failed to read consumed counters: %v", err)
	}
	if consumedOld != 10 || consumedNew != 2 {
		t.Errorf("Expected consumption 10/2 oldest-first, got %d/%d", consumedOld, consumedNew)
	}
}

func TestSaleService_OversellIsAllOrNothing(t *testing.T) {
	pool, sales, _, ctx := setupSaleTestDB(t)
	defer pool.Close()

	// 15 units exist across both lots; asking for 20 must leave no trace.
	_, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 20, UnitPrice: decimal.NewFromInt(8)},
	})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got %v", err)
	}
	var detail *core.InsufficientStockError
	if !errors.As(err, &detail) {
		t.Fatalf("Expected InsufficientStockError detail, got %v", err)
	}
	if detail.ProductID != 1 || detail.Requested != 20 || detail.Available != 15 {
		t.Errorf("Expected product 1 requested 20 available 15, got %+v", detail)
	}

	if got := getStock(t, pool, 1); got != 15 {
		t.Errorf("Stock must be untouched after rejected sale, got %d", got)
	}
	var consumed int64
	if err := pool.QueryRow(ctx, "SELECT COALESCE(SUM(consumed), 0) FROM purchase_lots").Scan(&consumed); err != nil {
		t.Fatalf("Failed to read consumed counters: %v", err)
	}
	if consumed != 0 {
		t.Errorf("No lot may stay consumed after a rejected sale, got %d", consumed)
	}
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales").Scan(&count); err != nil {
		t.Fatalf("Failed to count sales: %v", err)
	}
	if count != 0 {
		t.Errorf("Rejected sale must not be persisted, found %d sales", count)
	}
}

func TestSaleService_RejectsInactiveProduct(t *testing.T) {
	pool, sales, _, ctx := setupSaleTestDB(t)
	defer pool.Close()

	// Product 3 is seeded inactive; selling it is a validation error even
	// before stock is considered.
	_, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 3, Quantity: 1, UnitPrice: decimal.NewFromInt(4)},
	})
	if !errors.Is(err, core.ErrValidation) && !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("Expected rejection for inactive product, got %v", err)
	}
}

func TestSaleService_CancelReturnsStockKeepsConsumed(t *testing.T) {
	pool, sales, _, ctx := setupSaleTestDB(t)
	defer pool.Close()

	sale, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 4, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	sale, err = sales.SetSaleStatus(ctx, sale.ID, 1, core.StatusCancelled)
	if err != nil {
		t.Fatalf("SetSaleStatus(cancelled) failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 15 {
		t.Errorf("Cancelling must return stock, got %d", got)
	}
	if !sale.Total.IsZero() {
		t.Errorf("Cancelled sale total must be 0, got %s", sale.Total)
	}

	// The consumed counters are history, not state: the flip leaves them.
	var consumed int64
	if err := pool.QueryRow(ctx, "SELECT COALESCE(SUM(consumed), 0) FROM purchase_lots").Scan(&consumed); err != nil {
		t.Fatalf("Failed to read consumed counters: %v", err)
	}
	if consumed != 4 {
		t.Errorf("Consumed counters must survive cancellation, got %d", consumed)
	}

	// Re-completing moves stock back out without a second allocation.
	sale, err = sales.SetSaleStatus(ctx, sale.ID, 1, core.StatusCompleted)
	if err != nil {
		t.Fatalf("SetSaleStatus(completed) failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 11 {
		t.Errorf("Expected stock 11 after re-completing, got %d", got)
	}
	if err := pool.QueryRow(ctx, "SELECT COALESCE(SUM(consumed), 0) FROM purchase_lots").Scan(&consumed); err != nil {
		t.Fatalf("Failed to read consumed counters: %v", err)
	}
	if consumed != 4 {
		t.Errorf("Re-completing must not allocate again, got consumed %d", consumed)
	}
	if !sale.Total.Equal(decimal.NewFromInt(32)) {
		t.Errorf("Expected total 32 back, got %s", sale.Total)
	}
}

func TestSaleService_EditDiffsAllocateAndRelease(t *testing.T) {
	pool, sales, _, ctx := setupSaleTestDB(t)
	defer pool.Close()

	sale, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 4, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	groupID := sale.LineGroups[0].ID

	// Growing 4 → 6 allocates only the 2-unit difference.
	sale, err = sales.EditSaleLines(ctx, groupID, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 6, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("EditSaleLines(grow) failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 9 {
		t.Errorf("Expected stock 9 after growing to 6, got %d", got)
	}
	var consumed int64
	if err := pool.QueryRow(ctx, "SELECT COALESCE(SUM(consumed), 0) FROM purchase_lots").Scan(&consumed); err != nil {
		t.Fatalf("Failed to read consumed counters: %v", err)
	}
	if consumed != 6 {
		t.Errorf("Expected consumed 6 after the delta allocation, got %d", consumed)
	}
	if !sale.Total.Equal(decimal.NewFromInt(48)) {
		t.Errorf("Expected total 48, got %s", sale.Total)
	}

	// Shrinking 6 → 2 returns stock but never rewinds the counters.
	sale, err = sales.EditSaleLines(ctx, groupID, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("EditSaleLines(shrink) failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 13 {
		t.Errorf("Expected stock 13 after shrinking to 2, got %d", got)
	}
	if err := pool.QueryRow(ctx, "SELECT COALESCE(SUM(consumed), 0) FROM purchase_lots").Scan(&consumed); err != nil {
		t.Fatalf("Failed to read consumed counters: %v", err)
	}
	if consumed != 6 {
		t.Errorf("Consumed counters are monotonic, got %d", consumed)
	}
	if !sale.Total.Equal(decimal.NewFromInt(16)) {
		t.Errorf("Expected total 16, got %s", sale.Total)
	}
}

func TestSaleService_EditRemovingProductsReturnsStock(t *testing.T) {
	pool, sales, purchases, ctx := setupSaleTestDB(t)
	defer pool.Close()

	if _, err := purchases.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 2, Quantity: 8, UnitCost: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(3)},
	}); err != nil {
		t.Fatalf("Failed to seed product 2 stock: %v", err)
	}

	sale, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 5, UnitPrice: decimal.NewFromInt(8)},
		{ProductID: 2, Quantity: 3, UnitPrice: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	// Dropping product 2 from the group gives its units back.
	_, err = sales.EditSaleLines(ctx, sale.LineGroups[0].ID, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 5, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("EditSaleLines failed: %v", err)
	}
	if got := getStock(t, pool, 2); got != 8 {
		t.Errorf("Expected product 2 restored to 8, got %d", got)
	}
	if got := getStock(t, pool, 1); got != 10 {
		t.Errorf("Product 1 must be unaffected, got %d", got)
	}
}

func TestSaleService_SameDayWindowForNonAdministrators(t *testing.T) {
	pool, sales, _, ctx := setupSaleTestDB(t)
	defer pool.Close()

	sale, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 4, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	groupID := sale.LineGroups[0].ID

	// Same day: the seller may still edit their own sale.
	if _, err := sales.EditSaleLines(ctx, groupID, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 3, UnitPrice: decimal.NewFromInt(8)},
	}); err != nil {
		t.Fatalf("Same-day edit by seller failed: %v", err)
	}

	backdateSale(t, pool, sale.ID, 2)

	// Two days later the window is closed for non-administrators.
	_, err = sales.EditSaleLines(ctx, groupID, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(8)},
	})
	if !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("Expected permission denied for stale sale, got %v", err)
	}
	_, err = sales.SetSaleStatus(ctx, sale.ID, 2, core.StatusCancelled)
	if !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("Expected permission denied for stale cancellation, got %v", err)
	}

	// An administrator is not bound by the window.
	if _, err := sales.EditSaleLines(ctx, groupID, 1, []core.SaleLineInput{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(8)},
	}); err != nil {
		t.Fatalf("Admin edit of a stale sale failed: %v", err)
	}
}

func TestSaleService_CancelledSaleIsAdminOnly(t *testing.T) {
	pool, sales, _, ctx := setupSaleTestDB(t)
	defer pool.Close()

	sale, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 4, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	if _, err := sales.SetSaleStatus(ctx, sale.ID, 2, core.StatusCancelled); err != nil {
		t.Fatalf("Same-day cancellation by seller failed: %v", err)
	}

	// Even on the same day, a cancelled sale only yields to an administrator.
	_, err = sales.SetSaleStatus(ctx, sale.ID, 2, core.StatusCompleted)
	if !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("Expected permission denied for seller on cancelled sale, got %v", err)
	}
	if _, err := sales.SetSaleStatus(ctx, sale.ID, 1, core.StatusCompleted); err != nil {
		t.Fatalf("Admin reactivation failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 11 {
		t.Errorf("Expected stock 11 after reactivation, got %d", got)
	}
}

func TestSaleService_AddLinesRejectedOnCancelledSale(t *testing.T) {
	pool, sales, _, ctx := setupSaleTestDB(t)
	defer pool.Close()

	sale, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	if _, err := sales.SetSaleStatus(ctx, sale.ID, 1, core.StatusCancelled); err != nil {
		t.Fatalf("SetSaleStatus(cancelled) failed: %v", err)
	}

	_, err = sales.AddSaleLines(ctx, sale.ID, 1, []core.SaleLineInput{
		{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(8)},
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Expected validation error adding lines to cancelled sale, got %v", err)
	}
}
