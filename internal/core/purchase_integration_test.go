package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"retail-backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE sale_lines, sale_line_groups, sales,
			purchase_lots, purchase_lot_groups, purchases,
			user_roles, users, roles,
			products, product_code_counters, brands, categories, suppliers
			RESTART IDENTITY CASCADE;

		INSERT INTO categories (id, name, description, is_active) VALUES
		(1, 'Beverages', 'Bottled and canned drinks', true);

		INSERT INTO brands (id, name, is_active) VALUES
		(1, 'Andina', true);

		INSERT INTO products (id, code, name, description, image_url, category_id, brand_id, stock, is_active) VALUES
		(1, 'COL-AND-001', 'Cola 2L',    'Two liter cola bottle', '', 1, 1, 0, true),
		(2, 'WAT-AND-002', 'Water 600ml', 'Still water bottle',   '', 1, 1, 0, true),
		(3, 'JUI-AND-003', 'Juice 1L',   'Orange juice carton',   '', 1, 1, 0, false);

		INSERT INTO suppliers (id, name, contact_name, email, phone, address, is_active) VALUES
		(1, 'Distribuidora Sur', 'Marta Quispe', 'ventas@dsur.example', '+591-700-11111', 'Av. Litoral 42', true);

		INSERT INTO roles (id, name, description, is_active) VALUES
		(1, 'administrator', 'Full access', true),
		(2, 'seller',        'Point of sale access', true);

		INSERT INTO users (id, username, password_hash, full_name, email, is_active) VALUES
		(1, 'admin',  'not-a-real-hash', 'Admin One',  'admin@test.example',  true),
		(2, 'vendor', 'not-a-real-hash', 'Vendor Two', 'vendor@test.example', true);

		INSERT INTO user_roles (user_id, role_id, is_active) VALUES
		(1, 1, true),
		(2, 2, true);

		SELECT setval('products_id_seq', 100);
		SELECT setval('users_id_seq', 100);
		SELECT setval('roles_id_seq', 100);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func getStock(t *testing.T, pool *pgxpool.Pool, productID int) int64 {
	t.Helper()
	var stock int64
	err := pool.QueryRow(context.Background(),
		"SELECT stock FROM products WHERE id = $1", productID).Scan(&stock)
	if err != nil {
		t.Fatalf("Failed to read stock for product %d: %v", productID, err)
	}
	return stock
}

func getConsumed(t *testing.T, pool *pgxpool.Pool, purchaseID, productID int) int64 {
	t.Helper()
	var consumed int64
	err := pool.QueryRow(context.Background(), `
		SELECT COALESCE(SUM(pl.consumed), 0)
		FROM purchase_lots pl
		JOIN purchase_lot_groups g ON g.id = pl.lot_group_id
		WHERE g.purchase_id = $1 AND pl.product_id = $2
	`, purchaseID, productID).Scan(&consumed)
	if err != nil {
		t.Fatalf("Failed to read consumed for purchase %d product %d: %v", purchaseID, productID, err)
	}
	return consumed
}

// backdatePurchase shifts the purchase's ingestion timestamp into the past so
// tests can control FIFO ordering between purchases created in sequence.
func backdatePurchase(t *testing.T, pool *pgxpool.Pool, purchaseID, days int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		"UPDATE purchases SET ingested_at = NOW() - make_interval(days => $2) WHERE id = $1",
		purchaseID, days)
	if err != nil {
		t.Fatalf("Failed to backdate purchase %d: %v", purchaseID, err)
	}
}

func TestPurchaseService_CreateAddsStockAndTotal(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewPurchaseService(pool)
	ctx := context.Background()

	p, err := svc.CreatePurchase(ctx, 1, 1, "first delivery", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
		{ProductID: 2, Quantity: 4, UnitCost: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
	if p.Status != core.StatusCompleted {
		t.Errorf("Expected completed, got %s", p.Status)
	}
	if !p.Total.Equal(decimal.NewFromInt(58)) {
		t.Errorf("Expected total 58 (10×5 + 4×2), got %s", p.Total)
	}
	if len(p.LotGroups) != 1 || len(p.LotGroups[0].Lots) != 2 {
		t.Fatalf("Expected one lot group with two lots, got %+v", p.LotGroups)
	}
	if !p.LotGroups[0].IsActive {
		t.Error("Lot group of a completed purchase must be active")
	}
	if got := getStock(t, pool, 1); got != 10 {
		t.Errorf("Expected stock 10 for product 1, got %d", got)
	}
	if got := getStock(t, pool, 2); got != 4 {
		t.Errorf("Expected stock 4 for product 2, got %d", got)
	}
}

func TestPurchaseService_CreateRejectsPriceBelowCost(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewPurchaseService(pool)

	_, err := svc.CreatePurchase(context.Background(), 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 5, UnitCost: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(7)},
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if got := getStock(t, pool, 1); got != 0 {
		t.Errorf("Stock must be untouched after rejected purchase, got %d", got)
	}
}

func TestPurchaseService_StatusFlipMovesStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewPurchaseService(pool)
	ctx := context.Background()

	p, err := svc.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}

	// No sale has touched this purchase, so leaving "completed" is allowed.
	p, err = svc.SetPurchaseStatus(ctx, p.ID, core.StatusCancelled)
	if err != nil {
		t.Fatalf("SetPurchaseStatus(cancelled) failed: %v", err)
	}
	if p.Status != core.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", p.Status)
	}
	if got := getStock(t, pool, 1); got != 0 {
		t.Errorf("Cancelling must remove the lots from stock, got %d", got)
	}
	if len(p.LotGroups) != 1 || p.LotGroups[0].IsActive {
		t.Error("Lot group of a cancelled purchase must be inactive")
	}
	if !p.Total.IsZero() {
		t.Errorf("Total must only count active lot groups, got %s", p.Total)
	}

	// Re-complete: stock and total come back without duplicating anything.
	p, err = svc.SetPurchaseStatus(ctx, p.ID, core.StatusCompleted)
	if err != nil {
		t.Fatalf("SetPurchaseStatus(completed) failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 10 {
		t.Errorf("Re-completing must restore stock 10, got %d", got)
	}
	if !p.Total.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected total 50, got %s", p.Total)
	}

	// Flipping to the current status again is a no-op on stock.
	if _, err = svc.SetPurchaseStatus(ctx, p.ID, core.StatusCompleted); err != nil {
		t.Fatalf("SetPurchaseStatus(completed) again failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 10 {
		t.Errorf("Repeated completion must not double stock, got %d", got)
	}
}

func TestPurchaseService_ReversalGuardLocksAttributedPurchases(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	purchases := core.NewPurchaseService(pool)
	users := core.NewUserService(pool)
	sales := core.NewSaleService(pool, users, laPaz(t))
	ctx := context.Background()

	// Purchase A: 10 units two days ago. Purchase B: 5 units yesterday.
	a, err := purchases.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreatePurchase A failed: %v", err)
	}
	backdatePurchase(t, pool, a.ID, 2)

	b, err := purchases.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 5, UnitCost: decimal.NewFromInt(6), UnitPrice: decimal.NewFromInt(9)},
	})
	if err != nil {
		t.Fatalf("CreatePurchase B failed: %v", err)
	}
	backdatePurchase(t, pool, b.ID, 1)

	// A sale of 12 units: FIFO spends all of A and 2 units of B.
	sale, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 12, UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	if got := getConsumed(t, pool, a.ID, 1); got != 10 {
		t.Errorf("Expected purchase A fully consumed (10), got %d", got)
	}
	if got := getConsumed(t, pool, b.ID, 1); got != 2 {
		t.Errorf("Expected 2 units consumed from purchase B, got %d", got)
	}
	if got := getStock(t, pool, 1); got != 3 {
		t.Errorf("Expected stock 3 after sale, got %d", got)
	}

	// Both purchases now carry attributed units, so neither may be cancelled.
	_, err = purchases.SetPurchaseStatus(ctx, a.ID, core.StatusCancelled)
	var locked *core.PurchaseLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("Expected PurchaseLockedError for A, got %v", err)
	}
	if locked.PurchaseID != a.ID || locked.Units != 10 {
		t.Errorf("Expected A locked with 10 units, got %+v", locked)
	}

	_, err = purchases.SetPurchaseStatus(ctx, b.ID, core.StatusCancelled)
	if !errors.As(err, &locked) {
		t.Fatalf("Expected PurchaseLockedError for B, got %v", err)
	}
	if locked.Units != 2 {
		t.Errorf("Expected B locked with 2 attributed units, got %d", locked.Units)
	}
	if got := getStock(t, pool, 1); got != 3 {
		t.Errorf("Stock must be untouched by rejected cancellations, got %d", got)
	}

	// Cancelling the sale lifts the demand; B can then be cancelled.
	if _, err := sales.SetSaleStatus(ctx, sale.ID, 1, core.StatusCancelled); err != nil {
		t.Fatalf("Cancelling the sale failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 15 {
		t.Errorf("Expected stock 15 after cancelling the sale, got %d", got)
	}
	if _, err := purchases.SetPurchaseStatus(ctx, b.ID, core.StatusCancelled); err != nil {
		t.Fatalf("Cancelling B after the sale was lifted failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 10 {
		t.Errorf("Expected stock 10 after cancelling B, got %d", got)
	}
}

func TestPurchaseService_GuardIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	purchases := core.NewPurchaseService(pool)
	users := core.NewUserService(pool)
	sales := core.NewSaleService(pool, users, laPaz(t))
	ctx := context.Background()

	p, err := purchases.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
	if _, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 4, UnitPrice: decimal.NewFromInt(8)},
	}); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	// Repeated attempts keep failing identically and leave no side effects.
	for i := 0; i < 3; i++ {
		_, err := purchases.SetPurchaseStatus(ctx, p.ID, core.StatusCancelled)
		if !errors.Is(err, core.ErrPurchaseLocked) {
			t.Fatalf("Attempt %d: expected purchase locked, got %v", i, err)
		}
		if got := getStock(t, pool, 1); got != 6 {
			t.Fatalf("Attempt %d: expected stock 6, got %d", i, got)
		}
		if got := getConsumed(t, pool, p.ID, 1); got != 4 {
			t.Fatalf("Attempt %d: expected consumed 4, got %d", i, got)
		}
	}
}

func TestPurchaseService_EditGroupAdjustsStockByDiff(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewPurchaseService(pool)
	ctx := context.Background()

	p, err := svc.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
		{ProductID: 2, Quantity: 4, UnitCost: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
	groupID := p.LotGroups[0].ID

	// Grow product 1, shrink product 2 out of the group entirely.
	p, err = svc.EditPurchaseLines(ctx, groupID, []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 15, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("EditPurchaseLines failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 15 {
		t.Errorf("Expected stock 15 for product 1, got %d", got)
	}
	if got := getStock(t, pool, 2); got != 0 {
		t.Errorf("Expected removed product reverted to 0, got %d", got)
	}
	if !p.Total.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected total 75 after edit, got %s", p.Total)
	}

	// Shrinking with no sale demand passes the guard.
	_, err = svc.EditPurchaseLines(ctx, groupID, []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 6, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("Shrinking edit failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 6 {
		t.Errorf("Expected stock 6 after shrink, got %d", got)
	}
}

func TestPurchaseService_EditShrinkBlockedByActiveDemand(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	purchases := core.NewPurchaseService(pool)
	users := core.NewUserService(pool)
	sales := core.NewSaleService(pool, users, laPaz(t))
	ctx := context.Background()

	p, err := purchases.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
	if _, err := sales.CreateSale(ctx, 2, []core.SaleLineInput{
		{ProductID: 1, Quantity: 4, UnitPrice: decimal.NewFromInt(8)},
	}); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	_, err = purchases.EditPurchaseLines(ctx, p.LotGroups[0].ID, []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 3, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if !errors.Is(err, core.ErrPurchaseLocked) {
		t.Fatalf("Expected purchase locked on shrink below demand, got %v", err)
	}
	if got := getStock(t, pool, 1); got != 6 {
		t.Errorf("Stock must be untouched by the rejected edit, got %d", got)
	}
}

func TestPurchaseService_AddLinesToPendingPurchaseDefersStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewPurchaseService(pool)
	ctx := context.Background()

	p, err := svc.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 5, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
	if _, err := svc.SetPurchaseStatus(ctx, p.ID, core.StatusPending); err != nil {
		t.Fatalf("SetPurchaseStatus(pending) failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 0 {
		t.Fatalf("Pending purchase must hold no stock, got %d", got)
	}

	// Lines added while pending stay inactive until the purchase completes.
	p, err = svc.AddPurchaseLines(ctx, p.ID, []core.PurchaseLineInput{
		{ProductID: 2, Quantity: 7, UnitCost: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatalf("AddPurchaseLines failed: %v", err)
	}
	if len(p.LotGroups) != 2 {
		t.Fatalf("Expected two lot groups, got %d", len(p.LotGroups))
	}
	if got := getStock(t, pool, 2); got != 0 {
		t.Errorf("Expected no stock movement while pending, got %d", got)
	}

	p, err = svc.SetPurchaseStatus(ctx, p.ID, core.StatusCompleted)
	if err != nil {
		t.Fatalf("SetPurchaseStatus(completed) failed: %v", err)
	}
	if got := getStock(t, pool, 1); got != 5 {
		t.Errorf("Expected stock 5 for product 1, got %d", got)
	}
	if got := getStock(t, pool, 2); got != 7 {
		t.Errorf("Expected stock 7 for product 2, got %d", got)
	}
	if !p.Total.Equal(decimal.NewFromInt(39)) {
		t.Errorf("Expected total 39 (5×5 + 7×2), got %s", p.Total)
	}
}
