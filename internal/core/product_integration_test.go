package core_test

import (
	"context"
	"errors"
	"testing"

	"retail-backoffice/internal/core"

	"github.com/shopspring/decimal"
)

func TestProductService_GeneratesSequentialCodes(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewProductService(pool)
	ctx := context.Background()

	// The seeded counter sits wherever earlier inserts left it; only the
	// relative sequence and shape of the codes matter.
	first, err := svc.CreateProduct(ctx, "Tonic 500ml", "Tonic water bottle", "", 1, 1)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	second, err := svc.CreateProduct(ctx, "Soda 500ml", "Soda water bottle", "", 1, 1)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	if first.Code == second.Code {
		t.Errorf("Product codes must be unique, both got %q", first.Code)
	}
	// TON from "Tonic 500ml", AND from the brand "Andina".
	if len(first.Code) < 8 || first.Code[:8] != "TON-AND-" {
		t.Errorf("Expected code shaped like TON-AND-NNN, got %q", first.Code)
	}
	if first.Stock != 0 {
		t.Errorf("New products start with zero stock, got %d", first.Stock)
	}
}

func TestProductService_CreateRejectsUnknownBrand(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewProductService(pool)

	_, err := svc.CreateProduct(context.Background(), "Ghost Product", "No brand backs this", "", 1, 999)
	if !errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Expected rejection for unknown brand, got %v", err)
	}
}

func TestProductService_UpdateLeavesStockAndCode(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	products := core.NewProductService(pool)
	purchases := core.NewPurchaseService(pool)
	ctx := context.Background()

	if _, err := purchases.CreatePurchase(ctx, 1, 1, "", []core.PurchaseLineInput{
		{ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(8)},
	}); err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}

	before, err := products.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}

	after, err := products.UpdateProduct(ctx, 1, "Cola 2L Family", "Bigger label, same bottle", "", 1, 1)
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	if after.Name != "Cola 2L Family" {
		t.Errorf("Expected updated name, got %q", after.Name)
	}
	if after.Code != before.Code {
		t.Errorf("Code must never change on update: %q became %q", before.Code, after.Code)
	}
	if after.Stock != 10 {
		t.Errorf("Stock must be untouched by catalog edits, got %d", after.Stock)
	}
}

func TestSupplierService_RoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSupplierService(pool)
	ctx := context.Background()

	created, err := svc.CreateSupplier(ctx, core.SupplierInput{
		Name:        "Frutas del Valle",
		ContactName: "Jorge Mamani",
		Email:       "pedidos@fdv.example",
		Phone:       "+591-700-22222",
		Address:     "Calle Sucre 12",
	})
	if err != nil {
		t.Fatalf("CreateSupplier failed: %v", err)
	}

	updated, err := svc.UpdateSupplier(ctx, created.ID, core.SupplierInput{
		Name:        "Frutas del Valle SRL",
		ContactName: "Jorge Mamani",
		Email:       "pedidos@fdv.example",
		Phone:       "+591-700-22222",
		Address:     "Calle Sucre 12",
	})
	if err != nil {
		t.Fatalf("UpdateSupplier failed: %v", err)
	}
	if updated.Name != "Frutas del Valle SRL" {
		t.Errorf("Expected updated name, got %q", updated.Name)
	}

	if err := svc.SetSupplierActive(ctx, created.ID, false); err != nil {
		t.Fatalf("SetSupplierActive failed: %v", err)
	}
	got, err := svc.GetSupplier(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSupplier failed: %v", err)
	}
	if got.IsActive {
		t.Error("Supplier must be inactive after deactivation")
	}
}
