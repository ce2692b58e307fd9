package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is shared by purchases and sales. "completed" is the only
// status in which an order's line groups count toward stock and lot
// availability.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// ValidStatus reports whether s is one of the three known order statuses.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

type Brand struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Product carries the physical stock counter. Stock is mutated only through
// the stock ledger inside the same transaction as the lot bookkeeping that
// explains it; it never goes negative.
type Product struct {
	ID          int       `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CategoryID  int       `json:"category_id"`
	BrandID     int       `json:"brand_id"`
	Stock       int64     `json:"stock"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Supplier struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Purchase is ordered by IngestedAt for FIFO cost attribution. Purchases are
// created directly in "completed" status because received goods add physical
// stock immediately; corrections transition them afterwards.
type Purchase struct {
	ID         int                `json:"id"`
	SupplierID int                `json:"supplier_id"`
	IngestedAt time.Time          `json:"ingested_at"`
	Status     OrderStatus        `json:"status"`
	Total      decimal.Decimal    `json:"total"`
	CreatedBy  int                `json:"created_by"`
	Notes      string             `json:"notes,omitempty"`
	LotGroups  []PurchaseLotGroup `json:"lot_groups,omitempty"`
}

// PurchaseLotGroup groups the lots recorded together for one purchase. The
// active flag mirrors whether the parent purchase is currently completed.
type PurchaseLotGroup struct {
	ID         int           `json:"id"`
	PurchaseID int           `json:"purchase_id"`
	IsActive   bool          `json:"is_active"`
	CreatedAt  time.Time     `json:"created_at"`
	Lots       []PurchaseLot `json:"lots"`
}

// PurchaseLot is one purchase line: an immutable (product, quantity, cost)
// fact whose only mutable field is the consumed counter, advanced by the
// FIFO allocator as sales spend its units. 0 <= Consumed <= Quantity.
type PurchaseLot struct {
	ID         int             `json:"id"`
	LotGroupID int             `json:"lot_group_id"`
	LineNumber int             `json:"line_number"`
	ProductID  int             `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Consumed   int64           `json:"consumed"`
}

// Available returns the quantity still unallocated to sales.
func (l PurchaseLot) Available() int64 { return l.Quantity - l.Consumed }

type Sale struct {
	ID         int             `json:"id"`
	SoldAt     time.Time       `json:"sold_at"`
	SellerID   int             `json:"seller_id"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	LineGroups []SaleLineGroup `json:"line_groups,omitempty"`
}

type SaleLineGroup struct {
	ID        int        `json:"id"`
	SaleID    int        `json:"sale_id"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	Lines     []SaleLine `json:"lines"`
}

type SaleLine struct {
	ID          int             `json:"id"`
	LineGroupID int             `json:"line_group_id"`
	LineNumber  int             `json:"line_number"`
	ProductID   int             `json:"product_id"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// PurchaseLineInput is one requested purchase line. UnitPrice is the intended
// resale price recorded alongside the cost; it must not undercut the cost.
type PurchaseLineInput struct {
	ProductID int             `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleLineInput struct {
	ProductID int             `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Role struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	Roles     []string  `json:"roles,omitempty"`
}

func validatePurchaseLines(lines []PurchaseLineInput) error {
	if len(lines) == 0 {
		return ValidationErrorf("purchase must have at least one line")
	}
	for i, ln := range lines {
		if ln.ProductID <= 0 {
			return ValidationErrorf("line %d: product id is required", i)
		}
		if ln.Quantity <= 0 {
			return ValidationErrorf("line %d: quantity must be positive, got %d", i, ln.Quantity)
		}
		if !ln.UnitCost.IsPositive() {
			return ValidationErrorf("line %d: unit cost must be positive, got %s", i, ln.UnitCost)
		}
		if !ln.UnitPrice.IsPositive() {
			return ValidationErrorf("line %d: unit price must be positive, got %s", i, ln.UnitPrice)
		}
		if ln.UnitPrice.LessThan(ln.UnitCost) {
			return ValidationErrorf("line %d: unit price %s cannot be below unit cost %s for product %d",
				i, ln.UnitPrice, ln.UnitCost, ln.ProductID)
		}
	}
	return nil
}

func validateSaleLines(lines []SaleLineInput) error {
	if len(lines) == 0 {
		return ValidationErrorf("sale must have at least one line")
	}
	seen := make(map[int]bool, len(lines))
	for i, ln := range lines {
		if ln.ProductID <= 0 {
			return ValidationErrorf("line %d: product id is required", i)
		}
		if seen[ln.ProductID] {
			return ValidationErrorf("line %d: product %d appears more than once", i, ln.ProductID)
		}
		seen[ln.ProductID] = true
		if ln.Quantity <= 0 {
			return ValidationErrorf("line %d: quantity must be positive, got %d", i, ln.Quantity)
		}
		if !ln.UnitPrice.IsPositive() {
			return ValidationErrorf("line %d: unit price must be positive, got %s", i, ln.UnitPrice)
		}
	}
	return nil
}
