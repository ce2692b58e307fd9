package app

import "github.com/shopspring/decimal"

// CreateUserRequest is the input for registering a user.
type CreateUserRequest struct {
	Username string
	Password string
	FullName string
	Email    string
}

// CreateProductRequest is the input for registering a product. The product
// code is generated, never supplied.
type CreateProductRequest struct {
	Name        string
	Description string
	ImageURL    string
	CategoryID  int
	BrandID     int
}

// UpdateProductRequest edits a product's descriptive fields.
type UpdateProductRequest struct {
	ProductID   int
	Name        string
	Description string
	ImageURL    string
	CategoryID  int
	BrandID     int
}

// SupplierRequest is the input for creating or updating a supplier.
type SupplierRequest struct {
	Name        string
	ContactName string
	Email       string
	Phone       string
	Address     string
}

// CreatePurchaseRequest is the input for recording a received purchase.
type CreatePurchaseRequest struct {
	SupplierID int
	CreatedBy  int
	Notes      string
	Lines      []PurchaseLineInput
}

// PurchaseLineInput is a single line within a purchase request.
type PurchaseLineInput struct {
	ProductID int
	Quantity  int64
	UnitCost  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateSaleRequest is the input for recording a sale.
type CreateSaleRequest struct {
	SellerID int
	Lines    []SaleLineInput
}

// SaleLineInput is a single line within a sale request.
type SaleLineInput struct {
	ProductID int
	Quantity  int64
	UnitPrice decimal.Decimal
}
