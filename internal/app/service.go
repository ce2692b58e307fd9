package app

import (
	"context"

	"retail-backoffice/internal/core"
)

// ApplicationService is the single interface all transport adapters call. It
// decouples presentation from business logic; implementations contain no
// HTTP, no status codes, and no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns the user profile with role names.
	GetUser(ctx context.Context, userID int) (*core.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) (*UserListResult, error)

	// CreateUser registers a new user account.
	CreateUser(ctx context.Context, req CreateUserRequest) (*core.User, error)

	// ListRoles returns all roles.
	ListRoles(ctx context.Context) (*RoleListResult, error)

	// CreateRole registers a new role.
	CreateRole(ctx context.Context, name, description string) (*core.Role, error)

	// AssignRole grants a role to a user; re-assigning reactivates a
	// previously revoked grant.
	AssignRole(ctx context.Context, userID, roleID int) error

	// RevokeRole deactivates a user's role assignment.
	RevokeRole(ctx context.Context, userID, roleID int) error

	// ListProducts returns the catalog, including inactive products.
	ListProducts(ctx context.Context) (*ProductListResult, error)

	// GetProduct returns a single product.
	GetProduct(ctx context.Context, productID int) (*core.Product, error)

	// CreateProduct registers a product and assigns its generated code.
	CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error)

	// UpdateProduct edits descriptive fields; stock and code are untouchable.
	UpdateProduct(ctx context.Context, req UpdateProductRequest) (*core.Product, error)

	// SetProductActive toggles whether the product can be sold.
	SetProductActive(ctx context.Context, productID int, active bool) error

	// ListCategories returns all product categories.
	ListCategories(ctx context.Context) (*CategoryListResult, error)

	// CreateCategory registers a product category.
	CreateCategory(ctx context.Context, name, description string) (*core.Category, error)

	// ListBrands returns all brands.
	ListBrands(ctx context.Context) (*BrandListResult, error)

	// CreateBrand registers a brand.
	CreateBrand(ctx context.Context, name string) (*core.Brand, error)

	// ListSuppliers returns all suppliers.
	ListSuppliers(ctx context.Context) (*SupplierListResult, error)

	// GetSupplier returns a single supplier.
	GetSupplier(ctx context.Context, supplierID int) (*core.Supplier, error)

	// CreateSupplier registers a supplier.
	CreateSupplier(ctx context.Context, req SupplierRequest) (*core.Supplier, error)

	// UpdateSupplier edits a supplier's contact data.
	UpdateSupplier(ctx context.Context, supplierID int, req SupplierRequest) (*core.Supplier, error)

	// SetSupplierActive toggles a supplier.
	SetSupplierActive(ctx context.Context, supplierID int, active bool) error

	// CreatePurchase records a received purchase; its lots immediately back
	// stock and FIFO availability.
	CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (*core.Purchase, error)

	// AddPurchaseLines appends a lot group to an existing purchase.
	AddPurchaseLines(ctx context.Context, purchaseID int, lines []PurchaseLineInput) (*core.Purchase, error)

	// EditPurchaseLines replaces the lines of one lot group, guarded against
	// retracting units that sales already absorbed.
	EditPurchaseLines(ctx context.Context, lotGroupID int, lines []PurchaseLineInput) (*core.Purchase, error)

	// SetPurchaseStatus transitions a purchase, moving its stock with it.
	SetPurchaseStatus(ctx context.Context, purchaseID int, status core.OrderStatus) (*core.Purchase, error)

	// GetPurchase returns one purchase with its lot groups.
	GetPurchase(ctx context.Context, purchaseID int) (*core.Purchase, error)

	// ListPurchases returns all purchases, newest first.
	ListPurchases(ctx context.Context) (*PurchaseListResult, error)

	// CreateSale records a completed sale, FIFO-allocating its lines.
	CreateSale(ctx context.Context, req CreateSaleRequest) (*core.Sale, error)

	// AddSaleLines appends a line group to an existing sale.
	AddSaleLines(ctx context.Context, saleID, actorID int, lines []SaleLineInput) (*core.Sale, error)

	// EditSaleLines replaces the lines of one sale line group.
	EditSaleLines(ctx context.Context, lineGroupID, actorID int, lines []SaleLineInput) (*core.Sale, error)

	// SetSaleStatus transitions a sale, returning or re-taking stock.
	SetSaleStatus(ctx context.Context, saleID, actorID int, status core.OrderStatus) (*core.Sale, error)

	// GetSale returns one sale with its line groups.
	GetSale(ctx context.Context, saleID int) (*core.Sale, error)

	// ListSales returns all sales, newest first.
	ListSales(ctx context.Context) (*SaleListResult, error)

	// GetProfitSummary returns bucketed revenue and FIFO profit for the
	// period containing referenceDate (YYYY-MM-DD, business-local). An empty
	// referenceDate means now.
	GetProfitSummary(ctx context.Context, granularity core.Granularity, referenceDate string) (*core.ProfitSummary, error)

	// GetDailySummary returns today's profit figure.
	GetDailySummary(ctx context.Context) (*core.DailySummary, error)
}
