package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"retail-backoffice/internal/cache"
	"retail-backoffice/internal/core"
)

type appService struct {
	users      core.UserService
	products   core.ProductService
	suppliers  core.SupplierService
	purchases  core.PurchaseService
	sales      core.SaleService
	reporting  core.ReportingService
	summaries  cache.SummaryCache
	summaryTTL time.Duration
	loc        *time.Location
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	users core.UserService,
	products core.ProductService,
	suppliers core.SupplierService,
	purchases core.PurchaseService,
	sales core.SaleService,
	reporting core.ReportingService,
	summaries cache.SummaryCache,
	summaryTTL time.Duration,
	loc *time.Location,
) ApplicationService {
	return &appService{
		users:      users,
		products:   products,
		suppliers:  suppliers,
		purchases:  purchases,
		sales:      sales,
		reporting:  reporting,
		summaries:  summaries,
		summaryTTL: summaryTTL,
		loc:        loc,
	}
}

// ── Auth, users and roles ─────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	// Authenticate returns the bare account; the profile lookup adds roles.
	profile, err := s.users.GetUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &UserSession{
		UserID:   profile.ID,
		Username: profile.Username,
		FullName: profile.FullName,
		Roles:    profile.Roles,
	}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.users.GetUser(ctx, userID)
}

func (s *appService) ListUsers(ctx context.Context) (*UserListResult, error) {
	users, err := s.users.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	return &UserListResult{Users: users}, nil
}

func (s *appService) CreateUser(ctx context.Context, req CreateUserRequest) (*core.User, error) {
	return s.users.CreateUser(ctx, req.Username, req.Password, req.FullName, req.Email)
}

func (s *appService) ListRoles(ctx context.Context) (*RoleListResult, error) {
	roles, err := s.users.GetRoles(ctx)
	if err != nil {
		return nil, err
	}
	return &RoleListResult{Roles: roles}, nil
}

func (s *appService) CreateRole(ctx context.Context, name, description string) (*core.Role, error) {
	return s.users.CreateRole(ctx, name, description)
}

func (s *appService) AssignRole(ctx context.Context, userID, roleID int) error {
	return s.users.AssignRole(ctx, userID, roleID)
}

func (s *appService) RevokeRole(ctx context.Context, userID, roleID int) error {
	return s.users.RevokeRole(ctx, userID, roleID)
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.products.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetProduct(ctx context.Context, productID int) (*core.Product, error) {
	return s.products.GetProduct(ctx, productID)
}

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error) {
	return s.products.CreateProduct(ctx, req.Name, req.Description, req.ImageURL, req.CategoryID, req.BrandID)
}

func (s *appService) UpdateProduct(ctx context.Context, req UpdateProductRequest) (*core.Product, error) {
	return s.products.UpdateProduct(ctx, req.ProductID, req.Name, req.Description, req.ImageURL, req.CategoryID, req.BrandID)
}

func (s *appService) SetProductActive(ctx context.Context, productID int, active bool) error {
	return s.products.SetProductActive(ctx, productID, active)
}

func (s *appService) ListCategories(ctx context.Context) (*CategoryListResult, error) {
	categories, err := s.products.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	return &CategoryListResult{Categories: categories}, nil
}

func (s *appService) CreateCategory(ctx context.Context, name, description string) (*core.Category, error) {
	return s.products.CreateCategory(ctx, name, description)
}

func (s *appService) ListBrands(ctx context.Context) (*BrandListResult, error) {
	brands, err := s.products.GetBrands(ctx)
	if err != nil {
		return nil, err
	}
	return &BrandListResult{Brands: brands}, nil
}

func (s *appService) CreateBrand(ctx context.Context, name string) (*core.Brand, error) {
	return s.products.CreateBrand(ctx, name)
}

// ── Suppliers ─────────────────────────────────────────────────────────────────

func (s *appService) ListSuppliers(ctx context.Context) (*SupplierListResult, error) {
	suppliers, err := s.suppliers.GetSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	return &SupplierListResult{Suppliers: suppliers}, nil
}

func (s *appService) GetSupplier(ctx context.Context, supplierID int) (*core.Supplier, error) {
	return s.suppliers.GetSupplier(ctx, supplierID)
}

func (s *appService) CreateSupplier(ctx context.Context, req SupplierRequest) (*core.Supplier, error) {
	return s.suppliers.CreateSupplier(ctx, supplierInput(req))
}

func (s *appService) UpdateSupplier(ctx context.Context, supplierID int, req SupplierRequest) (*core.Supplier, error) {
	return s.suppliers.UpdateSupplier(ctx, supplierID, supplierInput(req))
}

func (s *appService) SetSupplierActive(ctx context.Context, supplierID int, active bool) error {
	return s.suppliers.SetSupplierActive(ctx, supplierID, active)
}

func supplierInput(req SupplierRequest) core.SupplierInput {
	return core.SupplierInput{
		Name:        req.Name,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
	}
}

// ── Purchases ─────────────────────────────────────────────────────────────────

func (s *appService) CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (*core.Purchase, error) {
	purchase, err := s.purchases.CreatePurchase(ctx, req.SupplierID, req.CreatedBy, req.Notes, purchaseLines(req.Lines))
	if err != nil {
		return nil, err
	}
	s.dropSummaries(ctx)
	return purchase, nil
}

func (s *appService) AddPurchaseLines(ctx context.Context, purchaseID int, lines []PurchaseLineInput) (*core.Purchase, error) {
	purchase, err := s.purchases.AddPurchaseLines(ctx, purchaseID, purchaseLines(lines))
	if err != nil {
		return nil, err
	}
	s.dropSummaries(ctx)
	return purchase, nil
}

func (s *appService) EditPurchaseLines(ctx context.Context, lotGroupID int, lines []PurchaseLineInput) (*core.Purchase, error) {
	purchase, err := s.purchases.EditPurchaseLines(ctx, lotGroupID, purchaseLines(lines))
	if err != nil {
		return nil, err
	}
	s.dropSummaries(ctx)
	return purchase, nil
}

func (s *appService) SetPurchaseStatus(ctx context.Context, purchaseID int, status core.OrderStatus) (*core.Purchase, error) {
	purchase, err := s.purchases.SetPurchaseStatus(ctx, purchaseID, status)
	if err != nil {
		return nil, err
	}
	s.dropSummaries(ctx)
	return purchase, nil
}

func (s *appService) GetPurchase(ctx context.Context, purchaseID int) (*core.Purchase, error) {
	return s.purchases.GetPurchase(ctx, purchaseID)
}

func (s *appService) ListPurchases(ctx context.Context) (*PurchaseListResult, error) {
	purchases, err := s.purchases.GetPurchases(ctx)
	if err != nil {
		return nil, err
	}
	return &PurchaseListResult{Purchases: purchases}, nil
}

func purchaseLines(lines []PurchaseLineInput) []core.PurchaseLineInput {
	out := make([]core.PurchaseLineInput, len(lines))
	for i, ln := range lines {
		out[i] = core.PurchaseLineInput{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitCost:  ln.UnitCost,
			UnitPrice: ln.UnitPrice,
		}
	}
	return out
}

// ── Sales ─────────────────────────────────────────────────────────────────────

func (s *appService) CreateSale(ctx context.Context, req CreateSaleRequest) (*core.Sale, error) {
	sale, err := s.sales.CreateSale(ctx, req.SellerID, saleLines(req.Lines))
	if err != nil {
		return nil, err
	}
	s.dropSummaries(ctx)
	return sale, nil
}

func (s *appService) AddSaleLines(ctx context.Context, saleID, actorID int, lines []SaleLineInput) (*core.Sale, error) {
	sale, err := s.sales.AddSaleLines(ctx, saleID, actorID, saleLines(lines))
	if err != nil {
		return nil, err
	}
	s.dropSummaries(ctx)
	return sale, nil
}

func (s *appService) EditSaleLines(ctx context.Context, lineGroupID, actorID int, lines []SaleLineInput) (*core.Sale, error) {
	sale, err := s.sales.EditSaleLines(ctx, lineGroupID, actorID, saleLines(lines))
	if err != nil {
		return nil, err
	}
	s.dropSummaries(ctx)
	return sale, nil
}

func (s *appService) SetSaleStatus(ctx context.Context, saleID, actorID int, status core.OrderStatus) (*core.Sale, error) {
	sale, err := s.sales.SetSaleStatus(ctx, saleID, actorID, status)
	if err != nil {
		return nil, err
	}
	s.dropSummaries(ctx)
	return sale, nil
}

func (s *appService) GetSale(ctx context.Context, saleID int) (*core.Sale, error) {
	return s.sales.GetSale(ctx, saleID)
}

func (s *appService) ListSales(ctx context.Context) (*SaleListResult, error) {
	sales, err := s.sales.GetSales(ctx)
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Sales: sales}, nil
}

func saleLines(lines []SaleLineInput) []core.SaleLineInput {
	out := make([]core.SaleLineInput, len(lines))
	for i, ln := range lines {
		out[i] = core.SaleLineInput{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice,
		}
	}
	return out
}

// ── Reporting ─────────────────────────────────────────────────────────────────

func (s *appService) GetProfitSummary(ctx context.Context, granularity core.Granularity, referenceDate string) (*core.ProfitSummary, error) {
	reference := time.Now()
	if referenceDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", referenceDate, s.loc)
		if err != nil {
			return nil, core.ValidationErrorf("reference date must be formatted as YYYY-MM-DD, got %q", referenceDate)
		}
		// Noon keeps the reference inside the intended business day even
		// for callers in other timezones.
		reference = parsed.Add(12 * time.Hour)
	}
	key := summaryKey(granularity, reference, s.loc)

	if cached, ok, err := s.summaries.Get(ctx, key); err != nil {
		log.Printf("summary cache read: %v", err)
	} else if ok {
		return cached, nil
	}

	summary, err := s.reporting.Summarize(ctx, granularity, reference)
	if err != nil {
		return nil, err
	}
	if err := s.summaries.Set(ctx, key, summary, s.summaryTTL); err != nil {
		log.Printf("summary cache write: %v", err)
	}
	return summary, nil
}

func (s *appService) GetDailySummary(ctx context.Context) (*core.DailySummary, error) {
	return s.reporting.DailyProfit(ctx)
}

// summaryKey pins the cache entry to the reference's calendar bucket so two
// requests inside the same period share it.
func summaryKey(g core.Granularity, reference time.Time, loc *time.Location) string {
	local := reference.In(loc)
	return fmt.Sprintf("%s:%04d-%02d-%02d:%s", g, local.Year(), int(local.Month()), local.Day(),
		core.PeriodLabel(reference, g, loc))
}

// dropSummaries is best-effort: a stale cached summary expires on its own TTL
// anyway.
func (s *appService) dropSummaries(ctx context.Context) {
	if err := s.summaries.Invalidate(ctx); err != nil {
		log.Printf("summary cache invalidate: %v", err)
	}
}
