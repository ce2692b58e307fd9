package app

import "retail-backoffice/internal/core"

// UserSession is returned after successful authentication. Roles feed the
// JWT claims the web adapter issues.
type UserSession struct {
	UserID   int      `json:"user_id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
}

type UserListResult struct {
	Users []core.User `json:"users"`
}

type RoleListResult struct {
	Roles []core.Role `json:"roles"`
}

type ProductListResult struct {
	Products []core.Product `json:"products"`
}

type CategoryListResult struct {
	Categories []core.Category `json:"categories"`
}

type BrandListResult struct {
	Brands []core.Brand `json:"brands"`
}

type SupplierListResult struct {
	Suppliers []core.Supplier `json:"suppliers"`
}

type PurchaseListResult struct {
	Purchases []core.Purchase `json:"purchases"`
}

type SaleListResult struct {
	Sales []core.Sale `json:"sales"`
}
