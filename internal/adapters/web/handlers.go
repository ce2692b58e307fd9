package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"retail-backoffice/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Public ───────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API (401 JSON if unauthenticated) ──────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// Catalog
		r.Get("/api/products", h.listProducts)
		r.Post("/api/products", h.createProduct)
		r.Get("/api/products/{id}", h.getProduct)
		r.Put("/api/products/{id}", h.updateProduct)
		r.Post("/api/products/{id}/active", h.setProductActive)
		r.Get("/api/categories", h.listCategories)
		r.Post("/api/categories", h.createCategory)
		r.Get("/api/brands", h.listBrands)
		r.Post("/api/brands", h.createBrand)

		// Suppliers
		r.Get("/api/suppliers", h.listSuppliers)
		r.Post("/api/suppliers", h.createSupplier)
		r.Get("/api/suppliers/{id}", h.getSupplier)
		r.Put("/api/suppliers/{id}", h.updateSupplier)
		r.Post("/api/suppliers/{id}/active", h.setSupplierActive)

		// Purchases
		r.Get("/api/purchases", h.listPurchases)
		r.Post("/api/purchases", h.createPurchase)
		r.Get("/api/purchases/{id}", h.getPurchase)
		r.Post("/api/purchases/{id}/lines", h.addPurchaseLines)
		r.Post("/api/purchases/{id}/status", h.setPurchaseStatus)
		r.Put("/api/purchases/lot-groups/{id}", h.editPurchaseLines)

		// Sales
		r.Get("/api/sales", h.listSales)
		r.Post("/api/sales", h.createSale)
		r.Get("/api/sales/{id}", h.getSale)
		r.Post("/api/sales/{id}/lines", h.addSaleLines)
		r.Post("/api/sales/{id}/status", h.setSaleStatus)
		r.Put("/api/sales/line-groups/{id}", h.editSaleLines)

		// Reports
		r.Get("/api/reports/profit", h.profitSummary)
		r.Get("/api/reports/daily", h.dailySummary)

		// Users and roles
		r.Get("/api/users", h.listUsers)
		r.Post("/api/users", h.createUser)
		r.Get("/api/roles", h.listRoles)
		r.Post("/api/roles", h.createRole)
		r.Post("/api/users/{id}/roles", h.assignRole)
		r.Delete("/api/users/{id}/roles/{roleID}", h.revokeRole)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// idParam extracts the {id} URL parameter as an int; a false return means the
// error response has already been written.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an
// appropriate error response on failure. Returns HTTP 413 when the body
// exceeds the size limit set by RequestBodyLimit middleware; HTTP 400 for all
// other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
