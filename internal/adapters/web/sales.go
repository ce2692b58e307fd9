package web

import (
	"net/http"

	"retail-backoffice/internal/app"
	"retail-backoffice/internal/core"

	"github.com/shopspring/decimal"
)

type saleLineRequest struct {
	ProductID int             `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func saleLineInputs(lines []saleLineRequest) []app.SaleLineInput {
	out := make([]app.SaleLineInput, len(lines))
	for i, ln := range lines {
		out[i] = app.SaleLineInput{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice,
		}
	}
	return out
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListSales(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	sale, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		Lines []saleLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.CreateSale(r.Context(), app.CreateSaleRequest{
		SellerID: claims.UserID,
		Lines:    saleLineInputs(req.Lines),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, sale)
}

func (h *Handler) addSaleLines(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	claims := authFromContext(r.Context())
	var req struct {
		Lines []saleLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.AddSaleLines(r.Context(), id, claims.UserID, saleLineInputs(req.Lines))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) editSaleLines(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	claims := authFromContext(r.Context())
	var req struct {
		Lines []saleLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.EditSaleLines(r.Context(), id, claims.UserID, saleLineInputs(req.Lines))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) setSaleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	claims := authFromContext(r.Context())
	var req struct {
		Status core.OrderStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.SetSaleStatus(r.Context(), id, claims.UserID, req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sale)
}
