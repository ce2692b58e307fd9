package web

import (
	"net/http"

	"retail-backoffice/internal/app"
	"retail-backoffice/internal/core"

	"github.com/shopspring/decimal"
)

type purchaseLineRequest struct {
	ProductID int             `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func purchaseLineInputs(lines []purchaseLineRequest) []app.PurchaseLineInput {
	out := make([]app.PurchaseLineInput, len(lines))
	for i, ln := range lines {
		out[i] = app.PurchaseLineInput{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitCost:  ln.UnitCost,
			UnitPrice: ln.UnitPrice,
		}
	}
	return out
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPurchases(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	purchase, err := h.svc.GetPurchase(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, purchase)
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req struct {
		SupplierID int                   `json:"supplier_id"`
		Notes      string                `json:"notes"`
		Lines      []purchaseLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	purchase, err := h.svc.CreatePurchase(r.Context(), app.CreatePurchaseRequest{
		SupplierID: req.SupplierID,
		CreatedBy:  claims.UserID,
		Notes:      req.Notes,
		Lines:      purchaseLineInputs(req.Lines),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, purchase)
}

func (h *Handler) addPurchaseLines(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Lines []purchaseLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	purchase, err := h.svc.AddPurchaseLines(r.Context(), id, purchaseLineInputs(req.Lines))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, purchase)
}

func (h *Handler) editPurchaseLines(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Lines []purchaseLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	purchase, err := h.svc.EditPurchaseLines(r.Context(), id, purchaseLineInputs(req.Lines))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, purchase)
}

func (h *Handler) setPurchaseStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status core.OrderStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	purchase, err := h.svc.SetPurchaseStatus(r.Context(), id, req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, purchase)
}
