package web

import (
	"net/http"

	"procurement-ledger/internal/app"

	"github.com/shopspring/decimal"
)

type grnItemBody struct {
	ProductID    string `json:"product_id" validate:"required"`
	OrderedQty   int    `json:"ordered_qty" validate:"gte=0"`
	DeliveredQty int    `json:"delivered_qty" validate:"gte=0"`
	RejectedQty  int    `json:"rejected_qty" validate:"gte=0"`
	Condition    string `json:"condition"`
}

type raiseGRNBody struct {
	PONumber string        `json:"po_number" validate:"required"`
	Items    []grnItemBody `json:"items" validate:"required,min=1,dive"`
}

// apiRaiseGRN handles POST /api/grns.
func (h *Handler) apiRaiseGRN(w http.ResponseWriter, r *http.Request) {
	var body raiseGRNBody
	if !h.decodeJSON(w, r, &body) {
		return
	}

	req := app.RaiseGRNRequest{PONumber: body.PONumber, Actor: actor(r)}
	for _, it := range body.Items {
		req.Items = append(req.Items, app.GRNItemInput{
			ProductID:    it.ProductID,
			OrderedQty:   it.OrderedQty,
			DeliveredQty: it.DeliveredQty,
			RejectedQty:  it.RejectedQty,
			Condition:    it.Condition,
		})
	}

	result, err := h.svc.RaiseGRN(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiGetGRN handles GET /api/grns/{id}.
func (h *Handler) apiGetGRN(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetGRN(r.Context(), pathID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAcknowledgeGRN handles POST /api/grns/{id}/acknowledge.
func (h *Handler) apiAcknowledgeGRN(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.AcknowledgeGRN(r.Context(), pathID(r), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiApproveGRN handles POST /api/grns/{id}/approve.
func (h *Handler) apiApproveGRN(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ApproveGRN(r.Context(), pathID(r), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiInvoiceEligibility handles GET /api/grns/{id}/invoice-eligibility.
func (h *Handler) apiInvoiceEligibility(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.InvoiceEligibility(r.Context(), pathID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

type raiseInvoiceBody struct {
	InvoiceID string `json:"invoice_id"`
	Amount    string `json:"invoice_amount" validate:"required"`
}

// apiRaiseInvoice handles POST /api/grns/{id}/invoices.
func (h *Handler) apiRaiseInvoice(w http.ResponseWriter, r *http.Request) {
	var body raiseInvoiceBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, r, "invoice_amount must be a positive decimal", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.RaiseInvoice(r.Context(), app.RaiseInvoiceRequest{
		GRNID:     pathID(r),
		InvoiceID: body.InvoiceID,
		Amount:    amount,
		Actor:     actor(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiApproveInvoice handles POST /api/invoices/{id}/approve.
func (h *Handler) apiApproveInvoice(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ApproveInvoice(r.Context(), pathID(r), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRejectInvoice handles POST /api/invoices/{id}/reject.
func (h *Handler) apiRejectInvoice(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RejectInvoice(r.Context(), pathID(r), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
