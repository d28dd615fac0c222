package web

import (
	"fmt"
	"net/http"

	"procurement-ledger/internal/app"
	"procurement-ledger/internal/core"
)

// apiGetEligibility handles GET /api/employees/{id}/eligibility.
func (h *Handler) apiGetEligibility(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetEligibility(r.Context(), pathID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

type orderLineBody struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
	Category   string `json:"category"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

type placeOrderBody struct {
	OrderID         string          `json:"order_id"`
	EmployeeID      string          `json:"employee_id" validate:"required"`
	VendorID        string          `json:"vendor_id"`
	Replacement     bool            `json:"replacement"`
	OriginalOrderID string          `json:"original_order_id" validate:"required_if=Replacement true"`
	Lines           []orderLineBody `json:"lines" validate:"required,min=1,dive"`
}

// apiPlaceOrder handles POST /api/orders.
func (h *Handler) apiPlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderBody
	if !h.decodeJSON(w, r, &body) {
		return
	}

	req := app.PlaceOrderRequest{
		OrderID:         body.OrderID,
		EmployeeRef:     body.EmployeeID,
		VendorID:        body.VendorID,
		Replacement:     body.Replacement,
		OriginalOrderID: body.OriginalOrderID,
		Actor:           actor(r),
	}
	for i, l := range body.Lines {
		if l.ProductID == "" && l.CategoryID == "" && l.Category == "" {
			writeError(w, r, fmt.Sprintf("line %d: product_id, category_id or category is required", i+1), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.Lines = append(req.Lines, app.OrderLineInput{
			ProductID:  l.ProductID,
			CategoryID: l.CategoryID,
			Category:   l.Category,
			Quantity:   l.Quantity,
		})
	}

	result, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// scopedOrder loads the {id} order and hides it from callers outside its company.
func (h *Handler) scopedOrder(w http.ResponseWriter, r *http.Request) (*app.OrderResult, bool) {
	result, err := h.svc.GetOrder(r.Context(), pathID(r))
	if err == nil && !inCompany(r, result.Order.CompanyID) {
		err = fmt.Errorf("order %s: %w", pathID(r), core.ErrOrderNotFound)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return nil, false
	}
	return result, true
}

// apiGetOrder handles GET /api/orders/{id}.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	result, ok := h.scopedOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, result)
}

// apiApproveOrder handles POST /api/orders/{id}/approve.
func (h *Handler) apiApproveOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.scopedOrder(w, r); !ok {
		return
	}
	result, err := h.svc.ApproveOrder(r.Context(), pathID(r), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiDispatchOrder handles POST /api/orders/{id}/dispatch.
func (h *Handler) apiDispatchOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.DispatchOrder(r.Context(), pathID(r), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiDeliverShipment handles POST /api/shipments/{id}/deliver.
func (h *Handler) apiDeliverShipment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.DeliverShipment(r.Context(), pathID(r), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

type approveReturnBody struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
	Category   string `json:"category"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

// apiApproveReturn handles POST /api/returns/{id}/approve. An unresolvable employee
// or category is reported in the body with HTTP 422.
func (h *Handler) apiApproveReturn(w http.ResponseWriter, r *http.Request) {
	var body approveReturnBody
	if !h.decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.ApproveReturn(r.Context(), app.ReturnApprovalRequest{
		ReturnRequestID: pathID(r),
		EmployeeRef:     body.EmployeeID,
		OrderID:         body.OrderID,
		Product: core.ProductRef{
			ProductID:    body.ProductID,
			CategoryID:   body.CategoryID,
			CategoryName: body.Category,
		},
		Quantity: body.Quantity,
		Actor:    actor(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !result.Success {
		writeJSONStatus(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, result)
}
