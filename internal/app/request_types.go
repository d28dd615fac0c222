package app

import (
	"procurement-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// PlaceOrderRequest is the input for placing a new order.
type PlaceOrderRequest struct {
	OrderID         string
	EmployeeRef     string
	VendorID        string
	Replacement     bool
	OriginalOrderID string
	Lines           []OrderLineInput
	Actor           string
}

// OrderLineInput is a single line within a PlaceOrderRequest. At least one of
// ProductID, CategoryID or Category must be set.
type OrderLineInput struct {
	ProductID  string
	CategoryID string
	Category   string
	Quantity   int
}

// ReturnApprovalRequest is the input for approving a return request.
type ReturnApprovalRequest struct {
	ReturnRequestID string
	EmployeeRef     string
	OrderID         string
	Product         core.ProductRef
	Quantity        int
	Actor           string
}

// RaiseGRNRequest is the input for raising a GRN against a PR number.
type RaiseGRNRequest struct {
	PONumber string
	Items    []GRNItemInput
	Actor    string
}

// GRNItemInput is one received line on a RaiseGRNRequest.
type GRNItemInput struct {
	ProductID    string
	OrderedQty   int
	DeliveredQty int
	RejectedQty  int
	Condition    string
}

// RaiseInvoiceRequest is the input for raising a vendor invoice against a GRN.
type RaiseInvoiceRequest struct {
	GRNID     string
	InvoiceID string
	Amount    decimal.Decimal
	Actor     string
}
