package app

import (
	"context"

	"procurement-ledger/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// MigrationPhase reports the flags and phase this process was started with.
	MigrationPhase() *PhaseResult

	// GetEligibility returns remaining quota per category and the event history.
	// employeeRef may be the employee id or employee code.
	GetEligibility(ctx context.Context, employeeRef string) (*EligibilityResult, error)

	// PlaceOrder creates an order and decrements the employee's eligibility.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error)

	// GetOrder returns an order with its lines and the stage seen in the current phase.
	GetOrder(ctx context.Context, orderID string) (*OrderResult, error)

	// ApproveOrder moves an order from awaiting approval to awaiting fulfilment.
	ApproveOrder(ctx context.Context, orderID, actor string) (*OrderResult, error)

	// DispatchOrder ships an approved order and creates its shipment record.
	DispatchOrder(ctx context.Context, orderID, actor string) (*ShipmentResult, error)

	// DeliverShipment marks a shipment delivered and moves its order to delivered.
	DeliverShipment(ctx context.Context, shipmentID, actor string) (*OrderResult, error)

	// ApproveReturn credits eligibility back for an approved return request.
	ApproveReturn(ctx context.Context, req ReturnApprovalRequest) (*core.IncrementResult, error)

	// RaiseGRN records a vendor goods receipt note against a PR.
	RaiseGRN(ctx context.Context, req RaiseGRNRequest) (*GRNResult, error)

	// GetGRN returns a GRN with its items.
	GetGRN(ctx context.Context, grnID string) (*GRNResult, error)

	// AcknowledgeGRN records company acknowledgement of a raised GRN.
	AcknowledgeGRN(ctx context.Context, grnID, actor string) (*GRNResult, error)

	// ApproveGRN approves a raised GRN.
	ApproveGRN(ctx context.Context, grnID, actor string) (*GRNResult, error)

	// InvoiceEligibility explains whether an invoice may be raised for the GRN.
	InvoiceEligibility(ctx context.Context, grnID string) (*core.InvoiceEligibility, error)

	// RaiseInvoice raises an invoice against an approved GRN with no live invoice.
	RaiseInvoice(ctx context.Context, req RaiseInvoiceRequest) (*InvoiceResult, error)

	// ApproveInvoice and RejectInvoice settle a RAISED invoice.
	ApproveInvoice(ctx context.Context, invoiceID, actor string) (*InvoiceResult, error)
	RejectInvoice(ctx context.Context, invoiceID, actor string) (*InvoiceResult, error)
}
