package app

import (
	"context"

	"procurement-ledger/internal/core"
)

type appService struct {
	flags       core.MigrationFlags
	ledger      core.EligibilityLedger
	orders      core.OrderService
	procurement core.ProcurementService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	flags core.MigrationFlags,
	ledger core.EligibilityLedger,
	orders core.OrderService,
	procurement core.ProcurementService,
) ApplicationService {
	return &appService{
		flags:       flags,
		ledger:      ledger,
		orders:      orders,
		procurement: procurement,
	}
}

func (s *appService) MigrationPhase() *PhaseResult {
	return &PhaseResult{
		Flags:         s.flags,
		Phase:         s.flags.Phase,
		WriteMode:     s.flags.WriteMode().String(),
		PreferUnified: s.flags.PreferUnified(),
	}
}

func (s *appService) GetEligibility(ctx context.Context, employeeRef string) (*EligibilityResult, error) {
	balances, err := s.ledger.Balances(ctx, employeeRef)
	if err != nil {
		return nil, err
	}
	history, err := s.ledger.History(ctx, employeeRef)
	if err != nil {
		return nil, err
	}
	return &EligibilityResult{
		EmployeeID: employeeRef,
		Balances:   balances,
		History:    history,
	}, nil
}

func (s *appService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	in := core.PlaceOrderInput{
		OrderID:    req.OrderID,
		EmployeeID: req.EmployeeRef,
		VendorID:   req.VendorID,
		OrderType:  core.OrderTypeNormal,
	}
	if req.Replacement {
		in.OrderType = core.OrderTypeReplacement
		in.OriginalOrderID = req.OriginalOrderID
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, core.OrderLineInput{
			ProductID:  l.ProductID,
			CategoryID: l.CategoryID,
			Category:   l.Category,
			Quantity:   l.Quantity,
		})
	}

	res, err := s.orders.PlaceOrder(ctx, in, req.Actor)
	if err != nil {
		return nil, err
	}
	return &PlaceOrderResult{
		Order:       res.Order,
		Stage:       res.Order.Stage(s.flags).String(),
		Eligibility: res.Eligibility,
	}, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.orderResult(order), nil
}

func (s *appService) ApproveOrder(ctx context.Context, orderID, actor string) (*OrderResult, error) {
	order, err := s.orders.ApproveOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	return s.orderResult(order), nil
}

func (s *appService) DispatchOrder(ctx context.Context, orderID, actor string) (*ShipmentResult, error) {
	shipment, err := s.orders.DispatchOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{
		Shipment:  shipment,
		Status:    shipment.EffectiveStatus(),
		Delivered: shipment.IsDelivered(),
	}, nil
}

func (s *appService) DeliverShipment(ctx context.Context, shipmentID, actor string) (*OrderResult, error) {
	order, err := s.orders.MarkShipmentDelivered(ctx, shipmentID, actor)
	if err != nil {
		return nil, err
	}
	return s.orderResult(order), nil
}

func (s *appService) ApproveReturn(ctx context.Context, req ReturnApprovalRequest) (*core.IncrementResult, error) {
	return s.orders.ApproveReturn(ctx, core.ReturnApprovalInput{
		ReturnRequestID: req.ReturnRequestID,
		EmployeeID:      req.EmployeeRef,
		OrderID:         req.OrderID,
		ProductRef:      req.Product,
		Quantity:        req.Quantity,
	}, req.Actor)
}

func (s *appService) RaiseGRN(ctx context.Context, req RaiseGRNRequest) (*GRNResult, error) {
	in := core.RaiseGRNInput{PONumber: req.PONumber}
	for _, it := range req.Items {
		in.Items = append(in.Items, core.GRNItemInput{
			ProductID:    it.ProductID,
			OrderedQty:   it.OrderedQty,
			DeliveredQty: it.DeliveredQty,
			RejectedQty:  it.RejectedQty,
			Condition:    it.Condition,
		})
	}
	grn, err := s.procurement.RaiseGRN(ctx, in, req.Actor)
	if err != nil {
		return nil, err
	}
	return grnResult(grn), nil
}

func (s *appService) GetGRN(ctx context.Context, grnID string) (*GRNResult, error) {
	grn, err := s.procurement.GetGRN(ctx, grnID)
	if err != nil {
		return nil, err
	}
	return grnResult(grn), nil
}

func (s *appService) AcknowledgeGRN(ctx context.Context, grnID, actor string) (*GRNResult, error) {
	grn, err := s.procurement.AcknowledgeGRN(ctx, grnID, actor)
	if err != nil {
		return nil, err
	}
	return grnResult(grn), nil
}

func (s *appService) ApproveGRN(ctx context.Context, grnID, actor string) (*GRNResult, error) {
	grn, err := s.procurement.ApproveGRN(ctx, grnID, actor)
	if err != nil {
		return nil, err
	}
	return grnResult(grn), nil
}

func (s *appService) InvoiceEligibility(ctx context.Context, grnID string) (*core.InvoiceEligibility, error) {
	return s.procurement.InvoiceEligibility(ctx, grnID)
}

func (s *appService) RaiseInvoice(ctx context.Context, req RaiseInvoiceRequest) (*InvoiceResult, error) {
	inv, err := s.procurement.RaiseInvoice(ctx, req.GRNID, core.RaiseInvoiceInput{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
	}, req.Actor)
	if err != nil {
		return nil, err
	}
	return invoiceResult(inv), nil
}

func (s *appService) ApproveInvoice(ctx context.Context, invoiceID, actor string) (*InvoiceResult, error) {
	inv, err := s.procurement.ApproveInvoice(ctx, invoiceID, actor)
	if err != nil {
		return nil, err
	}
	return invoiceResult(inv), nil
}

func (s *appService) RejectInvoice(ctx context.Context, invoiceID, actor string) (*InvoiceResult, error) {
	inv, err := s.procurement.RejectInvoice(ctx, invoiceID, actor)
	if err != nil {
		return nil, err
	}
	return invoiceResult(inv), nil
}

func (s *appService) orderResult(order *core.Order) *OrderResult {
	return &OrderResult{Order: order, Stage: order.Stage(s.flags).String()}
}

func grnResult(grn *core.GRN) *GRNResult {
	return &GRNResult{
		GRN:      grn,
		State:    core.GRNState(grn),
		Approved: core.IsGRNApproved(grn),
	}
}

func invoiceResult(inv *core.Invoice) *InvoiceResult {
	return &InvoiceResult{Invoice: inv, Status: inv.EffectiveStatus()}
}
