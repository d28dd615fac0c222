package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes regular orders from replacements of an earlier order.
type OrderType string

const (
	OrderTypeNormal      OrderType = "NORMAL"
	OrderTypeReplacement OrderType = "REPLACEMENT"
)

// Legacy order `status` values.
const (
	OrderStatusAwaitingApproval   = "Awaiting approval"
	OrderStatusAwaitingFulfilment = "Awaiting fulfilment"
	OrderStatusDispatched         = "Dispatched"
	OrderStatusDelivered          = "Delivered"
)

// Legacy `pr_status`, `dispatch_status` and `delivery_status` values.
const (
	PRStatusPendingApproval = "PENDING_APPROVAL"
	PRStatusApproved        = "APPROVED"
	PRStatusInShipment      = "IN_SHIPMENT"
	PRStatusFullyDelivered  = "FULLY_DELIVERED"

	DispatchStatusAwaiting = "AWAITING_DISPATCH"
	DispatchStatusShipped  = "SHIPPED"

	DeliveryStatusNotDelivered = "NOT_DELIVERED"
	DeliveryStatusDelivered    = "DELIVERED"
)

// Unified `unified_status` and `unified_pr_status` values.
const (
	UnifiedStatusPendingApproval    = "PENDING_APPROVAL"
	UnifiedStatusAwaitingFulfilment = "AWAITING_FULFILMENT"
	UnifiedStatusDispatched         = "DISPATCHED"
	UnifiedStatusDelivered          = "DELIVERED"

	UnifiedPRStatusPendingApproval = "PENDING_APPROVAL"
	UnifiedPRStatusApproved        = "APPROVED"
	UnifiedPRStatusInShipment      = "IN_SHIPMENT"
	UnifiedPRStatusFullyDelivered  = "FULLY_DELIVERED"
)

// Shipment status values, shared by `shipment_status` and `unified_shipment_status`.
const (
	ShipmentStatusCreated   = "CREATED"
	ShipmentStatusInTransit = "IN_TRANSIT"
	ShipmentStatusDelivered = "DELIVERED"
	ShipmentStatusFailed    = "FAILED"
)

// GRN status values. Legacy `status` uses CREATED where `grn_status` uses RAISED.
const (
	GRNStatusRaised       = "RAISED"
	GRNStatusAcknowledged = "ACKNOWLEDGED"
	GRNStatusApproved     = "APPROVED"
	GRNLegacyCreated      = "CREATED"
)

// Invoice status values.
const (
	InvoiceStatusRaised   = "RAISED"
	InvoiceStatusApproved = "APPROVED"
	InvoiceStatusRejected = "REJECTED"
)

// OrderStage is the canonical order lifecycle position. Writers move an order
// between stages and project the stage onto legacy and/or unified fields.
//
//	AwaitingApproval → AwaitingFulfilment → Dispatched → Delivered
type OrderStage int

const (
	StageUnknown OrderStage = iota
	StageAwaitingApproval
	StageAwaitingFulfilment
	StageDispatched
	StageDelivered
)

func (s OrderStage) String() string {
	switch s {
	case StageAwaitingApproval:
		return "AWAITING_APPROVAL"
	case StageAwaitingFulfilment:
		return "AWAITING_FULFILMENT"
	case StageDispatched:
		return "DISPATCHED"
	case StageDelivered:
		return "DELIVERED"
	default:
		return "UNKNOWN"
	}
}

// CanAdvanceTo reports whether next is the single legal successor of s.
func (s OrderStage) CanAdvanceTo(next OrderStage) bool {
	return s != StageUnknown && s != StageDelivered && next == s+1
}

type legacyOrderFields struct {
	status, prStatus, dispatchStatus, deliveryStatus string
}

func (s OrderStage) legacy() legacyOrderFields {
	switch s {
	case StageAwaitingApproval:
		return legacyOrderFields{OrderStatusAwaitingApproval, PRStatusPendingApproval, DispatchStatusAwaiting, DeliveryStatusNotDelivered}
	case StageAwaitingFulfilment:
		return legacyOrderFields{OrderStatusAwaitingFulfilment, PRStatusApproved, DispatchStatusAwaiting, DeliveryStatusNotDelivered}
	case StageDispatched:
		return legacyOrderFields{OrderStatusDispatched, PRStatusInShipment, DispatchStatusShipped, DeliveryStatusNotDelivered}
	case StageDelivered:
		return legacyOrderFields{OrderStatusDelivered, PRStatusFullyDelivered, DispatchStatusShipped, DeliveryStatusDelivered}
	}
	return legacyOrderFields{}
}

func (s OrderStage) unified() (status, prStatus string) {
	switch s {
	case StageAwaitingApproval:
		return UnifiedStatusPendingApproval, UnifiedPRStatusPendingApproval
	case StageAwaitingFulfilment:
		return UnifiedStatusAwaitingFulfilment, UnifiedPRStatusApproved
	case StageDispatched:
		return UnifiedStatusDispatched, UnifiedPRStatusInShipment
	case StageDelivered:
		return UnifiedStatusDelivered, UnifiedPRStatusFullyDelivered
	}
	return "", ""
}

func stageFromLegacyStatus(status string) OrderStage {
	switch status {
	case OrderStatusAwaitingApproval:
		return StageAwaitingApproval
	case OrderStatusAwaitingFulfilment:
		return StageAwaitingFulfilment
	case OrderStatusDispatched:
		return StageDispatched
	case OrderStatusDelivered:
		return StageDelivered
	}
	return StageUnknown
}

func stageFromUnifiedStatus(status string) OrderStage {
	switch status {
	case UnifiedStatusPendingApproval:
		return StageAwaitingApproval
	case UnifiedStatusAwaitingFulfilment:
		return StageAwaitingFulfilment
	case UnifiedStatusDispatched:
		return StageDispatched
	case UnifiedStatusDelivered:
		return StageDelivered
	}
	return StageUnknown
}

// Order is a purchase request (PR) raised for an employee. Legacy and unified status
// fields are nullable and mutated independently by different writers.
type Order struct {
	ID              string      `json:"id"`
	PRNumber        string      `json:"pr_number"`
	OrderType       OrderType   `json:"order_type"`
	CompanyID       string      `json:"company_id"`
	VendorID        *string     `json:"vendor_id,omitempty"`
	EmployeeID      string      `json:"employee_id"`
	OriginalOrderID *string     `json:"original_order_id,omitempty"`
	Lines           []OrderLine `json:"lines,omitempty"`

	// Legacy representation
	Status         *string `json:"status,omitempty"`
	PRStatus       *string `json:"pr_status,omitempty"`
	DispatchStatus *string `json:"dispatch_status,omitempty"`
	DeliveryStatus *string `json:"delivery_status,omitempty"`

	// Unified representation
	UnifiedStatus            *string    `json:"unified_status,omitempty"`
	UnifiedPRStatus          *string    `json:"unified_pr_status,omitempty"`
	UnifiedStatusUpdatedAt   *time.Time `json:"unified_status_updated_at,omitempty"`
	UnifiedStatusUpdatedBy   *string    `json:"unified_status_updated_by,omitempty"`
	UnifiedPRStatusUpdatedAt *time.Time `json:"unified_pr_status_updated_at,omitempty"`
	UnifiedPRStatusUpdatedBy *string    `json:"unified_pr_status_updated_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// OrderLine is one product line on an order.
type OrderLine struct {
	LineNo    int    `json:"line_no"`
	ProductID string `json:"product_id"`
	Category  string `json:"category,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Stage returns the order's lifecycle stage as seen by a reader in the given phase.
// Readers that prefer unified fields fall back to legacy ones when unified is absent,
// and vice versa.
func (o *Order) Stage(flags MigrationFlags) OrderStage {
	legacy := stageFromLegacyStatus(deref(o.Status))
	unified := stageFromUnifiedStatus(deref(o.UnifiedStatus))
	if flags.PreferUnified() {
		if unified != StageUnknown {
			return unified
		}
		return legacy
	}
	if legacy != StageUnknown {
		return legacy
	}
	return unified
}

// ApplyStage writes the stage onto the order fields selected by mode. Unified writes
// stamp the updated_at/by audit fields.
func (o *Order) ApplyStage(stage OrderStage, mode WriteMode, actor string, now time.Time) {
	if mode.WritesLegacy() {
		l := stage.legacy()
		o.Status = ptr(l.status)
		o.PRStatus = ptr(l.prStatus)
		o.DispatchStatus = ptr(l.dispatchStatus)
		o.DeliveryStatus = ptr(l.deliveryStatus)
	}
	if mode.WritesUnified() {
		status, prStatus := stage.unified()
		o.UnifiedStatus = ptr(status)
		o.UnifiedPRStatus = ptr(prStatus)
		o.UnifiedStatusUpdatedAt = &now
		o.UnifiedStatusUpdatedBy = ptr(actor)
		o.UnifiedPRStatusUpdatedAt = &now
		o.UnifiedPRStatusUpdatedBy = ptr(actor)
	}
}

// Shipment is created when a vendor dispatches an order. PRNumber is a logical
// reference to Order.PRNumber that the database does not enforce.
type Shipment struct {
	ShipmentID            string    `json:"shipment_id"`
	PRNumber              string    `json:"pr_number"`
	ShipmentStatus        *string   `json:"shipment_status,omitempty"`
	CourierStatus         *string   `json:"courier_status,omitempty"`
	UnifiedShipmentStatus *string   `json:"unified_shipment_status,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// IsDelivered reports whether any of the shipment's status fields holds the
// delivered terminal value.
func (s *Shipment) IsDelivered() bool {
	for _, v := range []*string{s.UnifiedShipmentStatus, s.ShipmentStatus, s.CourierStatus} {
		if v != nil && strings.EqualFold(strings.TrimSpace(*v), ShipmentStatusDelivered) {
			return true
		}
	}
	return false
}

// EffectiveStatus returns the unified shipment status when present, else the legacy one.
func (s *Shipment) EffectiveStatus() string {
	if s.UnifiedShipmentStatus != nil && *s.UnifiedShipmentStatus != "" {
		return *s.UnifiedShipmentStatus
	}
	return deref(s.ShipmentStatus)
}

// GRN is a vendor-raised goods receipt note. "Approved" is spread over several
// legacy fields; see IsGRNApproved.
type GRN struct {
	ID                       string    `json:"id"`
	GRNNumber                string    `json:"grn_number"`
	PONumber                 string    `json:"po_number"`
	GRNStatus                *string   `json:"grn_status,omitempty"`
	Status                   *string   `json:"status,omitempty"`
	GRNAcknowledgedByCompany bool      `json:"grn_acknowledged_by_company"`
	ResolvedStatus           string    `json:"resolved_status"`
	Items                    []GRNItem `json:"items,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
}

// GRNItem is one received line on a GRN.
type GRNItem struct {
	LineNo       int    `json:"line_no"`
	ProductID    string `json:"product_id"`
	OrderedQty   int    `json:"ordered_qty"`
	DeliveredQty int    `json:"delivered_qty"`
	RejectedQty  int    `json:"rejected_qty"`
	Condition    string `json:"condition,omitempty"`
}

// Invoice is raised by a vendor against an approved GRN.
type Invoice struct {
	InvoiceID            string          `json:"invoice_id"`
	GRNID                string          `json:"grn_id"`
	InvoiceStatus        *string         `json:"invoice_status,omitempty"`
	UnifiedInvoiceStatus *string         `json:"unified_invoice_status,omitempty"`
	InvoiceAmount        decimal.Decimal `json:"invoice_amount"`
	CreatedAt            time.Time       `json:"created_at"`
}

// EffectiveStatus is unified_invoice_status when set, else invoice_status.
func (i *Invoice) EffectiveStatus() string {
	if i.UnifiedInvoiceStatus != nil {
		return *i.UnifiedInvoiceStatus
	}
	return deref(i.InvoiceStatus)
}

// ApplyStatus writes an invoice status onto the fields selected by mode.
// A legacy-only write clears unified_invoice_status, otherwise a value left
// from an earlier dual-write phase would shadow the new legacy status.
func (i *Invoice) ApplyStatus(status string, mode WriteMode) {
	if mode.WritesLegacy() {
		i.InvoiceStatus = ptr(status)
	}
	if mode.WritesUnified() {
		i.UnifiedInvoiceStatus = ptr(status)
	} else {
		i.UnifiedInvoiceStatus = nil
	}
}

// CanTransitionInvoice allows RAISED → APPROVED and RAISED → REJECTED only.
func CanTransitionInvoice(from, to string) bool {
	return from == InvoiceStatusRaised && (to == InvoiceStatusApproved || to == InvoiceStatusRejected)
}

func ptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
