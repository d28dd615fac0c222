package app

import "procurement-ledger/internal/core"

// PhaseResult is returned by MigrationPhase.
type PhaseResult struct {
	Flags         core.MigrationFlags `json:"flags"`
	Phase         core.MigrationPhase `json:"phase"`
	WriteMode     string              `json:"write_mode"`
	PreferUnified bool                `json:"prefer_unified"`
}

// EligibilityResult is returned by GetEligibility.
type EligibilityResult struct {
	EmployeeID string                  `json:"employee_id"`
	Balances   map[string]int          `json:"balances"`
	History    []core.EligibilityEvent `json:"history"`
}

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.Order `json:"order"`
	Stage string      `json:"stage"`
}

// PlaceOrderResult is returned by PlaceOrder.
type PlaceOrderResult struct {
	Order       *core.Order           `json:"order"`
	Stage       string                `json:"stage"`
	Eligibility *core.DecrementResult `json:"eligibility"`
}

// ShipmentResult is returned by DispatchOrder.
type ShipmentResult struct {
	Shipment  *core.Shipment `json:"shipment"`
	Status    string         `json:"status"`
	Delivered bool           `json:"delivered"`
}

// GRNResult is returned by GRN operations.
type GRNResult struct {
	GRN      *core.GRN `json:"grn"`
	State    string    `json:"state"`
	Approved bool      `json:"approved"`
}

// InvoiceResult is returned by invoice operations.
type InvoiceResult struct {
	Invoice *core.Invoice `json:"invoice"`
	Status  string        `json:"status"`
}
