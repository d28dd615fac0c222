// Package audit implements the read-only cascade integrity audit: it finds orders
// whose legacy status claims shipment or delivery while the unified status or the
// shipment records disagree, classifies a root cause for each, and writes a report.
package audit

import (
	"time"

	"procurement-ledger/internal/core"
)

// RootCause classifies why an order's statuses diverge.
type RootCause string

const (
	RootCauseDataMigrationArtifact  RootCause = "DATA_MIGRATION_ARTIFACT"
	RootCauseManualStatusOverride   RootCause = "MANUAL_STATUS_OVERRIDE"
	RootCauseMissingShipmentRecord  RootCause = "MISSING_SHIPMENT_RECORD"
	RootCauseUnifiedWithoutShipment RootCause = "UNIFIED_DELIVERED_WITHOUT_SHIPMENT"
	RootCauseOrphanedPR             RootCause = "ORPHANED_PR"
	RootCauseShipmentNotDelivered   RootCause = "SHIPMENT_NOT_DELIVERED"
	RootCauseStatusMismatch         RootCause = "STATUS_MISMATCH"
	RootCauseUnknown                RootCause = "UNKNOWN"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// ConversionType names the legacy field that put the order on the candidate list.
type ConversionType string

const (
	ConversionPRStatus       ConversionType = "PR_STATUS"
	ConversionDeliveryStatus ConversionType = "DELIVERY_STATUS"
	ConversionDispatchStatus ConversionType = "DISPATCH_STATUS"
	ConversionUnifiedOnly    ConversionType = "UNIFIED_ONLY"
	ConversionNone           ConversionType = "NONE"
)

// Candidate is an order under audit together with every shipment sharing its PR number.
type Candidate struct {
	Order     core.Order
	Shipments []core.Shipment
}

// Shipment returns the shipment that best represents the order: a delivered one if
// any exists, otherwise the most recently updated.
func (c *Candidate) Shipment() *core.Shipment {
	var best *core.Shipment
	for i := range c.Shipments {
		s := &c.Shipments[i]
		if s.IsDelivered() {
			return s
		}
		if best == nil || s.UpdatedAt.After(best.UpdatedAt) {
			best = s
		}
	}
	return best
}

// Finding is one classified record in the report.
type Finding struct {
	OrderID        string  `json:"order_id"`
	PRNumber       string  `json:"pr_number"`
	OrderType      string  `json:"order_type"`
	Status         *string `json:"status"`
	PRStatus       *string `json:"pr_status"`
	DispatchStatus *string `json:"dispatch_status"`
	DeliveryStatus *string `json:"delivery_status"`

	UnifiedStatus            *string `json:"unified_status"`
	UnifiedPRStatus          *string `json:"unified_pr_status"`
	UnifiedPRStatusUpdatedBy *string `json:"unified_pr_status_updated_by"`

	ShipmentID        *string `json:"shipment_id"`
	ShipmentStatus    *string `json:"shipment_status"`
	ShipmentDelivered bool    `json:"shipment_delivered"`

	RootCause      RootCause      `json:"root_cause"`
	Severity       Severity       `json:"severity"`
	ConversionType ConversionType `json:"conversion_type"`
	Recommendation string         `json:"recommendation"`
}

// Summary groups findings.
type Summary struct {
	TotalCandidates  int                    `json:"total_candidates"`
	ByRootCause      map[RootCause]int      `json:"by_root_cause"`
	BySeverity       map[Severity]int       `json:"by_severity"`
	ByConversionType map[ConversionType]int `json:"by_conversion_type"`
}

// Report is the audit artifact.
type Report struct {
	CorrelationID   string               `json:"correlation_id"`
	GeneratedAt     time.Time            `json:"generated_at"`
	DryRun          bool                 `json:"dry_run"`
	MigrationPhase  core.MigrationPhase  `json:"migration_phase"`
	Summary         Summary              `json:"summary"`
	Recommendations map[RootCause]string `json:"recommendations"`
	Records         []Finding            `json:"records"`
}
