package audit

import (
	"strings"

	"procurement-ledger/internal/core"
)

// Rule is one root-cause classification. Rules are evaluated in order and the first
// match wins.
type Rule struct {
	RootCause RootCause
	Severity  Severity
	Match     func(c *Candidate) bool
}

// DefaultRules is the classification order. The migration-artifact rule must stay
// ahead of every no-shipment rule.
var DefaultRules = []Rule{
	{RootCauseDataMigrationArtifact, SeverityMinor, func(c *Candidate) bool {
		return c.Shipment() == nil && writtenByMigration(&c.Order)
	}},
	{RootCauseManualStatusOverride, SeverityMinor, func(c *Candidate) bool {
		return c.Shipment() == nil && legacyDelivered(&c.Order)
	}},
	{RootCauseMissingShipmentRecord, SeverityMajor, func(c *Candidate) bool {
		return c.Shipment() == nil && legacyShipped(&c.Order)
	}},
	{RootCauseUnifiedWithoutShipment, SeverityMajor, func(c *Candidate) bool {
		return c.Shipment() == nil && val(c.Order.UnifiedPRStatus) == core.UnifiedPRStatusFullyDelivered
	}},
	{RootCauseOrphanedPR, SeverityMinor, func(c *Candidate) bool {
		return c.Shipment() == nil
	}},
	{RootCauseShipmentNotDelivered, SeverityMajor, func(c *Candidate) bool {
		s := c.Shipment()
		return s != nil && !s.IsDelivered()
	}},
	{RootCauseStatusMismatch, SeverityCritical, func(c *Candidate) bool {
		s := c.Shipment()
		return s != nil && s.IsDelivered() && val(c.Order.UnifiedPRStatus) != core.UnifiedPRStatusFullyDelivered
	}},
}

// Recommendations is the canned remediation advice per root cause.
var Recommendations = map[RootCause]string{
	RootCauseDataMigrationArtifact:  "Re-run the status migration for this PR with shipment validation enabled, then re-audit.",
	RootCauseManualStatusOverride:   "Confirm delivery with the company admin; attach proof of delivery or revert the legacy delivered fields.",
	RootCauseMissingShipmentRecord:  "Recreate the shipment record from the vendor's dispatch data or revert dispatch_status.",
	RootCauseUnifiedWithoutShipment: "Unified status claims delivery with no shipment on record; recreate the shipment or roll unified_pr_status back.",
	RootCauseOrphanedPR:             "Investigate the PR: it has no shipment and no legacy shipped or delivered signal.",
	RootCauseShipmentNotDelivered:   "Confirm delivery with the courier; revert the legacy delivered fields if the shipment is still in transit.",
	RootCauseStatusMismatch:         "Run status consistency repair to set unified_pr_status to FULLY_DELIVERED from the delivered shipment.",
	RootCauseUnknown:                "Manual investigation required.",
}

// Classify applies rules in order and builds the finding for c.
func Classify(c *Candidate, rules []Rule) Finding {
	cause, severity := RootCauseUnknown, SeverityMinor
	for _, r := range rules {
		if r.Match(c) {
			cause, severity = r.RootCause, r.Severity
			break
		}
	}

	o := &c.Order
	f := Finding{
		OrderID:                  o.ID,
		PRNumber:                 o.PRNumber,
		OrderType:                string(o.OrderType),
		Status:                   o.Status,
		PRStatus:                 o.PRStatus,
		DispatchStatus:           o.DispatchStatus,
		DeliveryStatus:           o.DeliveryStatus,
		UnifiedStatus:            o.UnifiedStatus,
		UnifiedPRStatus:          o.UnifiedPRStatus,
		UnifiedPRStatusUpdatedBy: o.UnifiedPRStatusUpdatedBy,
		RootCause:                cause,
		Severity:                 severity,
		ConversionType:           conversionType(o),
		Recommendation:           Recommendations[cause],
	}
	if s := c.Shipment(); s != nil {
		id, status := s.ShipmentID, s.EffectiveStatus()
		f.ShipmentID = &id
		f.ShipmentStatus = &status
		f.ShipmentDelivered = s.IsDelivered()
	}
	return f
}

func conversionType(o *core.Order) ConversionType {
	switch {
	case val(o.PRStatus) == core.PRStatusFullyDelivered:
		return ConversionPRStatus
	case val(o.DeliveryStatus) == core.DeliveryStatusDelivered:
		return ConversionDeliveryStatus
	case val(o.DispatchStatus) == core.DispatchStatusShipped:
		return ConversionDispatchStatus
	case val(o.UnifiedPRStatus) == core.UnifiedPRStatusFullyDelivered:
		return ConversionUnifiedOnly
	}
	return ConversionNone
}

func legacyDelivered(o *core.Order) bool {
	return val(o.PRStatus) == core.PRStatusFullyDelivered || val(o.DeliveryStatus) == core.DeliveryStatusDelivered
}

func legacyShipped(o *core.Order) bool {
	return val(o.DispatchStatus) == core.DispatchStatusShipped
}

func writtenByMigration(o *core.Order) bool {
	for _, by := range []*string{o.UnifiedPRStatusUpdatedBy, o.UnifiedStatusUpdatedBy} {
		actor := strings.ToLower(val(by))
		if strings.Contains(actor, "migration") || strings.Contains(actor, "script") {
			return true
		}
	}
	return false
}

func val(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
