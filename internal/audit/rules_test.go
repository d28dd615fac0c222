package audit

import (
	"testing"
	"time"

	"procurement-ledger/internal/core"
)

func s(v string) *string { return &v }

func order(pr string, mutate func(o *core.Order)) core.Order {
	o := core.Order{ID: "ord-" + pr, PRNumber: pr, OrderType: core.OrderTypeNormal}
	if mutate != nil {
		mutate(&o)
	}
	return o
}

func shipment(pr, status string, updated time.Time) core.Shipment {
	return core.Shipment{ShipmentID: "shp-" + pr + "-" + status, PRNumber: pr, ShipmentStatus: s(status), UpdatedAt: updated}
}

func TestClassify_ShippedWithoutShipmentRecord(t *testing.T) {
	c := &Candidate{Order: order("PR-000001", func(o *core.Order) {
		o.DispatchStatus = s(core.DispatchStatusShipped)
	})}

	f := Classify(c, DefaultRules)
	if f.RootCause != RootCauseMissingShipmentRecord || f.Severity != SeverityMajor {
		t.Errorf("expected MISSING_SHIPMENT_RECORD/major, got %s/%s", f.RootCause, f.Severity)
	}
	if f.ConversionType != ConversionDispatchStatus {
		t.Errorf("expected DISPATCH_STATUS, got %s", f.ConversionType)
	}
	if f.ShipmentID != nil || f.ShipmentDelivered {
		t.Errorf("expected no shipment on finding: %+v", f)
	}
}

func TestClassify_Rules(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		candidate Candidate
		cause     RootCause
		severity  Severity
	}{
		{
			name: "migration script wrote unified status",
			candidate: Candidate{Order: order("PR-1", func(o *core.Order) {
				o.PRStatus = s(core.PRStatusFullyDelivered)
				o.UnifiedPRStatusUpdatedBy = s("status-Migration-2025")
			})},
			cause: RootCauseDataMigrationArtifact, severity: SeverityMinor,
		},
		{
			name: "backfill script on unified_status",
			candidate: Candidate{Order: order("PR-2", func(o *core.Order) {
				o.DispatchStatus = s(core.DispatchStatusShipped)
				o.UnifiedStatusUpdatedBy = s("backfill SCRIPT")
			})},
			cause: RootCauseDataMigrationArtifact, severity: SeverityMinor,
		},
		{
			name: "legacy delivered by hand",
			candidate: Candidate{Order: order("PR-3", func(o *core.Order) {
				o.DeliveryStatus = s(core.DeliveryStatusDelivered)
				o.DispatchStatus = s(core.DispatchStatusShipped)
				o.UnifiedPRStatusUpdatedBy = s("company:acme")
			})},
			cause: RootCauseManualStatusOverride, severity: SeverityMinor,
		},
		{
			name: "unified only delivered, no shipment",
			candidate: Candidate{Order: order("PR-4", func(o *core.Order) {
				o.UnifiedPRStatus = s(core.UnifiedPRStatusFullyDelivered)
			})},
			cause: RootCauseUnifiedWithoutShipment, severity: SeverityMajor,
		},
		{
			name: "no shipment and no delivery signal",
			candidate: Candidate{
				Order: order("PR-4b", nil),
			},
			cause: RootCauseOrphanedPR, severity: SeverityMinor,
		},
		{
			name: "shipment still in transit",
			candidate: Candidate{
				Order: order("PR-5", func(o *core.Order) {
					o.PRStatus = s(core.PRStatusFullyDelivered)
				}),
				Shipments: []core.Shipment{shipment("PR-5", core.ShipmentStatusInTransit, now)},
			},
			cause: RootCauseShipmentNotDelivered, severity: SeverityMajor,
		},
		{
			name: "delivered shipment, unified lagging",
			candidate: Candidate{
				Order: order("PR-6", func(o *core.Order) {
					o.PRStatus = s(core.PRStatusFullyDelivered)
					o.UnifiedPRStatus = s(core.UnifiedPRStatusInShipment)
				}),
				Shipments: []core.Shipment{shipment("PR-6", core.ShipmentStatusDelivered, now)},
			},
			cause: RootCauseStatusMismatch, severity: SeverityCritical,
		},
		{
			name: "delivered shipment, unified consistent",
			candidate: Candidate{
				Order: order("PR-7", func(o *core.Order) {
					o.PRStatus = s(core.PRStatusFullyDelivered)
					o.UnifiedPRStatus = s(core.UnifiedPRStatusFullyDelivered)
				}),
				Shipments: []core.Shipment{shipment("PR-7", core.ShipmentStatusDelivered, now)},
			},
			cause: RootCauseUnknown, severity: SeverityMinor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(&tt.candidate, DefaultRules)
			if f.RootCause != tt.cause || f.Severity != tt.severity {
				t.Errorf("expected %s/%s, got %s/%s", tt.cause, tt.severity, f.RootCause, f.Severity)
			}
			if f.Recommendation == "" {
				t.Error("expected a recommendation")
			}
		})
	}
}

func TestCandidate_ShipmentPrefersDelivered(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Candidate{Shipments: []core.Shipment{
		shipment("PR-1", core.ShipmentStatusInTransit, old.Add(48*time.Hour)),
		shipment("PR-1", core.ShipmentStatusDelivered, old),
		shipment("PR-1", core.ShipmentStatusFailed, old.Add(24*time.Hour)),
	}}
	if got := c.Shipment(); got == nil || !got.IsDelivered() {
		t.Fatalf("expected the delivered shipment, got %+v", got)
	}

	c.Shipments = c.Shipments[:1]
	c.Shipments = append(c.Shipments, shipment("PR-1", core.ShipmentStatusFailed, old))
	if got := c.Shipment(); got == nil || val(got.ShipmentStatus) != core.ShipmentStatusInTransit {
		t.Errorf("expected the most recently updated shipment, got %+v", got)
	}

	if (&Candidate{}).Shipment() != nil {
		t.Error("expected nil for no shipments")
	}
}

func TestConversionTypePrecedence(t *testing.T) {
	tests := []struct {
		name string
		o    core.Order
		want ConversionType
	}{
		{"pr status wins", order("a", func(o *core.Order) {
			o.PRStatus = s(core.PRStatusFullyDelivered)
			o.DeliveryStatus = s(core.DeliveryStatusDelivered)
			o.DispatchStatus = s(core.DispatchStatusShipped)
		}), ConversionPRStatus},
		{"delivery over dispatch", order("b", func(o *core.Order) {
			o.DeliveryStatus = s(core.DeliveryStatusDelivered)
			o.DispatchStatus = s(core.DispatchStatusShipped)
		}), ConversionDeliveryStatus},
		{"dispatch", order("c", func(o *core.Order) {
			o.DispatchStatus = s(core.DispatchStatusShipped)
		}), ConversionDispatchStatus},
		{"unified only", order("d", func(o *core.Order) {
			o.UnifiedPRStatus = s(core.UnifiedPRStatusFullyDelivered)
		}), ConversionUnifiedOnly},
		{"none", order("e", nil), ConversionNone},
	}
	for _, tt := range tests {
		if got := conversionType(&tt.o); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestClassify_CustomRuleOrder(t *testing.T) {
	c := &Candidate{Order: order("PR-1", func(o *core.Order) {
		o.DispatchStatus = s(core.DispatchStatusShipped)
	})}
	rules := []Rule{
		{RootCauseOrphanedPR, SeverityMinor, func(*Candidate) bool { return true }},
		{RootCauseMissingShipmentRecord, SeverityMajor, func(*Candidate) bool { return true }},
	}
	if f := Classify(c, rules); f.RootCause != RootCauseOrphanedPR {
		t.Errorf("first matching rule must win, got %s", f.RootCause)
	}
	if f := Classify(c, nil); f.RootCause != RootCauseUnknown || f.Severity != SeverityMinor {
		t.Errorf("no rules: got %s/%s", f.RootCause, f.Severity)
	}
}
