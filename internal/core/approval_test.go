package core_test

import (
	"testing"

	"procurement-ledger/internal/core"
)

func TestIsGRNApproved(t *testing.T) {
	tests := []struct {
		name string
		grn  *core.GRN
		want bool
	}{
		{"nil", nil, false},
		{"nothing set", &core.GRN{ID: "g1"}, false},
		{"legacy created only", &core.GRN{ID: "g1", Status: strPtr(core.GRNLegacyCreated)}, false},
		{"raised", &core.GRN{ID: "g1", GRNStatus: strPtr(core.GRNStatusRaised), Status: strPtr(core.GRNLegacyCreated)}, false},
		{"grn_status approved", &core.GRN{ID: "g1", GRNStatus: strPtr(core.GRNStatusApproved)}, true},
		{"legacy status approved", &core.GRN{ID: "g1", Status: strPtr(core.GRNStatusApproved)}, true},
		{"acknowledged flag", &core.GRN{ID: "g1", GRNAcknowledgedByCompany: true}, true},
		{"legacy status acknowledged", &core.GRN{ID: "g1", Status: strPtr(core.GRNStatusAcknowledged)}, true},
		{"grn_status acknowledged without flag", &core.GRN{ID: "g1", GRNStatus: strPtr(core.GRNStatusAcknowledged)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.IsGRNApproved(tt.grn); got != tt.want {
				t.Errorf("IsGRNApproved = %t, want %t", got, tt.want)
			}
			if tt.grn == nil {
				return
			}
			wantResolved := core.GRNStatusRaised
			if tt.want {
				wantResolved = core.GRNStatusApproved
			}
			if got := core.ResolveGRNStatus(tt.grn); got != wantResolved {
				t.Errorf("ResolveGRNStatus = %s, want %s", got, wantResolved)
			}
		})
	}
}

func invoice(id, grnID, legacy string, unified *string) core.Invoice {
	inv := core.Invoice{InvoiceID: id, GRNID: grnID, UnifiedInvoiceStatus: unified}
	if legacy != "" {
		inv.InvoiceStatus = strPtr(legacy)
	}
	return inv
}

func TestHasNonRejectedInvoice(t *testing.T) {
	tests := []struct {
		name     string
		invoices []core.Invoice
		want     bool
	}{
		{"none", nil, false},
		{"rejected only", []core.Invoice{invoice("i1", "g1", core.InvoiceStatusRejected, nil)}, false},
		{"raised", []core.Invoice{invoice("i1", "g1", core.InvoiceStatusRaised, nil)}, true},
		{"approved", []core.Invoice{invoice("i1", "g1", core.InvoiceStatusApproved, nil)}, true},
		{"rejected then raised", []core.Invoice{
			invoice("i1", "g1", core.InvoiceStatusRejected, nil),
			invoice("i2", "g1", core.InvoiceStatusRaised, nil),
		}, true},
		{"other grn", []core.Invoice{invoice("i1", "g2", core.InvoiceStatusRaised, nil)}, false},
		{"padded grn id", []core.Invoice{invoice("i1", " g1 ", core.InvoiceStatusRaised, nil)}, true},
		{"unified status wins", []core.Invoice{
			invoice("i1", "g1", core.InvoiceStatusRaised, strPtr(core.InvoiceStatusRejected)),
		}, false},
		{"unified only", []core.Invoice{invoice("i1", "g1", "", strPtr(core.InvoiceStatusRaised))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.HasNonRejectedInvoice("g1", tt.invoices); got != tt.want {
				t.Errorf("HasNonRejectedInvoice = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestCanRaiseInvoice(t *testing.T) {
	approved := &core.GRN{ID: "g1", GRNStatus: strPtr(core.GRNStatusApproved)}
	raised := &core.GRN{ID: "g1", GRNStatus: strPtr(core.GRNStatusRaised)}
	rejected := []core.Invoice{invoice("i1", "g1", core.InvoiceStatusRejected, nil)}
	live := []core.Invoice{invoice("i1", "g1", core.InvoiceStatusRaised, nil)}

	if !core.CanRaiseInvoice(approved, nil) {
		t.Error("approved GRN without invoices should be invoiceable")
	}
	if !core.CanRaiseInvoice(approved, rejected) {
		t.Error("approved GRN whose only invoice was rejected should be invoiceable")
	}
	if core.CanRaiseInvoice(approved, live) {
		t.Error("approved GRN with a live invoice should not be invoiceable")
	}
	if core.CanRaiseInvoice(raised, nil) {
		t.Error("unapproved GRN should not be invoiceable")
	}
}

func TestCanTransitionInvoice(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{core.InvoiceStatusRaised, core.InvoiceStatusApproved, true},
		{core.InvoiceStatusRaised, core.InvoiceStatusRejected, true},
		{core.InvoiceStatusApproved, core.InvoiceStatusRejected, false},
		{core.InvoiceStatusRejected, core.InvoiceStatusApproved, false},
		{core.InvoiceStatusRaised, core.InvoiceStatusRaised, false},
	}
	for _, tt := range tests {
		if got := core.CanTransitionInvoice(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransitionInvoice(%s, %s) = %t, want %t", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestGRNStateAndTransitions(t *testing.T) {
	tests := []struct {
		name string
		grn  *core.GRN
		want string
	}{
		{"raised", &core.GRN{GRNStatus: strPtr(core.GRNStatusRaised), Status: strPtr(core.GRNLegacyCreated)}, core.GRNStatusRaised},
		{"acknowledged flag", &core.GRN{GRNStatus: strPtr(core.GRNStatusRaised), GRNAcknowledgedByCompany: true}, core.GRNStatusAcknowledged},
		{"legacy approved", &core.GRN{Status: strPtr(core.GRNStatusApproved), GRNAcknowledgedByCompany: true}, core.GRNStatusApproved},
	}
	for _, tt := range tests {
		if got := core.GRNState(tt.grn); got != tt.want {
			t.Errorf("%s: GRNState = %s, want %s", tt.name, got, tt.want)
		}
	}

	if !core.CanTransitionGRN(core.GRNStatusRaised, core.GRNStatusAcknowledged) ||
		!core.CanTransitionGRN(core.GRNStatusRaised, core.GRNStatusApproved) {
		t.Error("RAISED should move to ACKNOWLEDGED or APPROVED")
	}
	if core.CanTransitionGRN(core.GRNStatusAcknowledged, core.GRNStatusApproved) ||
		core.CanTransitionGRN(core.GRNStatusApproved, core.GRNStatusRaised) {
		t.Error("only RAISED may transition")
	}
}
