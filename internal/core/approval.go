package core

import "strings"

// IsGRNApproved reports whether a GRN may be invoiced. Any one of the four fields
// below counts as approval; every consumer deciding "can this GRN be invoiced" must
// use this predicate so the badge and the business rule never disagree.
func IsGRNApproved(grn *GRN) bool {
	if grn == nil {
		return false
	}
	return deref(grn.GRNStatus) == GRNStatusApproved ||
		deref(grn.Status) == GRNStatusApproved ||
		grn.GRNAcknowledgedByCompany ||
		deref(grn.Status) == GRNStatusAcknowledged
}

// ResolveGRNStatus collapses the legacy approval fields into the single value stored
// in resolved_status at write time.
func ResolveGRNStatus(grn *GRN) string {
	if IsGRNApproved(grn) {
		return GRNStatusApproved
	}
	return GRNStatusRaised
}

// HasNonRejectedInvoice reports whether any invoice references grnID and is still
// live. REJECTED invoices do not block a corrected invoice for the same GRN.
func HasNonRejectedInvoice(grnID string, invoices []Invoice) bool {
	want := normalizeID(grnID)
	for i := range invoices {
		if normalizeID(invoices[i].GRNID) != want {
			continue
		}
		if invoices[i].EffectiveStatus() != InvoiceStatusRejected {
			return true
		}
	}
	return false
}

// CanRaiseInvoice is the combined gate for the "raise invoice" action.
func CanRaiseInvoice(grn *GRN, invoices []Invoice) bool {
	return IsGRNApproved(grn) && !HasNonRejectedInvoice(grn.ID, invoices)
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
