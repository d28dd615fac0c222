package core

import "errors"

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrGRNNotFound      = errors.New("grn not found")
	ErrInvoiceNotFound  = errors.New("invoice not found")

	// ErrInvalidTransition is returned when a lifecycle writer is asked to move an
	// entity to a state its state machine does not allow from the current one.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvoiceNotAllowed is returned when an invoice is raised for a GRN that is not
	// approved or already has a live (non-rejected) invoice.
	ErrInvoiceNotAllowed = errors.New("invoice cannot be raised for grn")
)
