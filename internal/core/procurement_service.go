package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// GRNItemInput is one received line on a new GRN.
type GRNItemInput struct {
	ProductID    string `json:"product_id" validate:"required"`
	OrderedQty   int    `json:"ordered_qty" validate:"gte=0"`
	DeliveredQty int    `json:"delivered_qty" validate:"gte=0"`
	RejectedQty  int    `json:"rejected_qty" validate:"gte=0,ltefield=DeliveredQty"`
	Condition    string `json:"condition"`
}

// RaiseGRNInput describes a GRN raised by a vendor against a PR.
type RaiseGRNInput struct {
	PONumber string         `json:"po_number" validate:"required"`
	Items    []GRNItemInput `json:"items" validate:"required,min=1,dive"`
}

// RaiseInvoiceInput describes an invoice raised against a GRN.
type RaiseInvoiceInput struct {
	InvoiceID string          `json:"invoice_id" validate:"omitempty,max=64"`
	Amount    decimal.Decimal `json:"invoice_amount"`
}

// InvoiceEligibility explains the "raise invoice" gate for one GRN.
type InvoiceEligibility struct {
	GRNID            string `json:"grn_id"`
	ResolvedStatus   string `json:"resolved_status"`
	Approved         bool   `json:"approved"`
	HasActiveInvoice bool   `json:"has_active_invoice"`
	CanRaiseInvoice  bool   `json:"can_raise_invoice"`
}

// ProcurementService is the vendor/company side of the cascade: GRNs and invoices.
type ProcurementService interface {
	RaiseGRN(ctx context.Context, in RaiseGRNInput, actor string) (*GRN, error)
	AcknowledgeGRN(ctx context.Context, grnID, actor string) (*GRN, error)
	ApproveGRN(ctx context.Context, grnID, actor string) (*GRN, error)
	GetGRN(ctx context.Context, grnID string) (*GRN, error)

	InvoiceEligibility(ctx context.Context, grnID string) (*InvoiceEligibility, error)
	// RaiseInvoice fails with ErrInvoiceNotAllowed unless CanRaiseInvoice holds.
	RaiseInvoice(ctx context.Context, grnID string, in RaiseInvoiceInput, actor string) (*Invoice, error)
	ApproveInvoice(ctx context.Context, invoiceID, actor string) (*Invoice, error)
	RejectInvoice(ctx context.Context, invoiceID, actor string) (*Invoice, error)
}

type procurementService struct {
	pool     *pgxpool.Pool
	flags    MigrationFlags
	validate *validator.Validate
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewProcurementService(pool *pgxpool.Pool, flags MigrationFlags, logger logrus.FieldLogger) ProcurementService {
	return &procurementService{
		pool:     pool,
		flags:    flags,
		validate: validator.New(),
		logger:   logger.WithField("component", "ProcurementService"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GRNState collapses the GRN's status fields into RAISED, ACKNOWLEDGED or APPROVED.
func GRNState(grn *GRN) string {
	switch {
	case deref(grn.GRNStatus) == GRNStatusApproved, deref(grn.Status) == GRNStatusApproved:
		return GRNStatusApproved
	case deref(grn.GRNStatus) == GRNStatusAcknowledged, deref(grn.Status) == GRNStatusAcknowledged, grn.GRNAcknowledgedByCompany:
		return GRNStatusAcknowledged
	}
	return GRNStatusRaised
}

// CanTransitionGRN allows RAISED → ACKNOWLEDGED and RAISED → APPROVED only.
func CanTransitionGRN(from, to string) bool {
	return from == GRNStatusRaised && (to == GRNStatusAcknowledged || to == GRNStatusApproved)
}

func (s *procurementService) RaiseGRN(ctx context.Context, in RaiseGRNInput, actor string) (*GRN, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid grn: %w", err)
	}

	grn := &GRN{
		ID:        uuid.NewString(),
		PONumber:  in.PONumber,
		CreatedAt: s.now(),
	}
	mode := s.flags.WriteMode()
	if mode.WritesLegacy() {
		grn.Status = ptr(GRNLegacyCreated)
	}
	if mode.WritesUnified() {
		grn.GRNStatus = ptr(GRNStatusRaised)
	}
	grn.ResolvedStatus = ResolveGRNStatus(grn)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM orders WHERE pr_number = $1)", in.PONumber).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check purchase request: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("purchase request %s: %w", in.PONumber, ErrOrderNotFound)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO grns (id, grn_number, po_number, grn_status, status, grn_acknowledged_by_company, resolved_status, created_by, created_at, updated_at)
		VALUES ($1, 'GRN-' || lpad(nextval('grn_number_seq')::text, 6, '0'), $2, $3, $4, false, $5, $6, $7, $7)
		RETURNING grn_number`,
		grn.ID, grn.PONumber, grn.GRNStatus, grn.Status, grn.ResolvedStatus, actor, grn.CreatedAt,
	).Scan(&grn.GRNNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to insert grn: %w", err)
	}

	for i, item := range in.Items {
		line := GRNItem{
			LineNo:       i + 1,
			ProductID:    item.ProductID,
			OrderedQty:   item.OrderedQty,
			DeliveredQty: item.DeliveredQty,
			RejectedQty:  item.RejectedQty,
			Condition:    item.Condition,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO grn_items (grn_id, line_no, product_id, ordered_qty, delivered_qty, rejected_qty, condition)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			grn.ID, line.LineNo, line.ProductID, line.OrderedQty, line.DeliveredQty, line.RejectedQty, line.Condition,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert grn item %d: %w", i+1, err)
		}
		grn.Items = append(grn.Items, line)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit grn: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"grn_id":     grn.ID,
		"grn_number": grn.GRNNumber,
		"po_number":  grn.PONumber,
	}).Info("grn raised")
	return grn, nil
}

func (s *procurementService) AcknowledgeGRN(ctx context.Context, grnID, actor string) (*GRN, error) {
	return s.transitionGRN(ctx, grnID, GRNStatusAcknowledged, actor)
}

func (s *procurementService) ApproveGRN(ctx context.Context, grnID, actor string) (*GRN, error) {
	return s.transitionGRN(ctx, grnID, GRNStatusApproved, actor)
}

// transitionGRN moves a RAISED GRN to target. Acknowledgement always sets the
// company flag so the approval predicate holds in every phase; resolved_status is
// recomputed on every write.
func (s *procurementService) transitionGRN(ctx context.Context, grnID, target, actor string) (*GRN, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	grn, err := fetchGRN(ctx, tx, grnID, true)
	if err != nil {
		return nil, err
	}
	from := GRNState(grn)
	if !CanTransitionGRN(from, target) {
		return nil, fmt.Errorf("grn %s: %s -> %s: %w", grnID, from, target, ErrInvalidTransition)
	}

	mode := s.flags.WriteMode()
	if mode.WritesLegacy() {
		grn.Status = ptr(target)
	}
	if mode.WritesUnified() {
		grn.GRNStatus = ptr(target)
	}
	if target == GRNStatusAcknowledged {
		grn.GRNAcknowledgedByCompany = true
	}
	grn.ResolvedStatus = ResolveGRNStatus(grn)

	_, err = tx.Exec(ctx, `
		UPDATE grns
		SET grn_status = $2, status = $3, grn_acknowledged_by_company = $4, resolved_status = $5,
		    updated_by = $6, updated_at = $7
		WHERE id = $1`,
		grnID, grn.GRNStatus, grn.Status, grn.GRNAcknowledgedByCompany, grn.ResolvedStatus, actor, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update grn %s: %w", grnID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit grn transition: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"grn_id":          grnID,
		"from":            from,
		"to":              target,
		"resolved_status": grn.ResolvedStatus,
	}).Info("grn transitioned")
	return s.GetGRN(ctx, grnID)
}

func (s *procurementService) GetGRN(ctx context.Context, grnID string) (*GRN, error) {
	grn, err := fetchGRN(ctx, s.pool, grnID, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT line_no, product_id, ordered_qty, delivered_qty, rejected_qty, condition
		FROM grn_items
		WHERE grn_id = $1
		ORDER BY line_no`,
		grnID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query grn items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it GRNItem
		if err := rows.Scan(&it.LineNo, &it.ProductID, &it.OrderedQty, &it.DeliveredQty, &it.RejectedQty, &it.Condition); err != nil {
			return nil, fmt.Errorf("failed to scan grn item: %w", err)
		}
		grn.Items = append(grn.Items, it)
	}
	return grn, rows.Err()
}

func (s *procurementService) InvoiceEligibility(ctx context.Context, grnID string) (*InvoiceEligibility, error) {
	grn, err := fetchGRN(ctx, s.pool, grnID, false)
	if err != nil {
		return nil, err
	}
	invoices, err := fetchInvoicesForGRN(ctx, s.pool, grnID)
	if err != nil {
		return nil, err
	}
	return invoiceEligibility(grn, invoices), nil
}

func invoiceEligibility(grn *GRN, invoices []Invoice) *InvoiceEligibility {
	return &InvoiceEligibility{
		GRNID:            grn.ID,
		ResolvedStatus:   grn.ResolvedStatus,
		Approved:         IsGRNApproved(grn),
		HasActiveInvoice: HasNonRejectedInvoice(grn.ID, invoices),
		CanRaiseInvoice:  CanRaiseInvoice(grn, invoices),
	}
}

func (s *procurementService) RaiseInvoice(ctx context.Context, grnID string, in RaiseInvoiceInput, actor string) (*Invoice, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid invoice: %w", err)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("invalid invoice: amount must be positive, got %s", in.Amount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The GRN row lock serializes concurrent invoice attempts for the same GRN.
	grn, err := fetchGRN(ctx, tx, grnID, true)
	if err != nil {
		return nil, err
	}
	invoices, err := fetchInvoicesForGRN(ctx, tx, grnID)
	if err != nil {
		return nil, err
	}
	if !CanRaiseInvoice(grn, invoices) {
		elig := invoiceEligibility(grn, invoices)
		return nil, fmt.Errorf("grn %s (approved=%t, active_invoice=%t): %w",
			grnID, elig.Approved, elig.HasActiveInvoice, ErrInvoiceNotAllowed)
	}

	inv := &Invoice{
		InvoiceID:     in.InvoiceID,
		GRNID:         grn.ID,
		InvoiceAmount: in.Amount,
		CreatedAt:     s.now(),
	}
	if inv.InvoiceID == "" {
		inv.InvoiceID = uuid.NewString()
	}
	inv.ApplyStatus(InvoiceStatusRaised, s.flags.WriteMode())

	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (invoice_id, grn_id, invoice_status, unified_invoice_status, invoice_amount, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		inv.InvoiceID, inv.GRNID, inv.InvoiceStatus, inv.UnifiedInvoiceStatus, inv.InvoiceAmount, actor, inv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id": inv.InvoiceID,
		"grn_id":     grnID,
		"amount":     inv.InvoiceAmount.String(),
	}).Info("invoice raised")
	return inv, nil
}

func (s *procurementService) ApproveInvoice(ctx context.Context, invoiceID, actor string) (*Invoice, error) {
	return s.transitionInvoice(ctx, invoiceID, InvoiceStatusApproved, actor)
}

func (s *procurementService) RejectInvoice(ctx context.Context, invoiceID, actor string) (*Invoice, error) {
	return s.transitionInvoice(ctx, invoiceID, InvoiceStatusRejected, actor)
}

func (s *procurementService) transitionInvoice(ctx context.Context, invoiceID, target, actor string) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	inv, err := scanInvoice(tx.QueryRow(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE invoice_id = $1 FOR UPDATE", invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", invoiceID, ErrInvoiceNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice %s: %w", invoiceID, err)
	}
	from := inv.EffectiveStatus()
	if !CanTransitionInvoice(from, target) {
		return nil, fmt.Errorf("invoice %s: %s -> %s: %w", invoiceID, from, target, ErrInvalidTransition)
	}

	inv.ApplyStatus(target, s.flags.WriteMode())
	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET invoice_status = $2, unified_invoice_status = $3, updated_by = $4, updated_at = $5
		WHERE invoice_id = $1`,
		invoiceID, inv.InvoiceStatus, inv.UnifiedInvoiceStatus, actor, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice %s: %w", invoiceID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice transition: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id": invoiceID,
		"from":       from,
		"to":         target,
	}).Info("invoice transitioned")
	return inv, nil
}

func fetchGRN(ctx context.Context, q pgxQuerier, grnID string, forUpdate bool) (*GRN, error) {
	sql := `
		SELECT id, grn_number, po_number, grn_status, status, grn_acknowledged_by_company, resolved_status, created_at
		FROM grns
		WHERE id = $1`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	g := &GRN{}
	err := q.QueryRow(ctx, sql, grnID).Scan(&g.ID, &g.GRNNumber, &g.PONumber, &g.GRNStatus, &g.Status,
		&g.GRNAcknowledgedByCompany, &g.ResolvedStatus, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("grn %s: %w", grnID, ErrGRNNotFound)
		}
		return nil, fmt.Errorf("failed to fetch grn %s: %w", grnID, err)
	}
	return g, nil
}

const invoiceColumns = "invoice_id, grn_id, invoice_status, unified_invoice_status, invoice_amount, created_at"

func scanInvoice(row pgx.Row) (*Invoice, error) {
	inv := &Invoice{}
	if err := row.Scan(&inv.InvoiceID, &inv.GRNID, &inv.InvoiceStatus, &inv.UnifiedInvoiceStatus,
		&inv.InvoiceAmount, &inv.CreatedAt); err != nil {
		return nil, err
	}
	return inv, nil
}

func fetchInvoicesForGRN(ctx context.Context, q pgxQuerier, grnID string) ([]Invoice, error) {
	rows, err := q.Query(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE btrim(grn_id) = btrim($1) ORDER BY created_at", grnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}
