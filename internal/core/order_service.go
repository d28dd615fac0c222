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
	"github.com/sirupsen/logrus"
)

// OrderLineInput is one requested line on a new order.
type OrderLineInput struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
	Category   string `json:"category"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

// PlaceOrderInput describes a new order. OrderID is optional; callers that retry a
// placement should send the same OrderID so the eligibility decrement is not repeated.
type PlaceOrderInput struct {
	OrderID         string           `json:"order_id" validate:"omitempty,max=64"`
	EmployeeID      string           `json:"employee_id" validate:"required"`
	VendorID        string           `json:"vendor_id"`
	OrderType       OrderType        `json:"order_type" validate:"omitempty,oneof=NORMAL REPLACEMENT"`
	OriginalOrderID string           `json:"original_order_id" validate:"required_if=OrderType REPLACEMENT"`
	Lines           []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
}

// PlaceOrderResult carries the stored order and the eligibility outcome.
type PlaceOrderResult struct {
	Order       *Order           `json:"order"`
	Eligibility *DecrementResult `json:"eligibility"`
}

// ReturnApprovalInput describes an approved return request.
type ReturnApprovalInput struct {
	ReturnRequestID string     `json:"return_request_id" validate:"required"`
	EmployeeID      string     `json:"employee_id" validate:"required"`
	OrderID         string     `json:"order_id"`
	ProductRef      ProductRef `json:"product_ref"`
	Quantity        int        `json:"quantity" validate:"gt=0"`
}

// OrderService is the order-side writer of the status cascade: orders, shipments
// and returns. Every write projects the new stage onto the fields selected by the
// process's migration phase.
type OrderService interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput, actor string) (*PlaceOrderResult, error)
	ApproveOrder(ctx context.Context, orderID, actor string) (*Order, error)
	// DispatchOrder moves an approved order to Dispatched and creates its shipment.
	DispatchOrder(ctx context.Context, orderID, actor string) (*Shipment, error)
	// MarkShipmentDelivered is the only path to a FULLY_DELIVERED order.
	MarkShipmentDelivered(ctx context.Context, shipmentID, actor string) (*Order, error)
	ApproveReturn(ctx context.Context, in ReturnApprovalInput, actor string) (*IncrementResult, error)

	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetShipment(ctx context.Context, shipmentID string) (*Shipment, error)
}

type orderService struct {
	pool     *pgxpool.Pool
	ledger   EligibilityLedger
	flags    MigrationFlags
	validate *validator.Validate
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewOrderService(pool *pgxpool.Pool, ledger EligibilityLedger, flags MigrationFlags, logger logrus.FieldLogger) OrderService {
	return &orderService{
		pool:     pool,
		ledger:   ledger,
		flags:    flags,
		validate: validator.New(),
		logger:   logger.WithField("component", "OrderService"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *orderService) PlaceOrder(ctx context.Context, in PlaceOrderInput, actor string) (*PlaceOrderResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}
	if in.OrderType == "" {
		in.OrderType = OrderTypeNormal
	}
	if in.OrderID == "" {
		in.OrderID = uuid.NewString()
	}
	isReplacement := in.OrderType == OrderTypeReplacement
	log := s.logger.WithFields(logrus.Fields{"order_id": in.OrderID, "employee_id": in.EmployeeID})

	var companyID, employeeID string
	err := s.pool.QueryRow(ctx, `
		SELECT id, company_id FROM employees
		WHERE id = $1 OR employee_code = $1
		ORDER BY (id = $1) DESC
		LIMIT 1`,
		in.EmployeeID,
	).Scan(&employeeID, &companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("employee %q: %w", in.EmployeeID, ErrEmployeeNotFound)
		}
		return nil, fmt.Errorf("failed to resolve employee: %w", err)
	}

	if isReplacement {
		var originalEmployee string
		err := s.pool.QueryRow(ctx, "SELECT employee_id FROM orders WHERE id = $1", in.OriginalOrderID).Scan(&originalEmployee)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("original order %s: %w", in.OriginalOrderID, ErrOrderNotFound)
			}
			return nil, fmt.Errorf("failed to fetch original order: %w", err)
		}
		if originalEmployee != employeeID {
			return nil, fmt.Errorf("original order %s belongs to another employee: %w", in.OriginalOrderID, ErrInvalidTransition)
		}
	}

	items := make([]LedgerItem, len(in.Lines))
	for i, l := range in.Lines {
		items[i] = LedgerItem{
			ProductRef: ProductRef{ProductID: l.ProductID, CategoryID: l.CategoryID, CategoryName: l.Category},
			Quantity:   l.Quantity,
		}
	}

	// Decrement first: it is keyed by order id, so a placement retried after a failed
	// insert below does not consume quota twice.
	elig, err := s.ledger.DecrementOnOrderPlacement(ctx, employeeID, items, in.OrderID, isReplacement)
	if err != nil {
		return nil, err
	}
	resolved := make(map[int]string, len(elig.Decrements))
	for _, d := range elig.Decrements {
		resolved[d.LineNo] = d.Category
	}

	order := &Order{
		ID:         in.OrderID,
		OrderType:  in.OrderType,
		CompanyID:  companyID,
		EmployeeID: employeeID,
		CreatedAt:  s.now(),
	}
	if in.VendorID != "" {
		order.VendorID = ptr(in.VendorID)
	}
	if isReplacement {
		order.OriginalOrderID = ptr(in.OriginalOrderID)
	}
	// Replacements are pre-approved: the original order already went through approval.
	entry := StageAwaitingApproval
	if isReplacement {
		entry = StageAwaitingFulfilment
	}
	order.ApplyStage(entry, s.flags.WriteMode(), actor, order.CreatedAt)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		INSERT INTO orders (id, pr_number, order_type, company_id, vendor_id, employee_id, original_order_id,
			status, pr_status, dispatch_status, delivery_status,
			unified_status, unified_pr_status,
			unified_status_updated_at, unified_status_updated_by,
			unified_pr_status_updated_at, unified_pr_status_updated_by,
			created_at, updated_at)
		VALUES ($1, 'PR-' || lpad(nextval('pr_number_seq')::text, 6, '0'), $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		ON CONFLICT (id) DO NOTHING`,
		order.ID, string(order.OrderType), order.CompanyID, order.VendorID, order.EmployeeID, order.OriginalOrderID,
		order.Status, order.PRStatus, order.DispatchStatus, order.DeliveryStatus,
		order.UnifiedStatus, order.UnifiedPRStatus,
		order.UnifiedStatusUpdatedAt, order.UnifiedStatusUpdatedBy,
		order.UnifiedPRStatusUpdatedAt, order.UnifiedPRStatusUpdatedBy,
		order.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		log.Info("order already placed, returning stored copy")
	} else {
		for i, l := range in.Lines {
			category := resolved[i+1]
			if category == "" {
				category = l.Category
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO order_lines (order_id, line_no, product_id, category, quantity)
				VALUES ($1, $2, $3, $4, $5)`,
				order.ID, i+1, l.ProductID, category, l.Quantity,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to insert order line %d: %w", i+1, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	stored, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"pr_number":  stored.PRNumber,
		"order_type": stored.OrderType,
		"write_mode": s.flags.WriteMode().String(),
	}).Info("order placed")
	return &PlaceOrderResult{Order: stored, Eligibility: elig}, nil
}

func (s *orderService) ApproveOrder(ctx context.Context, orderID, actor string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	order, err := s.advanceOrderTx(ctx, tx, orderID, StageAwaitingFulfilment, actor)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order approval: %w", err)
	}
	s.logger.WithField("order_id", orderID).Info("order approved")
	return order, nil
}

func (s *orderService) DispatchOrder(ctx context.Context, orderID, actor string) (*Shipment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	order, err := s.advanceOrderTx(ctx, tx, orderID, StageDispatched, actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	shipment := &Shipment{
		ShipmentID: uuid.NewString(),
		PRNumber:   order.PRNumber,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	mode := s.flags.WriteMode()
	if mode.WritesLegacy() {
		shipment.ShipmentStatus = ptr(ShipmentStatusInTransit)
	}
	if mode.WritesUnified() {
		shipment.UnifiedShipmentStatus = ptr(ShipmentStatusInTransit)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO shipments (shipment_id, pr_number, shipment_status, courier_status, unified_shipment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		shipment.ShipmentID, shipment.PRNumber, shipment.ShipmentStatus, shipment.CourierStatus,
		shipment.UnifiedShipmentStatus, shipment.CreatedAt, shipment.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert shipment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit dispatch: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"order_id":    orderID,
		"shipment_id": shipment.ShipmentID,
		"pr_number":   shipment.PRNumber,
	}).Info("order dispatched")
	return shipment, nil
}

func (s *orderService) MarkShipmentDelivered(ctx context.Context, shipmentID, actor string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	shipment, err := fetchShipment(ctx, tx, shipmentID, true)
	if err != nil {
		return nil, err
	}
	if shipment.IsDelivered() {
		return nil, fmt.Errorf("shipment %s already delivered: %w", shipmentID, ErrInvalidTransition)
	}

	now := s.now()
	mode := s.flags.WriteMode()
	if mode.WritesLegacy() {
		shipment.ShipmentStatus = ptr(ShipmentStatusDelivered)
	}
	if mode.WritesUnified() {
		shipment.UnifiedShipmentStatus = ptr(ShipmentStatusDelivered)
	}
	_, err = tx.Exec(ctx, `
		UPDATE shipments
		SET shipment_status = $2, unified_shipment_status = $3, updated_at = $4
		WHERE shipment_id = $1`,
		shipmentID, shipment.ShipmentStatus, shipment.UnifiedShipmentStatus, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update shipment: %w", err)
	}

	var orderID string
	err = tx.QueryRow(ctx, "SELECT id FROM orders WHERE pr_number = $1", shipment.PRNumber).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order for %s: %w", shipment.PRNumber, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order for shipment: %w", err)
	}

	order, err := s.advanceOrderTx(ctx, tx, orderID, StageDelivered, actor)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"order_id":    orderID,
		"shipment_id": shipmentID,
	}).Info("shipment delivered")
	return order, nil
}

func (s *orderService) ApproveReturn(ctx context.Context, in ReturnApprovalInput, actor string) (*IncrementResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid return: %w", err)
	}

	res, err := s.ledger.IncrementOnReturnApproval(ctx, in.EmployeeID, in.ProductRef, in.Quantity, in.ReturnRequestID)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return res, nil
	}

	var orderRef *string
	if in.OrderID != "" {
		orderRef = ptr(in.OrderID)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO return_requests (id, employee_id, order_id, product_id, category_id, category, quantity, status, approved_by, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'APPROVED', $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		in.ReturnRequestID, in.EmployeeID, orderRef, in.ProductRef.ProductID, in.ProductRef.CategoryID,
		in.ProductRef.CategoryName, in.Quantity, actor, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record return approval: %w", err)
	}
	return res, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := fetchOrder(ctx, s.pool, orderID, false)
	if err != nil {
		return nil, err
	}
	order.Lines, err = fetchOrderLines(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	return fetchShipment(ctx, s.pool, shipmentID, false)
}

// advanceOrderTx locks the order, checks that target is the next stage as seen in the
// current phase, and writes the projection selected by the write mode.
func (s *orderService) advanceOrderTx(ctx context.Context, tx pgx.Tx, orderID string, target OrderStage, actor string) (*Order, error) {
	order, err := fetchOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	current := order.Stage(s.flags)
	if !current.CanAdvanceTo(target) {
		return nil, fmt.Errorf("order %s: %s -> %s: %w", orderID, current, target, ErrInvalidTransition)
	}

	now := s.now()
	order.ApplyStage(target, s.flags.WriteMode(), actor, now)
	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, pr_status = $3, dispatch_status = $4, delivery_status = $5,
		    unified_status = $6, unified_pr_status = $7,
		    unified_status_updated_at = $8, unified_status_updated_by = $9,
		    unified_pr_status_updated_at = $10, unified_pr_status_updated_by = $11,
		    updated_at = $12
		WHERE id = $1`,
		orderID, order.Status, order.PRStatus, order.DispatchStatus, order.DeliveryStatus,
		order.UnifiedStatus, order.UnifiedPRStatus,
		order.UnifiedStatusUpdatedAt, order.UnifiedStatusUpdatedBy,
		order.UnifiedPRStatusUpdatedAt, order.UnifiedPRStatusUpdatedBy,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	return order, nil
}

// OrderColumns is the select list ScanOrder expects.
const OrderColumns = `id, pr_number, order_type, company_id, vendor_id, employee_id, original_order_id,
	status, pr_status, dispatch_status, delivery_status,
	unified_status, unified_pr_status,
	unified_status_updated_at, unified_status_updated_by,
	unified_pr_status_updated_at, unified_pr_status_updated_by,
	created_at`

// ScanOrder scans one row selected with OrderColumns.
func ScanOrder(row pgx.Row) (*Order, error) {
	o := &Order{}
	var orderType string
	err := row.Scan(&o.ID, &o.PRNumber, &orderType, &o.CompanyID, &o.VendorID, &o.EmployeeID, &o.OriginalOrderID,
		&o.Status, &o.PRStatus, &o.DispatchStatus, &o.DeliveryStatus,
		&o.UnifiedStatus, &o.UnifiedPRStatus,
		&o.UnifiedStatusUpdatedAt, &o.UnifiedStatusUpdatedBy,
		&o.UnifiedPRStatusUpdatedAt, &o.UnifiedPRStatusUpdatedBy,
		&o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.OrderType = OrderType(orderType)
	return o, nil
}

func fetchOrder(ctx context.Context, q pgxQuerier, orderID string, forUpdate bool) (*Order, error) {
	sql := "SELECT " + OrderColumns + " FROM orders WHERE id = $1"
	if forUpdate {
		sql += " FOR UPDATE"
	}
	o, err := ScanOrder(q.QueryRow(ctx, sql, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}
	return o, nil
}

func fetchOrderLines(ctx context.Context, q pgxQuerier, orderID string) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT line_no, product_id, category, quantity
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_no`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.LineNo, &l.ProductID, &l.Category, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func fetchShipment(ctx context.Context, q pgxQuerier, shipmentID string, forUpdate bool) (*Shipment, error) {
	sql := `
		SELECT shipment_id, pr_number, shipment_status, courier_status, unified_shipment_status, created_at, updated_at
		FROM shipments
		WHERE shipment_id = $1`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	sh := &Shipment{}
	err := q.QueryRow(ctx, sql, shipmentID).Scan(&sh.ShipmentID, &sh.PRNumber, &sh.ShipmentStatus,
		&sh.CourierStatus, &sh.UnifiedShipmentStatus, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("shipment %s: %w", shipmentID, ErrShipmentNotFound)
		}
		return nil, fmt.Errorf("failed to fetch shipment %s: %w", shipmentID, err)
	}
	return sh, nil
}
