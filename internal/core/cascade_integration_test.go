package core_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"procurement-ledger/internal/config"
	"procurement-ledger/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database with migrations applied; tables are truncated.
	// Packages share it, so run integration tests with -p 1.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE invoices, grn_items, grns, return_requests, shipments, order_lines, orders,
			eligibility_events, employee_eligibility, products, categories, employees, companies CASCADE;

		INSERT INTO companies (id, name) VALUES ('acme', 'Acme Uniforms');
		INSERT INTO employees (id, employee_code, company_id, name) VALUES ('emp-1', 'E001', 'acme', 'Alice');
		INSERT INTO categories (id, company_id, name) VALUES ('cat-shirt', 'acme', 'Shirt'), ('cat-pant', 'acme', 'Pant');
		INSERT INTO products (id, company_id, name, category_id, category) VALUES
			('p-oxford', 'acme', 'Oxford', 'cat-shirt', NULL),
			('p-chino', 'acme', 'Chino', NULL, 'Trousers');
		INSERT INTO employee_eligibility (employee_id, category, remaining) VALUES ('emp-1', 'shirt', 3), ('emp-1', 'pant', 2);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

type services struct {
	ledger      core.EligibilityLedger
	orders      core.OrderService
	procurement core.ProcurementService
}

func newServices(pool *pgxpool.Pool, flags core.MigrationFlags) services {
	logger := config.NewDiscardLogger()
	resolver := core.NewCategoryResolver(core.NewCategoryCatalog(pool), logger)
	ledger := core.NewEligibilityLedger(core.NewEligibilityStore(pool), resolver, logger)
	return services{
		ledger:      ledger,
		orders:      core.NewOrderService(pool, ledger, flags, logger),
		procurement: core.NewProcurementService(pool, flags, logger),
	}
}

func remaining(t *testing.T, ledger core.EligibilityLedger, category string) int {
	t.Helper()
	b, err := ledger.Balances(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	return b[category]
}

func TestOrderService_EligibilityLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newServices(pool, core.NewMigrationFlags(true, true, false))
	ctx := context.Background()

	placed, err := svc.orders.PlaceOrder(ctx, core.PlaceOrderInput{
		OrderID:    "order-1",
		EmployeeID: "E001",
		Lines:      []core.OrderLineInput{{ProductID: "p-oxford", Quantity: 2}},
	}, "employee:emp-1")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if got := remaining(t, svc.ledger, "shirt"); got != 1 {
		t.Fatalf("expected shirt remaining 1, got %d", got)
	}
	if placed.Order.PRNumber == "" {
		t.Error("expected a PR number")
	}

	// Retrying the same order id must not decrement twice.
	if _, err := svc.orders.PlaceOrder(ctx, core.PlaceOrderInput{
		OrderID:    "order-1",
		EmployeeID: "emp-1",
		Lines:      []core.OrderLineInput{{ProductID: "p-oxford", Quantity: 2}},
	}, "employee:emp-1"); err != nil {
		t.Fatalf("retry place order: %v", err)
	}
	if got := remaining(t, svc.ledger, "shirt"); got != 1 {
		t.Fatalf("retry decremented again, remaining %d", got)
	}

	if _, err := svc.orders.PlaceOrder(ctx, core.PlaceOrderInput{
		OrderID:         "order-2",
		EmployeeID:      "emp-1",
		OrderType:       core.OrderTypeReplacement,
		OriginalOrderID: "order-1",
		Lines:           []core.OrderLineInput{{Category: "shirt", Quantity: 1}},
	}, "employee:emp-1"); err != nil {
		t.Fatalf("replacement order: %v", err)
	}
	if got := remaining(t, svc.ledger, "shirt"); got != 1 {
		t.Fatalf("replacement changed eligibility, remaining %d", got)
	}

	inc, err := svc.orders.ApproveReturn(ctx, core.ReturnApprovalInput{
		ReturnRequestID: "ret-1",
		EmployeeID:      "emp-1",
		OrderID:         "order-1",
		ProductRef:      core.ProductRef{ProductID: "p-oxford"},
		Quantity:        1,
	}, "company:acme")
	if err != nil || !inc.Success {
		t.Fatalf("approve return: %v %+v", err, inc)
	}
	if got := remaining(t, svc.ledger, "shirt"); got != 2 {
		t.Fatalf("expected shirt remaining 2, got %d", got)
	}

	history, err := svc.ledger.History(ctx, "emp-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 events, got %d", len(history))
	}
}

func TestOrderService_StatusCascadeDualWrite(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newServices(pool, core.NewMigrationFlags(false, true, false))
	ctx := context.Background()

	placed, err := svc.orders.PlaceOrder(ctx, core.PlaceOrderInput{
		EmployeeID: "emp-1",
		Lines:      []core.OrderLineInput{{ProductID: "p-chino", Quantity: 1}},
	}, "employee:emp-1")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	orderID := placed.Order.ID

	if _, err := svc.orders.DispatchOrder(ctx, orderID, "vendor:v1"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("dispatch before approval: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.orders.ApproveOrder(ctx, orderID, "company:acme"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	shipment, err := svc.orders.DispatchOrder(ctx, orderID, "vendor:v1")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	order, err := svc.orders.MarkShipmentDelivered(ctx, shipment.ShipmentID, "vendor:v1")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if deref(order.PRStatus) != core.PRStatusFullyDelivered || deref(order.UnifiedPRStatus) != core.UnifiedPRStatusFullyDelivered {
		t.Errorf("dual write should set both representations: %+v", order)
	}
	if _, err := svc.orders.MarkShipmentDelivered(ctx, shipment.ShipmentID, "vendor:v1"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("second delivery: expected ErrInvalidTransition, got %v", err)
	}
}

func TestProcurementService_InvoiceGate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newServices(pool, core.NewMigrationFlags(true, true, false))
	ctx := context.Background()

	placed, err := svc.orders.PlaceOrder(ctx, core.PlaceOrderInput{
		EmployeeID: "emp-1",
		Lines:      []core.OrderLineInput{{ProductID: "p-oxford", Quantity: 1}},
	}, "employee:emp-1")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	grn, err := svc.procurement.RaiseGRN(ctx, core.RaiseGRNInput{
		PONumber: placed.Order.PRNumber,
		Items:    []core.GRNItemInput{{ProductID: "p-oxford", OrderedQty: 1, DeliveredQty: 1}},
	}, "vendor:v1")
	if err != nil {
		t.Fatalf("raise grn: %v", err)
	}
	if core.IsGRNApproved(grn) {
		t.Fatal("new GRN must not be approved")
	}

	amount := decimal.RequireFromString("450.00")
	if _, err := svc.procurement.RaiseInvoice(ctx, grn.ID, core.RaiseInvoiceInput{Amount: amount}, "vendor:v1"); !errors.Is(err, core.ErrInvoiceNotAllowed) {
		t.Fatalf("invoice on unapproved GRN: expected ErrInvoiceNotAllowed, got %v", err)
	}

	acked, err := svc.procurement.AcknowledgeGRN(ctx, grn.ID, "company:acme")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if !core.IsGRNApproved(acked) || acked.ResolvedStatus != core.GRNStatusApproved {
		t.Fatalf("acknowledged GRN should be approved: %+v", acked)
	}

	inv, err := svc.procurement.RaiseInvoice(ctx, grn.ID, core.RaiseInvoiceInput{Amount: amount}, "vendor:v1")
	if err != nil {
		t.Fatalf("raise invoice: %v", err)
	}
	if _, err := svc.procurement.RaiseInvoice(ctx, grn.ID, core.RaiseInvoiceInput{Amount: amount}, "vendor:v1"); !errors.Is(err, core.ErrInvoiceNotAllowed) {
		t.Fatalf("second live invoice: expected ErrInvoiceNotAllowed, got %v", err)
	}

	if _, err := svc.procurement.RejectInvoice(ctx, inv.InvoiceID, "company:acme"); err != nil {
		t.Fatalf("reject invoice: %v", err)
	}
	elig, err := svc.procurement.InvoiceEligibility(ctx, grn.ID)
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !elig.CanRaiseInvoice || elig.HasActiveInvoice {
		t.Errorf("rejected invoice should not block a corrected one: %+v", elig)
	}
	if _, err := svc.procurement.RaiseInvoice(ctx, grn.ID, core.RaiseInvoiceInput{Amount: amount}, "vendor:v1"); err != nil {
		t.Errorf("corrected invoice: %v", err)
	}
}

func TestProcurementService_InvoiceAfterRollbackToLegacy(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	dual := newServices(pool, core.NewMigrationFlags(false, true, false))
	legacy := newServices(pool, core.NewMigrationFlags(true, false, false))
	ctx := context.Background()

	placed, err := dual.orders.PlaceOrder(ctx, core.PlaceOrderInput{
		EmployeeID: "emp-1",
		Lines:      []core.OrderLineInput{{ProductID: "p-oxford", Quantity: 1}},
	}, "employee:emp-1")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	grn, err := dual.procurement.RaiseGRN(ctx, core.RaiseGRNInput{
		PONumber: placed.Order.PRNumber,
		Items:    []core.GRNItemInput{{ProductID: "p-oxford", OrderedQty: 1, DeliveredQty: 1}},
	}, "vendor:v1")
	if err != nil {
		t.Fatalf("raise grn: %v", err)
	}
	if _, err := dual.procurement.AcknowledgeGRN(ctx, grn.ID, "company:acme"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	amount := decimal.RequireFromString("120.00")
	first, err := dual.procurement.RaiseInvoice(ctx, grn.ID, core.RaiseInvoiceInput{Amount: amount}, "vendor:v1")
	if err != nil {
		t.Fatalf("raise invoice: %v", err)
	}

	rejected, err := legacy.procurement.RejectInvoice(ctx, first.InvoiceID, "company:acme")
	if err != nil {
		t.Fatalf("reject under legacy-only: %v", err)
	}
	if rejected.UnifiedInvoiceStatus != nil || rejected.EffectiveStatus() != core.InvoiceStatusRejected {
		t.Errorf("unexpected invoice after legacy reject: %+v", rejected)
	}
	if _, err := legacy.procurement.ApproveInvoice(ctx, first.InvoiceID, "company:acme"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("approving a rejected invoice: expected ErrInvalidTransition, got %v", err)
	}

	second, err := legacy.procurement.RaiseInvoice(ctx, grn.ID, core.RaiseInvoiceInput{Amount: amount}, "vendor:v1")
	if err != nil {
		t.Fatalf("corrected invoice after legacy reject: %v", err)
	}
	if _, err := legacy.procurement.ApproveInvoice(ctx, second.InvoiceID, "company:acme"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := dual.procurement.RejectInvoice(ctx, second.InvoiceID, "company:acme"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("rejecting an approved invoice: expected ErrInvalidTransition, got %v", err)
	}
}

func TestEligibilityStore_ConcurrentDecrements(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newServices(pool, core.NewMigrationFlags(true, true, false))
	ctx := context.Background()
	if _, err := pool.Exec(ctx, `UPDATE employee_eligibility SET remaining = 10 WHERE employee_id = 'emp-1' AND category = 'shirt'`); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	// Eight distinct orders plus four retries of one of them.
	orderIDs := []string{"order-a", "order-b", "order-c", "order-d", "order-e", "order-f", "order-g", "order-h",
		"order-a", "order-a", "order-a", "order-a"}

	var wg sync.WaitGroup
	errCh := make(chan error, len(orderIDs))
	for _, id := range orderIDs {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			if _, err := svc.ledger.DecrementOnOrderPlacement(ctx, "emp-1", shirts(1), orderID, false); err != nil {
				errCh <- err
			}
		}(id)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent decrement error: %v", err)
	}

	if got := remaining(t, svc.ledger, "shirt"); got != 2 {
		t.Errorf("expected remaining 2 after 8 distinct orders, got %d", got)
	}
	var events int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM eligibility_events WHERE employee_id = 'emp-1' AND kind = 'DECREMENT'`).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 8 {
		t.Errorf("expected 8 decrement events, got %d", events)
	}
}
