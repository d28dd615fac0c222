package audit

import (
	"context"
	"fmt"

	"procurement-ledger/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Source loads audit candidates. Implementations must not write.
type Source interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

type pgSource struct {
	pool *pgxpool.Pool
}

// NewSource returns a Source that reads inside a single read-only, repeatable-read
// transaction so both candidate scans and the shipment lookup see one snapshot.
func NewSource(pool *pgxpool.Pool) Source {
	return &pgSource{pool: pool}
}

// Orders whose legacy fields claim shipment or delivery but whose unified PR status
// does not say FULLY_DELIVERED.
const divergentUnifiedSQL = `
	SELECT ` + core.OrderColumns + `
	FROM orders
	WHERE (pr_status = 'FULLY_DELIVERED' OR delivery_status = 'DELIVERED' OR dispatch_status = 'SHIPPED')
	  AND (unified_pr_status IS NULL OR unified_pr_status <> 'FULLY_DELIVERED')`

// Orders that claim shipment or delivery in either representation yet have no
// shipment row for their PR number.
const missingShipmentSQL = `
	SELECT ` + core.OrderColumns + `
	FROM orders o
	WHERE (o.pr_status = 'FULLY_DELIVERED' OR o.delivery_status = 'DELIVERED'
	       OR o.dispatch_status = 'SHIPPED' OR o.unified_pr_status = 'FULLY_DELIVERED')
	  AND NOT EXISTS (SELECT 1 FROM shipments s WHERE s.pr_number = o.pr_number)`

func beginSnapshot(ctx context.Context, pool *pgxpool.Pool) (pgx.Tx, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{
		AccessMode: pgx.ReadOnly,
		IsoLevel:   pgx.RepeatableRead,
	})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	return tx, nil
}

func (s *pgSource) Candidates(ctx context.Context) ([]Candidate, error) {
	tx, err := beginSnapshot(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	seen := make(map[string]bool)
	var candidates []Candidate
	for _, q := range []string{divergentUnifiedSQL, missingShipmentSQL} {
		orders, err := queryOrders(ctx, tx, q)
		if err != nil {
			return nil, err
		}
		for _, o := range orders {
			if seen[o.ID] {
				continue
			}
			seen[o.ID] = true
			candidates = append(candidates, Candidate{Order: *o})
		}
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	prNumbers := make([]string, len(candidates))
	for i := range candidates {
		prNumbers[i] = candidates[i].Order.PRNumber
	}
	byPR, err := shipmentsByPR(ctx, tx, prNumbers)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Shipments = byPR[candidates[i].Order.PRNumber]
	}
	return candidates, nil
}

func queryOrders(ctx context.Context, tx pgx.Tx, sql string) ([]*core.Order, error) {
	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query candidate orders: %w", err)
	}
	defer rows.Close()

	var orders []*core.Order
	for rows.Next() {
		o, err := core.ScanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func shipmentsByPR(ctx context.Context, tx pgx.Tx, prNumbers []string) (map[string][]core.Shipment, error) {
	rows, err := tx.Query(ctx, `
		SELECT shipment_id, pr_number, shipment_status, courier_status, unified_shipment_status, created_at, updated_at
		FROM shipments
		WHERE pr_number = ANY($1)`,
		prNumbers,
	)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.Shipment)
	for rows.Next() {
		var sh core.Shipment
		if err := rows.Scan(&sh.ShipmentID, &sh.PRNumber, &sh.ShipmentStatus, &sh.CourierStatus,
			&sh.UnifiedShipmentStatus, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		out[sh.PRNumber] = append(out[sh.PRNumber], sh)
	}
	return out, rows.Err()
}
