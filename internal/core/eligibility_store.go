package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgEligibilityStore struct {
	pool *pgxpool.Pool
}

// NewEligibilityStore constructs an EligibilityStore backed by PostgreSQL.
func NewEligibilityStore(pool *pgxpool.Pool) EligibilityStore {
	return &pgEligibilityStore{pool: pool}
}

func (s *pgEligibilityStore) FindEmployee(ctx context.Context, ref string) (*Employee, error) {
	emp := &Employee{}
	const q = `
		SELECT id, employee_code, company_id, name, created_at
		FROM employees
		WHERE %s = $1`
	err := s.pool.QueryRow(ctx, fmt.Sprintf(q, "id"), ref).
		Scan(&emp.ID, &emp.EmployeeCode, &emp.CompanyID, &emp.Name, &emp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = s.pool.QueryRow(ctx, fmt.Sprintf(q, "employee_code"), ref).
			Scan(&emp.ID, &emp.EmployeeCode, &emp.CompanyID, &emp.Name, &emp.CreatedAt)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("employee %q: %w", ref, ErrEmployeeNotFound)
		}
		return nil, fmt.Errorf("fetch employee %s: %w", ref, err)
	}

	emp.Eligibility, err = s.Balances(ctx, emp.ID)
	if err != nil {
		return nil, err
	}
	return emp, nil
}

// Apply runs every mutation in one transaction. Each balance row is locked before it
// is read, and the event insert doubles as the idempotency check: a conflicting
// (kind, source_ref, line_no) means the mutation was applied by an earlier call.
func (s *pgEligibilityStore) Apply(ctx context.Context, employeeID string, mutations []EligibilityMutation) ([]EligibilityEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	applied := make([]EligibilityEvent, 0, len(mutations))
	now := time.Now().UTC()

	for _, m := range mutations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO employee_eligibility (employee_id, category, remaining)
			VALUES ($1, $2, 0)
			ON CONFLICT (employee_id, category) DO NOTHING`,
			employeeID, m.Category,
		); err != nil {
			return nil, fmt.Errorf("ensure eligibility row %s/%s: %w", employeeID, m.Category, err)
		}

		var current int
		if err := tx.QueryRow(ctx, `
			SELECT remaining
			FROM employee_eligibility
			WHERE employee_id = $1 AND category = $2
			FOR UPDATE`,
			employeeID, m.Category,
		).Scan(&current); err != nil {
			return nil, fmt.Errorf("lock eligibility row %s/%s: %w", employeeID, m.Category, err)
		}

		next := NextRemaining(m.Kind, current, m.Quantity)
		ev := EligibilityEvent{
			EmployeeID:    employeeID,
			Kind:          m.Kind,
			Category:      m.Category,
			PreviousValue: current,
			NewValue:      next,
			Delta:         next - current,
			Quantity:      m.Quantity,
			SourceRef:     m.SourceRef,
			LineNo:        m.LineNo,
			CreatedAt:     now,
		}

		var eventID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO eligibility_events
				(employee_id, kind, category, previous_value, new_value, delta, quantity, source_ref, line_no, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (kind, source_ref, line_no) DO NOTHING
			RETURNING id`,
			ev.EmployeeID, string(ev.Kind), ev.Category, ev.PreviousValue, ev.NewValue,
			ev.Delta, ev.Quantity, ev.SourceRef, ev.LineNo, ev.CreatedAt,
		).Scan(&eventID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("record eligibility event %s/%d: %w", m.SourceRef, m.LineNo, err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE employee_eligibility
			SET remaining = $3, updated_at = $4
			WHERE employee_id = $1 AND category = $2`,
			employeeID, m.Category, next, now,
		); err != nil {
			return nil, fmt.Errorf("update eligibility %s/%s: %w", employeeID, m.Category, err)
		}
		applied = append(applied, ev)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit eligibility: %w", err)
	}
	return applied, nil
}

func (s *pgEligibilityStore) Balances(ctx context.Context, employeeID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, remaining
		FROM employee_eligibility
		WHERE employee_id = $1
		ORDER BY category`,
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query eligibility: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]int)
	for rows.Next() {
		var category string
		var remaining int
		if err := rows.Scan(&category, &remaining); err != nil {
			return nil, fmt.Errorf("scan eligibility: %w", err)
		}
		balances[category] = remaining
	}
	return balances, rows.Err()
}

func (s *pgEligibilityStore) Events(ctx context.Context, employeeID string) ([]EligibilityEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT employee_id, kind, category, previous_value, new_value, delta, quantity, source_ref, line_no, created_at
		FROM eligibility_events
		WHERE employee_id = $1
		ORDER BY id`,
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query eligibility events: %w", err)
	}
	defer rows.Close()

	var events []EligibilityEvent
	for rows.Next() {
		var ev EligibilityEvent
		var kind string
		if err := rows.Scan(&ev.EmployeeID, &kind, &ev.Category, &ev.PreviousValue, &ev.NewValue,
			&ev.Delta, &ev.Quantity, &ev.SourceRef, &ev.LineNo, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan eligibility event: %w", err)
		}
		ev.Kind = EventKind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}
