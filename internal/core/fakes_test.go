package core_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"procurement-ledger/internal/core"
)

// memCatalog is an in-memory CategoryCatalog.
type memCatalog struct {
	categories []core.Category
	products   map[string]core.Product
	fail       error
}

func (c *memCatalog) CategoryByID(_ context.Context, companyID, categoryID string) (*core.Category, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	for _, cat := range c.categories {
		if cat.ID == categoryID && cat.CompanyID == companyID {
			cat := cat
			return &cat, nil
		}
	}
	return nil, core.ErrCategoryNotFound
}

func (c *memCatalog) CategoryByName(_ context.Context, companyID, name string) (*core.Category, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	for _, cat := range c.categories {
		if cat.CompanyID == companyID && strings.EqualFold(cat.Name, name) {
			cat := cat
			return &cat, nil
		}
	}
	return nil, core.ErrCategoryNotFound
}

func (c *memCatalog) ProductByID(_ context.Context, productID string) (*core.Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return nil, core.ErrProductNotFound
	}
	return &p, nil
}

type eventKey struct {
	kind      core.EventKind
	sourceRef string
	lineNo    int
}

// memStore is an in-memory EligibilityStore with the same identity rules as the
// Postgres one.
type memStore struct {
	mu        sync.Mutex
	employees map[string]*core.Employee
	balances  map[string]map[string]int
	events    map[string][]core.EligibilityEvent
	seen      map[eventKey]bool
	applyErr  error
}

func newMemStore(emps ...core.Employee) *memStore {
	s := &memStore{
		employees: make(map[string]*core.Employee),
		balances:  make(map[string]map[string]int),
		events:    make(map[string][]core.EligibilityEvent),
		seen:      make(map[eventKey]bool),
	}
	for i := range emps {
		e := emps[i]
		s.employees[e.ID] = &e
		s.balances[e.ID] = make(map[string]int)
		for cat, n := range e.Eligibility {
			s.balances[e.ID][cat] = n
		}
	}
	return s
}

func (s *memStore) FindEmployee(_ context.Context, ref string) (*core.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.employees[ref]; ok {
		return e, nil
	}
	for _, e := range s.employees {
		if e.EmployeeCode == ref {
			return e, nil
		}
	}
	return nil, core.ErrEmployeeNotFound
}

func (s *memStore) Apply(_ context.Context, employeeID string, mutations []core.EligibilityMutation) ([]core.EligibilityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return nil, s.applyErr
	}

	// Stage against a copy so a failure leaves nothing behind.
	bal := make(map[string]int)
	for k, v := range s.balances[employeeID] {
		bal[k] = v
	}
	seen := make(map[eventKey]bool)
	var out []core.EligibilityEvent
	for _, m := range mutations {
		key := eventKey{m.Kind, m.SourceRef, m.LineNo}
		if s.seen[key] || seen[key] {
			continue
		}
		seen[key] = true
		prev := bal[m.Category]
		next := core.NextRemaining(m.Kind, prev, m.Quantity)
		bal[m.Category] = next
		out = append(out, core.EligibilityEvent{
			EmployeeID:    employeeID,
			Kind:          m.Kind,
			Category:      m.Category,
			PreviousValue: prev,
			NewValue:      next,
			Delta:         next - prev,
			Quantity:      m.Quantity,
			SourceRef:     m.SourceRef,
			LineNo:        m.LineNo,
			CreatedAt:     time.Now(),
		})
	}

	s.balances[employeeID] = bal
	for k := range seen {
		s.seen[k] = true
	}
	s.events[employeeID] = append(s.events[employeeID], out...)
	return out, nil
}

func (s *memStore) Balances(_ context.Context, employeeID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for k, v := range s.balances[employeeID] {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Events(_ context.Context, employeeID string) ([]core.EligibilityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.EligibilityEvent(nil), s.events[employeeID]...), nil
}

func (s *memStore) remaining(employeeID, category string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[employeeID][category]
}

func strPtr(s string) *string { return &s }
