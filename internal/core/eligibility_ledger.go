package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type eligibilityLedger struct {
	store    EligibilityStore
	resolver CategoryResolver
	validate *validator.Validate
	logger   logrus.FieldLogger
}

// NewEligibilityLedger constructs the ledger over a store and category resolver.
func NewEligibilityLedger(store EligibilityStore, resolver CategoryResolver, logger logrus.FieldLogger) EligibilityLedger {
	return &eligibilityLedger{
		store:    store,
		resolver: resolver,
		validate: validator.New(),
		logger:   logger.WithField("component", "EligibilityLedger"),
	}
}

func (l *eligibilityLedger) DecrementOnOrderPlacement(ctx context.Context, employeeID string, items []LedgerItem, orderID string, isReplacementOrder bool) (*DecrementResult, error) {
	log := l.logger.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"order_id":    orderID,
	})

	result := &DecrementResult{
		Decrements: []EligibilityEvent{},
		Errors:     []ItemError{},
	}

	// The original order already consumed the quota a replacement stands in for.
	if isReplacementOrder {
		log.Info("replacement order: eligibility unchanged")
		result.Success = true
		return result, nil
	}
	if orderID == "" {
		return nil, fmt.Errorf("decrement eligibility: order id is required")
	}

	emp, err := l.store.FindEmployee(ctx, employeeID)
	if err != nil {
		log.WithError(err).Warn("decrement aborted: employee lookup failed")
		return nil, fmt.Errorf("decrement eligibility for order %s: %w", orderID, err)
	}

	var staged []EligibilityMutation
	for i, item := range items {
		if err := l.validate.Struct(item); err != nil {
			result.Errors = append(result.Errors, ItemError{Index: i, ProductRef: item.ProductRef, Error: fmt.Sprintf("invalid item: %v", err)})
			continue
		}
		category, err := l.resolver.Resolve(ctx, emp.CompanyID, item.ProductRef)
		if err != nil {
			if !isLineItemNotFound(err) {
				return nil, fmt.Errorf("resolve category for line %d: %w", i+1, err)
			}
			log.WithError(err).WithField("line", i+1).Warn("line skipped: category not resolved")
			result.Errors = append(result.Errors, ItemError{Index: i, ProductRef: item.ProductRef, Error: err.Error()})
			continue
		}
		staged = append(staged, EligibilityMutation{
			Kind:      EventDecrement,
			Category:  category,
			Quantity:  item.Quantity,
			SourceRef: orderID,
			LineNo:    i + 1,
		})
	}

	if len(staged) > 0 {
		events, err := l.store.Apply(ctx, emp.ID, staged)
		if err != nil {
			log.WithError(err).Error("apply decrements failed")
			return nil, fmt.Errorf("apply eligibility decrements for order %s: %w", orderID, err)
		}
		result.Decrements = append(result.Decrements, events...)
		if len(events) < len(staged) {
			log.WithField("skipped", len(staged)-len(events)).Info("decrements already recorded for order")
		}
	}

	result.Success = len(result.Errors) == 0 || len(result.Decrements) > 0
	log.WithFields(logrus.Fields{
		"decrements": len(result.Decrements),
		"errors":     len(result.Errors),
	}).Info("eligibility decremented")
	return result, nil
}

func (l *eligibilityLedger) IncrementOnReturnApproval(ctx context.Context, employeeID string, ref ProductRef, quantity int, returnRequestID string) (*IncrementResult, error) {
	log := l.logger.WithFields(logrus.Fields{
		"employee_id":       employeeID,
		"return_request_id": returnRequestID,
	})

	if quantity <= 0 {
		return &IncrementResult{Error: fmt.Sprintf("quantity must be positive, got %d", quantity)}, nil
	}
	if returnRequestID == "" {
		return &IncrementResult{Error: "return request id is required"}, nil
	}

	emp, err := l.store.FindEmployee(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			log.Warn("increment skipped: employee not found")
			return &IncrementResult{Error: err.Error()}, nil
		}
		return nil, fmt.Errorf("increment eligibility for return %s: %w", returnRequestID, err)
	}

	category, err := l.resolver.Resolve(ctx, emp.CompanyID, ref)
	if err != nil {
		if isLineItemNotFound(err) {
			log.WithError(err).Warn("increment skipped: category not resolved")
			return &IncrementResult{Error: err.Error()}, nil
		}
		return nil, fmt.Errorf("resolve category for return %s: %w", returnRequestID, err)
	}

	events, err := l.store.Apply(ctx, emp.ID, []EligibilityMutation{{
		Kind:      EventIncrement,
		Category:  category,
		Quantity:  quantity,
		SourceRef: returnRequestID,
		LineNo:    1,
	}})
	if err != nil {
		log.WithError(err).Error("apply increment failed")
		return nil, fmt.Errorf("apply eligibility increment for return %s: %w", returnRequestID, err)
	}

	result := &IncrementResult{Success: true}
	if len(events) == 0 {
		log.Info("return already credited")
		return result, nil
	}
	result.Increment = &events[0]
	log.WithFields(logrus.Fields{
		"category":  category,
		"new_value": events[0].NewValue,
	}).Info("eligibility incremented")
	return result, nil
}

func (l *eligibilityLedger) Balances(ctx context.Context, employeeID string) (map[string]int, error) {
	emp, err := l.store.FindEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return l.store.Balances(ctx, emp.ID)
}

func (l *eligibilityLedger) History(ctx context.Context, employeeID string) ([]EligibilityEvent, error) {
	emp, err := l.store.FindEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return l.store.Events(ctx, emp.ID)
}

func isLineItemNotFound(err error) bool {
	return errors.Is(err, ErrCategoryNotFound) || errors.Is(err, ErrProductNotFound)
}
