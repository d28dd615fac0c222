package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"procurement-ledger/internal/app"
	"procurement-ledger/internal/core"
)

type fakeService struct {
	app.ApplicationService
	flags core.MigrationFlags
}

func (f *fakeService) MigrationPhase() *app.PhaseResult {
	return &app.PhaseResult{
		Flags:         f.flags,
		Phase:         f.flags.Phase,
		WriteMode:     f.flags.WriteMode().String(),
		PreferUnified: f.flags.PreferUnified(),
	}
}

func (f *fakeService) GetEligibility(_ context.Context, ref string) (*app.EligibilityResult, error) {
	if ref == "nobody" {
		return nil, core.ErrEmployeeNotFound
	}
	return &app.EligibilityResult{
		EmployeeID: ref,
		Balances:   map[string]int{"shirt": 1, "pant": 2},
		History: []core.EligibilityEvent{{
			Kind: core.EventDecrement, Category: "shirt", PreviousValue: 3, NewValue: 1, Delta: -2,
			Quantity: 2, SourceRef: "order-1", LineNo: 1, CreatedAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		}},
	}, nil
}

func (f *fakeService) GetGRN(_ context.Context, id string) (*app.GRNResult, error) {
	status := core.GRNLegacyCreated
	return &app.GRNResult{
		GRN:   &core.GRN{ID: id, GRNNumber: "GRN-000001", PONumber: "PR-000001", Status: &status, ResolvedStatus: core.GRNStatusRaised},
		State: core.GRNStatusRaised,
	}, nil
}

func (f *fakeService) InvoiceEligibility(_ context.Context, id string) (*core.InvoiceEligibility, error) {
	return &core.InvoiceEligibility{GRNID: id, ResolvedStatus: core.GRNStatusRaised}, nil
}

func TestRun(t *testing.T) {
	svc := &fakeService{flags: core.NewMigrationFlags(false, true, true)}
	ctx := context.Background()

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{"phase", []string{"phase"}, []string{string(core.PhaseUnifiedPrimary), "dual"}, false},
		{"eligibility", []string{"eligibility", "E001"}, []string{"shirt", "pant", "order-1#1"}, false},
		{"grn check", []string{"grn-check", "grn-1"}, []string{"GRN-000001", "can NOT be raised", "CREATED"}, false},
		{"unknown employee", []string{"eligibility", "nobody"}, nil, true},
		{"missing argument", []string{"grn-check"}, nil, true},
		{"unknown command", []string{"balances"}, nil, true},
		{"no command", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := Run(ctx, svc, tt.args, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}
