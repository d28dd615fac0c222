package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"procurement-ledger/internal/app"
)

// Usage lists the one-shot commands.
const Usage = `Usage:
  app phase                    show migration flags and derived phase
  app eligibility <employee>   show remaining quota and event history (id or code)
  app grn-check <grn>          explain whether an invoice may be raised for a GRN`

// Run executes a one-shot CLI command and writes its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", Usage)
	}

	switch args[0] {
	case "phase", "ph":
		printPhase(out, svc.MigrationPhase())
		return nil

	case "eligibility", "elig", "e":
		if len(args) < 2 {
			return fmt.Errorf("usage: app eligibility <employee>")
		}
		result, err := svc.GetEligibility(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to get eligibility: %w", err)
		}
		printEligibility(out, result)
		return nil

	case "grn-check", "grn":
		if len(args) < 2 {
			return fmt.Errorf("usage: app grn-check <grn>")
		}
		grn, err := svc.GetGRN(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to load GRN: %w", err)
		}
		elig, err := svc.InvoiceEligibility(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to check invoice eligibility: %w", err)
		}
		printGRNCheck(out, grn, elig.HasActiveInvoice, elig.CanRaiseInvoice)
		return nil

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], Usage)
	}
}

func printPhase(out io.Writer, p *app.PhaseResult) {
	fmt.Fprintln(out, strings.Repeat("=", 48))
	fmt.Fprintf(out, "  %-20s %s\n", "Phase", p.Phase)
	fmt.Fprintf(out, "  %-20s %s\n", "Write mode", p.WriteMode)
	fmt.Fprintf(out, "  %-20s %t\n", "Prefer unified", p.PreferUnified)
	fmt.Fprintln(out, strings.Repeat("-", 48))
	fmt.Fprintf(out, "  %-20s %t\n", "SAFE_MODE", p.Flags.SafeMode)
	fmt.Fprintf(out, "  %-20s %t\n", "DUAL_WRITE_ENABLED", p.Flags.DualWrite)
	fmt.Fprintf(out, "  %-20s %t\n", "READ_FROM_UNIFIED", p.Flags.ReadUnified)
	fmt.Fprintln(out, strings.Repeat("=", 48))
}

func printEligibility(out io.Writer, r *app.EligibilityResult) {
	fmt.Fprintf(out, "\nEmployee %s\n", r.EmployeeID)
	fmt.Fprintln(out, strings.Repeat("=", 40))
	fmt.Fprintf(out, "  %-28s %9s\n", "CATEGORY", "REMAINING")
	fmt.Fprintln(out, strings.Repeat("-", 40))

	categories := make([]string, 0, len(r.Balances))
	for c := range r.Balances {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(out, "  %-28s %9d\n", c, r.Balances[c])
	}
	if len(categories) == 0 {
		fmt.Fprintln(out, "  (no eligibility rows)")
	}

	if len(r.History) == 0 {
		return
	}
	fmt.Fprintln(out, "\nHistory")
	fmt.Fprintln(out, strings.Repeat("-", 78))
	for _, e := range r.History {
		fmt.Fprintf(out, "  %s  %-9s %-18s %3d -> %-3d (%+d)  %s#%d\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.Kind, e.Category,
			e.PreviousValue, e.NewValue, e.Delta, e.SourceRef, e.LineNo)
	}
}

func printGRNCheck(out io.Writer, r *app.GRNResult, hasActiveInvoice, canRaise bool) {
	g := r.GRN
	fmt.Fprintf(out, "\nGRN %s (%s) for PR %s\n", g.GRNNumber, g.ID, g.PONumber)
	fmt.Fprintln(out, strings.Repeat("-", 48))
	fmt.Fprintf(out, "  %-28s %s\n", "grn_status", orDash(g.GRNStatus))
	fmt.Fprintf(out, "  %-28s %s\n", "status", orDash(g.Status))
	fmt.Fprintf(out, "  %-28s %t\n", "grn_acknowledged_by_company", g.GRNAcknowledgedByCompany)
	fmt.Fprintf(out, "  %-28s %s\n", "resolved_status", g.ResolvedStatus)
	fmt.Fprintln(out, strings.Repeat("-", 48))
	fmt.Fprintf(out, "  %-28s %t\n", "approved", r.Approved)
	fmt.Fprintf(out, "  %-28s %t\n", "has live invoice", hasActiveInvoice)
	if canRaise {
		fmt.Fprintln(out, "  => invoice CAN be raised")
	} else {
		fmt.Fprintln(out, "  => invoice can NOT be raised")
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
