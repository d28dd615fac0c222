package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xuri/excelize/v2"
)

// WriteJSON writes the report to path, creating parent directories as needed.
func WriteJSON(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, data)
}

// Schema returns the JSON Schema describing the report file.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&Report{})
}

// WriteSchema writes the report's JSON Schema to path.
func WriteSchema(path string) error {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report schema: %w", err)
	}
	return writeFile(path, data)
}

// SchemaPath returns the schema file path that sits next to a report path.
func SchemaPath(reportPath string) string {
	return strings.TrimSuffix(reportPath, filepath.Ext(reportPath)) + ".schema.json"
}

const (
	summarySheet = "Summary"
	recordsSheet = "Records"
)

var recordHeaders = []string{
	"Order ID", "PR Number", "Order Type", "Root Cause", "Severity", "Conversion Type",
	"status", "pr_status", "dispatch_status", "delivery_status",
	"unified_status", "unified_pr_status", "unified_pr_status_updated_by",
	"Shipment ID", "Shipment Status", "Recommendation",
}

// WriteXLSX exports the report as a workbook with a summary sheet and one row per record.
func WriteXLSX(path string, report *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return fmt.Errorf("create records sheet: %w", err)
	}

	// set keeps the first cell error; later writes are skipped once one fails.
	var setErr error
	set := func(sheet string, col, r int, v any) {
		if setErr != nil {
			return
		}
		cell, err := excelize.CoordinatesToCellName(col, r)
		if err == nil {
			err = f.SetCellValue(sheet, cell, v)
		}
		if err != nil {
			setErr = fmt.Errorf("write %s cell (%d,%d): %w", sheet, col, r, err)
		}
	}

	row := 1

	set(summarySheet, 1, row, "Correlation ID")
	set(summarySheet, 2, row, report.CorrelationID)
	row++
	set(summarySheet, 1, row, "Generated At")
	set(summarySheet, 2, row, report.GeneratedAt.Format("2006-01-02 15:04:05"))
	row++
	set(summarySheet, 1, row, "Migration Phase")
	set(summarySheet, 2, row, string(report.MigrationPhase))
	row++
	set(summarySheet, 1, row, "Total Candidates")
	set(summarySheet, 2, row, report.Summary.TotalCandidates)
	row += 2

	set(summarySheet, 1, row, "Root Cause")
	set(summarySheet, 2, row, "Count")
	set(summarySheet, 3, row, "Recommendation")
	row++
	for _, cause := range sortedKeys(report.Summary.ByRootCause) {
		set(summarySheet, 1, row, cause)
		set(summarySheet, 2, row, report.Summary.ByRootCause[RootCause(cause)])
		set(summarySheet, 3, row, report.Recommendations[RootCause(cause)])
		row++
	}
	row++
	set(summarySheet, 1, row, "Severity")
	set(summarySheet, 2, row, "Count")
	row++
	for _, sev := range sortedKeys(report.Summary.BySeverity) {
		set(summarySheet, 1, row, sev)
		set(summarySheet, 2, row, report.Summary.BySeverity[Severity(sev)])
		row++
	}
	row++
	set(summarySheet, 1, row, "Conversion Type")
	set(summarySheet, 2, row, "Count")
	row++
	for _, ct := range sortedKeys(report.Summary.ByConversionType) {
		set(summarySheet, 1, row, ct)
		set(summarySheet, 2, row, report.Summary.ByConversionType[ConversionType(ct)])
		row++
	}

	for i, h := range recordHeaders {
		set(recordsSheet, i+1, 1, h)
	}
	for i, rec := range report.Records {
		r := i + 2
		values := []any{
			rec.OrderID, rec.PRNumber, rec.OrderType, string(rec.RootCause), string(rec.Severity), string(rec.ConversionType),
			val(rec.Status), val(rec.PRStatus), val(rec.DispatchStatus), val(rec.DeliveryStatus),
			val(rec.UnifiedStatus), val(rec.UnifiedPRStatus), val(rec.UnifiedPRStatusUpdatedBy),
			val(rec.ShipmentID), val(rec.ShipmentStatus), rec.Recommendation,
		}
		for c, v := range values {
			set(recordsSheet, c+1, r, v)
		}
	}

	if setErr != nil {
		return setErr
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func sortedKeys[K ~string](m map[K]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
