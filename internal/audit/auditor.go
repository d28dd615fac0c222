package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"procurement-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Auditor runs one cascade integrity audit.
type Auditor struct {
	source Source
	rules  []Rule
	flags  core.MigrationFlags
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewAuditor(source Source, flags core.MigrationFlags, logger logrus.FieldLogger) *Auditor {
	return &Auditor{
		source: source,
		rules:  DefaultRules,
		flags:  flags,
		logger: logger.WithField("component", "CascadeIntegrityAuditor"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run loads candidates, classifies each and returns the report. It never writes to
// the database.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	correlationID := uuid.NewString()
	log := a.logger.WithField("correlation_id", correlationID)
	log.WithField("migration_phase", a.flags.Phase).Info("cascade integrity audit started")

	candidates, err := a.source.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	report := &Report{
		CorrelationID:   correlationID,
		GeneratedAt:     a.now(),
		DryRun:          true,
		MigrationPhase:  a.flags.Phase,
		Recommendations: Recommendations,
		Records:         make([]Finding, 0, len(candidates)),
		Summary: Summary{
			TotalCandidates:  len(candidates),
			ByRootCause:      make(map[RootCause]int),
			BySeverity:       make(map[Severity]int),
			ByConversionType: make(map[ConversionType]int),
		},
	}

	for i := range candidates {
		f := Classify(&candidates[i], a.rules)
		report.Records = append(report.Records, f)
		report.Summary.ByRootCause[f.RootCause]++
		report.Summary.BySeverity[f.Severity]++
		report.Summary.ByConversionType[f.ConversionType]++

		log.WithFields(logrus.Fields{
			"order_id":   f.OrderID,
			"pr_number":  f.PRNumber,
			"root_cause": f.RootCause,
			"severity":   f.Severity,
		}).Debug("candidate classified")
	}

	sort.SliceStable(report.Records, func(i, j int) bool {
		ri, rj := severityRank(report.Records[i].Severity), severityRank(report.Records[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return report.Records[i].PRNumber < report.Records[j].PRNumber
	})

	log.WithFields(logrus.Fields{
		"total":         report.Summary.TotalCandidates,
		"by_root_cause": report.Summary.ByRootCause,
		"by_severity":   report.Summary.BySeverity,
	}).Info("cascade integrity audit finished")
	return report, nil
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	}
	return 0
}
