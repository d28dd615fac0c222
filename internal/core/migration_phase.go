package core

// MigrationPhase names where the legacy -> unified status migration currently stands.
type MigrationPhase string

const (
	PhaseLegacyOnly       MigrationPhase = "PHASE_0_LEGACY_ONLY"
	PhaseDualWriteSafe    MigrationPhase = "PHASE_1_DUAL_WRITE_SAFE"
	PhaseSafeModeDisabled MigrationPhase = "PHASE_2_SAFE_MODE_DISABLED"
	PhaseUnifiedPrimary   MigrationPhase = "PHASE_3_UNIFIED_PRIMARY"
	PhaseUnifiedOnly      MigrationPhase = "PHASE_4_UNIFIED_ONLY"
	PhaseUnknown          MigrationPhase = "UNKNOWN"
)

// WriteMode tells lifecycle writers which status representation to write.
type WriteMode int

const (
	WriteLegacyOnly WriteMode = iota
	WriteDual
	WriteUnifiedOnly
)

func (m WriteMode) String() string {
	switch m {
	case WriteLegacyOnly:
		return "legacy-only"
	case WriteUnifiedOnly:
		return "unified-only"
	default:
		return "dual"
	}
}

// WritesLegacy reports whether legacy fields are written in this mode.
func (m WriteMode) WritesLegacy() bool { return m != WriteUnifiedOnly }

// WritesUnified reports whether unified fields are written in this mode.
func (m WriteMode) WritesUnified() bool { return m != WriteLegacyOnly }

// MigrationFlags is the immutable flag state computed once at process start and
// handed to every writer and reader.
type MigrationFlags struct {
	SafeMode    bool           `json:"safe_mode"`
	DualWrite   bool           `json:"dual_write"`
	ReadUnified bool           `json:"read_unified"`
	Phase       MigrationPhase `json:"phase"`
}

// NewMigrationFlags builds the flag state and derives its phase.
func NewMigrationFlags(safeMode, dualWrite, readUnified bool) MigrationFlags {
	return MigrationFlags{
		SafeMode:    safeMode,
		DualWrite:   dualWrite,
		ReadUnified: readUnified,
		Phase:       DerivePhase(safeMode, dualWrite, readUnified),
	}
}

// DerivePhase maps the three toggles onto a migration phase. Combinations outside
// the migration plan are UNKNOWN rather than rejected.
func DerivePhase(safeMode, dualWrite, readUnified bool) MigrationPhase {
	switch {
	case safeMode && !dualWrite && !readUnified:
		return PhaseLegacyOnly
	case safeMode && dualWrite && !readUnified:
		return PhaseDualWriteSafe
	case !safeMode && dualWrite && !readUnified:
		return PhaseSafeModeDisabled
	case !safeMode && dualWrite && readUnified:
		return PhaseUnifiedPrimary
	case !safeMode && !dualWrite && readUnified:
		return PhaseUnifiedOnly
	default:
		return PhaseUnknown
	}
}

// WriteMode returns the representation writers must produce. UNKNOWN keeps both
// representations current so no reader loses data while the flags are fixed.
func (f MigrationFlags) WriteMode() WriteMode {
	switch f.Phase {
	case PhaseLegacyOnly:
		return WriteLegacyOnly
	case PhaseUnifiedOnly:
		return WriteUnifiedOnly
	default:
		return WriteDual
	}
}

// PreferUnified reports whether readers treat the unified fields as the source of truth.
func (f MigrationFlags) PreferUnified() bool {
	return f.Phase == PhaseUnifiedPrimary || f.Phase == PhaseUnifiedOnly
}
