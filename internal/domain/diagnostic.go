package domain

import (
	"sync"

	"github.com/google/uuid"
)

// DiagnosticCode is a structured identifier from the catalog in spec §6:
// E### circular/duplicate, W### warnings, C### calendar, L### leveling,
// P### progress, R### regime, I### info/summary, H### hints.
type DiagnosticCode string

const (
	CodeCircularDependency      DiagnosticCode = "E001"
	CodeDuplicateTaskID         DiagnosticCode = "E004"
	CodeContainerDepNotMirrored DiagnosticCode = "W014"
	CodeZeroWorkingHours        DiagnosticCode = "C001"
	CodeNoWorkingDays           DiagnosticCode = "C002"
	CodeTaskOnNonWorkingDay     DiagnosticCode = "C010"
	CodeCalendarMismatch        DiagnosticCode = "C011"
	CodeLowAvailability         DiagnosticCode = "C020"
	CodeSuspiciousHours         DiagnosticCode = "C022"
	CodeRedundantHoliday        DiagnosticCode = "C023"
	CodeLevelingResolved        DiagnosticCode = "L001"
	CodeLevelingUnresolvable    DiagnosticCode = "L002"
	CodeLevelingCascading       DiagnosticCode = "L003"
	CodeLevelingSummary         DiagnosticCode = "L004"
	CodeLevelingOptimalSolved   DiagnosticCode = "L005"
	CodeRemainingCompleteConflict DiagnosticCode = "P005"
	CodeContainerCompleteOverride DiagnosticCode = "P006"
	CodeRegimeMismatch          DiagnosticCode = "R001"
	CodeEarnedValueSummary      DiagnosticCode = "I005"
	CodeZeroLengthPlaceholder   DiagnosticCode = "H001"
	CodeMissingDependency       DiagnosticCode = "E010"
	CodeCPMInvariantViolation   DiagnosticCode = "E020"
	CodeHardConstraintInfeasible DiagnosticCode = "E021"
)

// Diagnostic is the single structured value emitted through the sink
// (spec §6: "a single operation emit(diagnostic)").
type Diagnostic struct {
	// InstanceID uniquely identifies this emitted diagnostic, so a caller
	// correlating diagnostics from concurrently-leveled clusters (spec §5)
	// can tell two occurrences of the same Code apart. Assigned by the
	// emitter, not by the component raising the diagnostic.
	InstanceID string
	Code       DiagnosticCode
	Severity   Severity
	Message    string
	TaskIDs    []string // the offending leaf(s), when applicable
	Hint       string
}

// Emitter is the caller-supplied diagnostic sink (spec §6/§5). Implementations
// must tolerate concurrent Emit calls when per-cluster leveling runs in
// parallel (spec §5); within one cluster, emission order is preserved by the
// caller serializing its own emits before handing them to a shared sink.
type Emitter interface {
	Emit(d Diagnostic)
}

// SliceEmitter is a simple Emitter backed by an in-memory, append-only
// slice, guarded by a mutex so it is safe to share across the goroutines
// spawned by per-cluster leveling.
type SliceEmitter struct {
	mu          sync.Mutex
	Diagnostics []Diagnostic
}

// NewSliceEmitter returns a ready-to-use SliceEmitter.
func NewSliceEmitter() *SliceEmitter {
	return &SliceEmitter{}
}

// Emit appends d to the diagnostics slice under a lightweight lock,
// stamping an InstanceID if the caller didn't already set one.
func (e *SliceEmitter) Emit(d Diagnostic) {
	if d.InstanceID == "" {
		d.InstanceID = uuid.New().String()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Diagnostics = append(e.Diagnostics, d)
}

// Snapshot returns a copy of the diagnostics collected so far.
func (e *SliceEmitter) Snapshot() []Diagnostic {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Diagnostic, len(e.Diagnostics))
	copy(out, e.Diagnostics)
	return out
}
