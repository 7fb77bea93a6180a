package domain

// DependencyKind is one of the four CPM relation types between a
// predecessor and a successor task.
type DependencyKind string

const (
	FinishToStart  DependencyKind = "FS"
	StartToStart   DependencyKind = "SS"
	FinishToFinish DependencyKind = "FF"
	StartToFinish  DependencyKind = "SF"
)

// ConstraintKind is a hard date constraint placed directly on a task.
type ConstraintKind string

const (
	MustStartOn         ConstraintKind = "must_start_on"
	MustFinishOn        ConstraintKind = "must_finish_on"
	StartNoEarlierThan  ConstraintKind = "start_no_earlier_than"
	FinishNoLaterThan   ConstraintKind = "finish_no_later_than"
)

// Regime classifies how a task's timing is interpreted.
type Regime string

const (
	RegimeWork     Regime = "work"
	RegimeEvent    Regime = "event"
	RegimeDeadline Regime = "deadline"
)

// TaskStatus is an explicit status override; absent means derive from
// progress fields.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusComplete   TaskStatus = "complete"
)

// LevelingMode selects which resource-leveling strategy schedule() applies.
type LevelingMode string

const (
	LevelingNone        LevelingMode = "none"
	LevelingHeuristic   LevelingMode = "heuristic"
	LevelingOptimalOnly LevelingMode = "optimal_only"
	LevelingHybrid      LevelingMode = "hybrid"
)

// CostPolicy selects how a task's cost is derived when a range is given.
type CostPolicy string

const (
	CostMidpoint CostPolicy = "midpoint"
	CostMin      CostPolicy = "min"
	CostMax      CostPolicy = "max"
	CostExpected CostPolicy = "expected"
)

// SchedulingMode is the classification returned by ClassifySchedulingMode.
type SchedulingMode string

const (
	ModeDurationBased SchedulingMode = "duration_based"
	ModeEffortBased   SchedulingMode = "effort_based"
	ModeResourceLoaded SchedulingMode = "resource_loaded"
)

// RiskLevel mirrors the project-health indicator derived from SPI/variance.
type RiskLevel string

const (
	RiskOnTrack  RiskLevel = "on_track"
	RiskAtRisk   RiskLevel = "at_risk"
	RiskBehind   RiskLevel = "behind"
)

// Severity grades a Diagnostic.
type Severity string

const (
	SeverityFatal Severity = "fatal"
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
	SeverityHint  Severity = "hint"
	SeverityInfo  Severity = "info"
)

// LevelingReasonCode classifies why the leveler delayed a task.
type LevelingReasonCode string

const (
	ReasonResourceOverallocated LevelingReasonCode = "resource_overallocated"
	ReasonPredecessorDelayed    LevelingReasonCode = "predecessor_delayed"
	ReasonHardConstraint        LevelingReasonCode = "hard_constraint"
)
