// Package contract is the stable public surface re-exported from
// internal/app and internal/domain: callers outside this module's cmd/
// entry point depend on these aliases rather than reaching into internal/
// packages directly.
package contract

import (
	"github.com/ashgrove/corepath/internal/app"
	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/leveler"
	"github.com/ashgrove/corepath/internal/metrics"
)

type (
	Project    = domain.Project
	Task       = domain.Task
	Resource   = domain.Resource
	Calendar   = domain.Calendar
	Dependency = domain.Dependency
	Constraint = domain.Constraint
	Assignment = domain.Assignment

	Diagnostic     = domain.Diagnostic
	DiagnosticCode = domain.DiagnosticCode
	Severity       = domain.Severity

	Schedule        = app.Result
	TaskResult      = app.TaskResult
	ScheduleOptions = app.Options

	Metrics        = metrics.Result
	LevelingReason = leveler.Reason
)

var (
	StandardCalendar = domain.StandardCalendar
	Run              = app.Schedule
	IsFeasible       = app.IsFeasible
	ClassifyMode     = app.ClassifySchedulingMode
)
