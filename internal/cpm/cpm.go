// Package cpm implements the forward/backward Critical Path Method pass
// (spec §4.3, component C3): four dependency kinds, lags, hard
// constraints with a fixed relaxation priority, and calendar materialization.
package cpm

import (
	"fmt"
	"time"

	"github.com/ashgrove/corepath/internal/calendarx"
	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
)

// TaskTiming is the per-leaf CPM result before the progress overlay (C4)
// adjusts it. Offsets are in working days from project.Start; Start/Finish
// are their calendar-date materializations.
type TaskTiming struct {
	Key string

	EarlyStartOffset  int
	EarlyFinishOffset int
	LateStartOffset   int
	LateFinishOffset  int

	EarlyStart  time.Time
	EarlyFinish time.Time
	LateStart   time.Time
	LateFinish  time.Time

	TotalSlack int
	FreeSlack  int
	IsCritical bool

	// ConstraintRelaxed is true when a hard constraint on this task
	// conflicted with its dependency-derived timing and the fixed priority
	// order (MustStartOn/MustFinishOn > StartNoEarlierThan/FinishNoLaterThan
	// > dependency lag) forced the constraint to win (spec §4.3).
	ConstraintRelaxed bool
}

// Result is the full CPM pass output.
type Result struct {
	Timings          map[string]*TaskTiming // leaf key -> timing
	ProjectEndOffset int
	ProjectEnd       time.Time
}

// ErrCPMInvariantViolation is wrapped into the fatal diagnostic emitted
// when a task's total slack computes negative — per spec §3/§7 this must
// never be silently clamped.
var ErrCPMInvariantViolation = fmt.Errorf("cpm: negative slack invariant violated")

// Schedule runs the forward and backward passes over g using cal as the
// project default calendar for offset<->date materialization (spec §4.3;
// the choice of "the project's own calendar" for task-level dates, versus
// a per-resource calendar for assignment windows, is this implementation's
// resolution of the open question in spec §9). Assignment windows are not
// clipped against resource calendars anywhere in this module, and no C011
// diagnostic is emitted.
func Schedule(project *domain.Project, g *graph.Graph, cal *domain.Calendar, emitter domain.Emitter) (*Result, error) {
	if err := calendarx.Validate(cal); err != nil {
		emit(emitter, domain.Diagnostic{
			Code:     calendarx.ValidationDiagnosticCode(err),
			Severity: domain.SeverityFatal,
			Message:  err.Error(),
		})
		return nil, err
	}

	res := &Result{Timings: make(map[string]*TaskTiming, len(g.Leaves))}
	for _, leaf := range g.Leaves {
		res.Timings[leaf.Key] = &TaskTiming{Key: leaf.Key}
	}

	forwardPass(project, g, res, emitter)

	projectEndOffset := 0
	for _, t := range res.Timings {
		if t.EarlyFinishOffset > projectEndOffset {
			projectEndOffset = t.EarlyFinishOffset
		}
	}
	res.ProjectEndOffset = projectEndOffset

	backwardPass(project, g, res, projectEndOffset, emitter)
	computeSlack(g, res, emitter)
	materializeDates(project, g, res, cal)

	end, err := calendarx.AddWorkingDays(project.Start, projectEndOffset, cal)
	if err != nil {
		return nil, err
	}
	res.ProjectEnd = end

	return res, nil
}

func offsetForConstraintDate(project *domain.Project, cal *domain.Calendar, date time.Time) int {
	n, err := calendarx.WorkingDaysBetween(project.Start, date, cal)
	if err != nil {
		return 0
	}
	return int(n)
}

func forwardPass(project *domain.Project, g *graph.Graph, res *Result, emitter domain.Emitter) {
	cal := project.ResolveCalendar("")
	for _, key := range g.TopoOrder {
		leaf := g.LeafByKey(key)
		timing := res.Timings[key]
		duration := leaf.Duration

		esDependency := 0
		for _, e := range g.Predecessors[key] {
			predTiming := res.Timings[e.Predecessor]
			if predTiming == nil {
				continue
			}
			candidate := forwardCandidateES(e, predTiming, duration)
			if candidate > esDependency {
				esDependency = candidate
			}
		}

		es := esDependency
		relaxed := false
		if sneOffset, ok := constraintOffset(leaf.Task, domain.StartNoEarlierThan, project, cal); ok {
			if sneOffset > es {
				es = sneOffset
			}
		}
		if msoOffset, ok := constraintOffset(leaf.Task, domain.MustStartOn, project, cal); ok {
			if msoOffset < es {
				relaxed = true
				emit(emitter, domain.Diagnostic{
					Code:     domain.CodeHardConstraintInfeasible,
					Severity: domain.SeverityError,
					Message:  fmt.Sprintf("task %q: MustStartOn conflicts with dependency-derived earliest start; constraint takes priority", key),
					TaskIDs:  []string{key},
				})
			}
			es = msoOffset
		}

		timing.EarlyStartOffset = es
		timing.EarlyFinishOffset = es + duration
		timing.ConstraintRelaxed = relaxed
	}
}

func forwardCandidateES(e graph.Edge, predTiming *TaskTiming, duration int) int {
	switch e.Kind {
	case domain.FinishToStart:
		return predTiming.EarlyFinishOffset + e.LagDays
	case domain.StartToStart:
		return predTiming.EarlyStartOffset + e.LagDays
	case domain.FinishToFinish:
		return predTiming.EarlyFinishOffset + e.LagDays - duration
	case domain.StartToFinish:
		return predTiming.EarlyStartOffset + e.LagDays - duration
	default:
		return predTiming.EarlyFinishOffset + e.LagDays
	}
}

func backwardPass(project *domain.Project, g *graph.Graph, res *Result, projectEndOffset int, emitter domain.Emitter) {
	cal := project.ResolveCalendar("")
	for i := len(g.TopoOrder) - 1; i >= 0; i-- {
		key := g.TopoOrder[i]
		leaf := g.LeafByKey(key)
		timing := res.Timings[key]
		duration := leaf.Duration

		successors := g.Successors[key]
		lf := minOverSuccessors(g, res, successors, duration, projectEndOffset)
		if fnltOffset, ok := constraintOffset(leaf.Task, domain.FinishNoLaterThan, project, cal); ok {
			if fnltOffset < lf {
				lf = fnltOffset
			}
		}
		if mfoOffset, ok := constraintOffset(leaf.Task, domain.MustFinishOn, project, cal); ok {
			if mfoOffset > lf {
				timing.ConstraintRelaxed = true
				emit(emitter, domain.Diagnostic{
					Code:     domain.CodeHardConstraintInfeasible,
					Severity: domain.SeverityError,
					Message:  fmt.Sprintf("task %q: MustFinishOn conflicts with successor-derived latest finish; constraint takes priority", key),
					TaskIDs:  []string{key},
				})
			}
			lf = mfoOffset
		}

		timing.LateFinishOffset = lf
		timing.LateStartOffset = lf - duration
	}
}

func minOverSuccessors(g *graph.Graph, res *Result, successors []graph.Edge, duration int, projectEndOffset int) int {
	best := projectEndOffset
	first := true
	for _, e := range successors {
		succTiming := res.Timings[e.Successor]
		if succTiming == nil {
			continue
		}
		candidate := backwardCandidateLF(e, succTiming, duration)
		if first || candidate < best {
			best = candidate
			first = false
		}
	}
	return best
}

func backwardCandidateLF(e graph.Edge, succTiming *TaskTiming, duration int) int {
	switch e.Kind {
	case domain.FinishToStart:
		return succTiming.LateStartOffset - e.LagDays
	case domain.StartToStart:
		return succTiming.LateStartOffset - e.LagDays + duration
	case domain.FinishToFinish:
		return succTiming.LateFinishOffset - e.LagDays
	case domain.StartToFinish:
		return succTiming.LateFinishOffset - e.LagDays
	default:
		return succTiming.LateStartOffset - e.LagDays
	}
}

func constraintOffset(t *domain.Task, kind domain.ConstraintKind, project *domain.Project, cal *domain.Calendar) (int, bool) {
	for _, c := range t.Constraints {
		if c.Kind == kind {
			return offsetForConstraintDate(project, cal, c.Date), true
		}
	}
	return 0, false
}

func computeSlack(g *graph.Graph, res *Result, emitter domain.Emitter) {
	for _, leaf := range g.Leaves {
		timing := res.Timings[leaf.Key]
		timing.TotalSlack = timing.LateStartOffset - timing.EarlyStartOffset

		successors := g.Successors[leaf.Key]
		if len(successors) == 0 {
			timing.FreeSlack = timing.TotalSlack
		} else {
			minSuccES := -1
			for _, e := range successors {
				succTiming := res.Timings[e.Successor]
				if succTiming == nil {
					continue
				}
				if minSuccES == -1 || succTiming.EarlyStartOffset < minSuccES {
					minSuccES = succTiming.EarlyStartOffset
				}
			}
			free := minSuccES - timing.EarlyFinishOffset
			if free < 0 {
				free = 0
			}
			timing.FreeSlack = free
		}

		timing.IsCritical = timing.TotalSlack == 0 && leaf.Duration > 0

		if timing.TotalSlack < 0 {
			emit(emitter, domain.Diagnostic{
				Code:     domain.CodeCPMInvariantViolation,
				Severity: domain.SeverityFatal,
				Message:  fmt.Sprintf("%v: task %q: total slack computed negative (%d); a hard constraint or lag made the schedule infeasible", ErrCPMInvariantViolation, leaf.Key, timing.TotalSlack),
				TaskIDs:  []string{leaf.Key},
			})
		}
	}
}

func materializeDates(project *domain.Project, g *graph.Graph, res *Result, cal *domain.Calendar) {
	for _, leaf := range g.Leaves {
		timing := res.Timings[leaf.Key]
		timing.EarlyStart, _ = calendarx.AddWorkingDays(project.Start, timing.EarlyStartOffset, cal)
		timing.EarlyFinish, _ = calendarx.AddWorkingDays(project.Start, timing.EarlyFinishOffset, cal)
		timing.LateStart, _ = calendarx.AddWorkingDays(project.Start, timing.LateStartOffset, cal)
		timing.LateFinish, _ = calendarx.AddWorkingDays(project.Start, timing.LateFinishOffset, cal)
	}
}

// CriticalPath returns the ordered leaf keys with zero slack, in topo
// order (spec §3 project_end/critical_path).
func CriticalPath(g *graph.Graph, res *Result) []string {
	var path []string
	for _, key := range g.TopoOrder {
		if res.Timings[key].IsCritical {
			path = append(path, key)
		}
	}
	return path
}

func emit(emitter domain.Emitter, d domain.Diagnostic) {
	if emitter != nil {
		emitter.Emit(d)
	}
}
