// Package progressx implements the progress-aware overlay (spec §4.4,
// component C4): per-task forecast dates driven by actual/complete/
// explicit-remaining fields, container roll-up, and baseline variance.
package progressx

import (
	"math"
	"time"

	"github.com/ashgrove/corepath/internal/calendarx"
	"github.com/ashgrove/corepath/internal/cpm"
	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
)

// LeafProgress is the forecast overlay computed for a single leaf task.
type LeafProgress struct {
	Key string

	Status           domain.TaskStatus
	ForecastStart    time.Time
	ForecastFinish   time.Time
	RemainingDays    float64
	CompleteFraction float64 // 0..1, used by metrics EV rollup

	BaselineStart      time.Time
	BaselineFinish     time.Time
	StartVarianceDays  int
	FinishVarianceDays int
}

// ContainerProgress is the effort-weighted roll-up for a WBS container.
type ContainerProgress struct {
	Key              string
	CompleteFraction float64
	Derived          bool // false when an explicit override (P006) won
}

// Overlay is the full progress-aware result for a project.
type Overlay struct {
	StatusDate time.Time
	Leaves     map[string]*LeafProgress
	Containers map[string]*ContainerProgress
}

// Compute applies spec §4.4 over every leaf in g, using cpmResult for the
// pre-progress (baseline) ES/EF dates. statusOverride, when non-nil, wins
// over project.StatusDate per the resolution order explicit override >
// project.StatusDate > today.
func Compute(project *domain.Project, g *graph.Graph, cpmResult *cpm.Result, cal *domain.Calendar, statusOverride *time.Time, emitter domain.Emitter) *Overlay {
	statusDate := resolveStatusDate(project, statusOverride)

	overlay := &Overlay{
		StatusDate: statusDate,
		Leaves:     make(map[string]*LeafProgress, len(g.Leaves)),
		Containers: make(map[string]*ContainerProgress),
	}

	for _, leaf := range g.Leaves {
		overlay.Leaves[leaf.Key] = computeLeaf(leaf, cpmResult.Timings[leaf.Key], cal, statusDate, emitter)
	}

	computeContainers(project, g, overlay, emitter)

	return overlay
}

func resolveStatusDate(project *domain.Project, override *time.Time) time.Time {
	if override != nil {
		return *override
	}
	if project.StatusDate != nil {
		return *project.StatusDate
	}
	return time.Now()
}

func computeLeaf(leaf *graph.Leaf, timing *cpm.TaskTiming, cal *domain.Calendar, statusDate time.Time, emitter domain.Emitter) *LeafProgress {
	task := leaf.Task
	duration := float64(leaf.Duration)

	p := &LeafProgress{
		Key:            leaf.Key,
		BaselineStart:  timing.EarlyStart,
		BaselineFinish: timing.EarlyFinish,
	}

	completePct := 0.0
	if task.Complete != nil {
		completePct = *task.Complete
	}

	switch {
	case task.Complete != nil && *task.Complete >= 100:
		p.Status = domain.StatusComplete
		p.CompleteFraction = 1
		p.RemainingDays = 0
		p.ForecastStart = timing.EarlyStart
		if task.ActualFinish != nil {
			p.ForecastFinish = *task.ActualFinish
		} else {
			p.ForecastFinish = timing.EarlyFinish
		}

	case task.ActualStart != nil:
		p.Status = domain.StatusInProgress
		p.CompleteFraction = completePct / 100
		derivedRemaining := duration * (1 - completePct/100)
		p.RemainingDays = resolveRemaining(task, derivedRemaining, duration, leaf.Key, emitter)
		p.ForecastStart = *task.ActualStart
		base := p.ForecastStart
		if statusDate.After(base) {
			base = statusDate
		}
		p.ForecastFinish = addDays(base, p.RemainingDays, cal)

	case task.Complete != nil && *task.Complete > 0:
		p.Status = domain.StatusInProgress
		p.CompleteFraction = completePct / 100
		p.ForecastStart = timing.EarlyStart
		p.RemainingDays = duration * (1 - completePct/100)
		p.ForecastFinish = addDays(p.ForecastStart, p.RemainingDays, cal)

	default:
		p.Status = domain.StatusNotStarted
		p.CompleteFraction = 0
		p.ForecastStart = timing.EarlyStart
		if statusDate.After(p.ForecastStart) {
			p.ForecastStart = statusDate
		}
		p.RemainingDays = duration
		p.ForecastFinish = addDays(p.ForecastStart, p.RemainingDays, cal)
	}

	p.StartVarianceDays = calendarDayDiff(p.ForecastStart, p.BaselineStart)
	p.FinishVarianceDays = calendarDayDiff(p.ForecastFinish, p.BaselineFinish)

	return p
}

// resolveRemaining applies the >10%-disagreement precedence rule: when
// explicit_remaining and the complete-derived remaining disagree by more
// than 10% of duration, explicit_remaining wins and P005 is emitted.
func resolveRemaining(task *domain.Task, derived, duration float64, key string, emitter domain.Emitter) float64 {
	if task.ExplicitRemaining == nil {
		return derived
	}
	explicit := *task.ExplicitRemaining
	if duration > 0 && math.Abs(explicit-derived)/duration > 0.10 {
		emit(emitter, domain.Diagnostic{
			Code:     domain.CodeRemainingCompleteConflict,
			Severity: domain.SeverityWarn,
			Message:  "task " + key + ": explicit_remaining and complete-derived remaining disagree by more than 10%; explicit_remaining wins",
			TaskIDs:  []string{key},
		})
	}
	return explicit
}

func addDays(base time.Time, remaining float64, cal *domain.Calendar) time.Time {
	n := int(math.Ceil(remaining))
	t, err := calendarx.AddWorkingDays(base, n, cal)
	if err != nil {
		return base
	}
	return t
}

func calendarDayDiff(a, b time.Time) int {
	return int(math.Round(a.Sub(b).Hours() / 24))
}

// computeContainers rolls up effort-weighted percent-complete bottom-up
// over the WBS forest (spec §4.4 "container percent-complete").
func computeContainers(project *domain.Project, g *graph.Graph, overlay *Overlay, emitter domain.Emitter) {
	// ContainerToLeaves already lists every leaf beneath each container,
	// so the weighted sum can be computed directly without a second walk.
	for containerKey, leafKeys := range g.ContainerToLeaves {
		var weightedSum, totalWeight float64
		for _, lk := range leafKeys {
			leaf := g.LeafByKey(lk)
			if leaf == nil {
				continue
			}
			weight := float64(leaf.Duration)
			totalWeight += weight
			weightedSum += weight * overlay.Leaves[lk].CompleteFraction
		}

		derived := 0.0
		if totalWeight > 0 {
			derived = weightedSum / totalWeight
		}

		cp := &ContainerProgress{Key: containerKey, CompleteFraction: derived, Derived: true}

		if task := g.ContainerTasks[containerKey]; task != nil && task.Complete != nil {
			explicitFrac := *task.Complete / 100
			if math.Abs(explicitFrac-derived)*100 > 10 {
				emit(emitter, domain.Diagnostic{
					Code:     domain.CodeContainerCompleteOverride,
					Severity: domain.SeverityWarn,
					Message:  "container " + containerKey + ": explicit complete diverges from derived roll-up by more than 10%; explicit value wins",
					TaskIDs:  []string{containerKey},
				})
				cp.CompleteFraction = explicitFrac
				cp.Derived = false
			}
		}

		overlay.Containers[containerKey] = cp
	}
}

func emit(emitter domain.Emitter, d domain.Diagnostic) {
	if emitter != nil {
		emitter.Emit(d)
	}
}
