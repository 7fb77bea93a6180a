// Package leveler implements the heuristic resource leveler (spec §4.6,
// component C6): a serial-generation-scheme placement pass that delays
// tasks only as much as needed to keep per-(resource, day) load within
// capacity, reporting a structured reason for every delay.
package leveler

import (
	"fmt"
	"sort"
	"time"

	"github.com/ashgrove/corepath/internal/calendarx"
	"github.com/ashgrove/corepath/internal/cpm"
	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
)

// Reason records why a task's leveled placement differs from its CPM
// early start (spec §4.6 "structured LevelingReason").
type Reason struct {
	Code         domain.LevelingReasonCode
	ResourceIDs  []string
	PeakCells    []string // "resourceID|date" cells; Level does not fill it, so it is always empty
	PreLevelDate time.Time
}

// Placement is a task's leveled window.
type Placement struct {
	Key        string
	StartDay   int // working-day offset from project.Start
	FinishDay  int
	Start      time.Time
	Finish     time.Time
	Delayed    bool
	Overrun    bool // placed past its CPM late start (spec §4.6 step 5)
	Reason     *Reason
}

// Result is the full leveling pass output.
type Result struct {
	Placements map[string]*Placement
}

// Level runs the serial generation scheme over every leaf in g, honoring
// cpmResult's precedence-derived earliest starts and late-start budgets.
func Level(project *domain.Project, g *graph.Graph, cpmResult *cpm.Result, cal *domain.Calendar, emitter domain.Emitter) (*Result, error) {
	result := &Result{Placements: make(map[string]*Placement, len(g.Leaves))}

	inDegree := make(map[string]int, len(g.Leaves))
	for _, leaf := range g.Leaves {
		inDegree[leaf.Key] = len(g.Predecessors[leaf.Key])
	}

	// occupancy[resourceID][dateKey] = units committed so far.
	occupancy := map[string]map[string]float64{}

	var ready []string
	for _, leaf := range g.Leaves {
		if inDegree[leaf.Key] == 0 {
			ready = append(ready, leaf.Key)
		}
	}

	placed := map[string]bool{}
	delayedCount := 0

	for len(ready) > 0 {
		sortReady(ready, g, cpmResult, result)
		key := ready[0]
		ready = ready[1:]
		if placed[key] {
			continue
		}
		leaf := g.LeafByKey(key)
		timing := cpmResult.Timings[key]

		earliestStart := predecessorDerivedStart(g, result, key, timing)
		placement, overrun := placeTask(project, leaf, earliestStart, timing.LateStartOffset, occupancy, cal)
		placement.Key = key

		if placement.StartDay != timing.EarlyStartOffset {
			delayedCount++
			placement.Delayed = true
			placement.Overrun = overrun
			code := domain.ReasonResourceOverallocated
			if placement.StartDay == earliestStart && earliestStart > timing.EarlyStartOffset {
				code = domain.ReasonPredecessorDelayed
			}
			placement.Reason = &Reason{
				Code:         code,
				ResourceIDs:  assignedResourceIDs(leaf.Task),
				PreLevelDate: timing.EarlyStart,
			}
			if overrun {
				emit(emitter, domain.Diagnostic{
					Code:     domain.CodeLevelingUnresolvable,
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("task %q could not be leveled within its slack; placed with an overrun", key),
					TaskIDs:  []string{key},
				})
			} else {
				emit(emitter, domain.Diagnostic{
					Code:     domain.CodeLevelingResolved,
					Severity: domain.SeverityInfo,
					Message:  fmt.Sprintf("task %q delayed from %s to resolve a resource conflict", key, timing.EarlyStart.Format("2006-01-02")),
					TaskIDs:  []string{key},
				})
			}
		}

		result.Placements[key] = placement
		commitOccupancy(leaf, placement, occupancy, cal)
		placed[key] = true

		for _, e := range g.Successors[key] {
			inDegree[e.Successor]--
			if inDegree[e.Successor] == 0 {
				ready = append(ready, e.Successor)
			}
		}
	}

	emit(emitter, domain.Diagnostic{
		Code:     domain.CodeLevelingSummary,
		Severity: domain.SeverityInfo,
		Message:  fmt.Sprintf("leveling pass delayed %d of %d tasks", delayedCount, len(g.Leaves)),
	})

	return result, nil
}

// sortReady applies the priority-queue ordering of spec §4.6 step 1:
// earliest eligible start, then total slack ascending, then qualified id.
func sortReady(ready []string, g *graph.Graph, cpmResult *cpm.Result, result *Result) {
	sort.SliceStable(ready, func(i, j int) bool {
		ti, tj := cpmResult.Timings[ready[i]], cpmResult.Timings[ready[j]]
		esi := predecessorDerivedStart(g, result, ready[i], ti)
		esj := predecessorDerivedStart(g, result, ready[j], tj)
		if esi != esj {
			return esi < esj
		}
		if ti.TotalSlack != tj.TotalSlack {
			return ti.TotalSlack < tj.TotalSlack
		}
		return ready[i] < ready[j]
	})
}

func predecessorDerivedStart(g *graph.Graph, result *Result, key string, timing *cpm.TaskTiming) int {
	best := timing.EarlyStartOffset
	for _, e := range g.Predecessors[key] {
		p := result.Placements[e.Predecessor]
		if p == nil {
			continue
		}
		candidate := p.FinishDay + e.LagDays
		switch e.Kind {
		case domain.StartToStart:
			candidate = p.StartDay + e.LagDays
		case domain.FinishToFinish, domain.StartToFinish:
			candidate = p.FinishDay + e.LagDays
		}
		if candidate > best {
			best = candidate
		}
	}
	return best
}

func assignedResourceIDs(t *domain.Task) []string {
	ids := make([]string, 0, len(t.Assigned))
	for _, a := range t.Assigned {
		ids = append(ids, a.ResourceID)
	}
	sort.Strings(ids)
	return ids
}

// placeTask finds the first working-day window at or after earliestStart
// where every assigned resource has spare capacity for the task's full
// duration. If no such window exists before lateStart, it places at the
// earliest feasible window anyway and reports an overrun (spec §4.6 step 5).
func placeTask(project *domain.Project, leaf *graph.Leaf, earliestStart, lateStart int, occupancy map[string]map[string]float64, cal *domain.Calendar) (*Placement, bool) {
	if len(leaf.Task.Assigned) == 0 {
		start := earliestStart
		finish := start + leaf.Duration
		return materialize(project, start, finish, cal), start > lateStart
	}

	for candidate := earliestStart; candidate <= lateStart+leaf.Duration+365; candidate++ {
		if fits(project, leaf, candidate, occupancy, cal) {
			finish := candidate + leaf.Duration
			return materialize(project, candidate, finish, cal), candidate > lateStart
		}
	}
	// Exhausted the search horizon: place at earliestStart and accept the
	// overrun rather than fail the whole pass.
	finish := earliestStart + leaf.Duration
	return materialize(project, earliestStart, finish, cal), true
}

func fits(project *domain.Project, leaf *graph.Leaf, startOffset int, occupancy map[string]map[string]float64, cal *domain.Calendar) bool {
	days, err := offsetsToDates(project, startOffset, leaf.Duration, cal)
	if err != nil {
		return false
	}
	for _, a := range leaf.Task.Assigned {
		res := project.ResourceByID(a.ResourceID)
		capacity := 1.0
		if res != nil {
			capacity = res.Capacity
		}
		for _, day := range days {
			used := occupancy[a.ResourceID][dateKey(day)]
			if used+a.Units > capacity {
				return false
			}
		}
	}
	return true
}

func commitOccupancy(leaf *graph.Leaf, placement *Placement, occupancy map[string]map[string]float64, cal *domain.Calendar) {
	if len(leaf.Task.Assigned) == 0 || leaf.Duration == 0 {
		return
	}
	days, err := workingDaysFromStart(placement.Start, leaf.Duration, cal)
	if err != nil {
		return
	}
	for _, a := range leaf.Task.Assigned {
		if occupancy[a.ResourceID] == nil {
			occupancy[a.ResourceID] = map[string]float64{}
		}
		for _, day := range days {
			occupancy[a.ResourceID][dateKey(day)] += a.Units
		}
	}
}

// workingDaysFromStart returns the actual working days a task occupies:
// duration working days beginning at start. The materialized EF convention
// (spec §4.3) puts the EF date one working day past the task's last day of
// work, so this stops at duration-1, not duration, to avoid counting the
// next task's first day as occupied.
func workingDaysFromStart(start time.Time, duration int, cal *domain.Calendar) ([]time.Time, error) {
	if duration <= 0 {
		return nil, nil
	}
	lastDay, err := calendarx.AddWorkingDays(start, duration-1, cal)
	if err != nil {
		return nil, err
	}
	return calendarx.EnumerateWorkingDays(start, lastDay, cal)
}

func offsetsToDates(project *domain.Project, startOffset, duration int, cal *domain.Calendar) ([]time.Time, error) {
	start, err := calendarx.AddWorkingDays(project.Start, startOffset, cal)
	if err != nil {
		return nil, err
	}
	return workingDaysFromStart(start, duration, cal)
}

func materialize(project *domain.Project, startOffset, finishOffset int, cal *domain.Calendar) *Placement {
	start, _ := calendarx.AddWorkingDays(project.Start, startOffset, cal)
	finish, _ := calendarx.AddWorkingDays(project.Start, finishOffset, cal)
	return &Placement{
		StartDay:  startOffset,
		FinishDay: finishOffset,
		Start:     start,
		Finish:    finish,
	}
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func emit(emitter domain.Emitter, d domain.Diagnostic) {
	if emitter != nil {
		emitter.Emit(d)
	}
}
