// Package app orchestrates the full scheduling pipeline: calendar
// validation, WBS flattening, the CPM pass, the progress overlay, conflict
// analysis, resource leveling (heuristic and/or optimal), and earned-value
// metrics (spec §2 data flow).
package app

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ashgrove/corepath/internal/calendarx"
	"github.com/ashgrove/corepath/internal/conflict"
	"github.com/ashgrove/corepath/internal/cpm"
	"github.com/ashgrove/corepath/internal/cpsolver"
	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
	"github.com/ashgrove/corepath/internal/leveler"
	"github.com/ashgrove/corepath/internal/metrics"
	"github.com/ashgrove/corepath/internal/progressx"
	"golang.org/x/sync/errgroup"
)

// TaskResult is the per-leaf section of a schedule: CPM timings, the
// progress-aware forecast, and whatever the leveler did to it.
type TaskResult struct {
	Key   string
	ID    string
	Title string

	EarlyStart, EarlyFinish time.Time
	LateStart, LateFinish   time.Time
	TotalSlack, FreeSlack   int
	IsCritical              bool

	ForecastStart, ForecastFinish time.Time
	Status                        domain.TaskStatus
	CompleteFraction              float64

	BaselineStart, BaselineFinish         time.Time
	StartVarianceDays, FinishVarianceDays int

	Leveled        bool
	LevelingReason *leveler.Reason
}

// Result is the full output of Schedule (spec §3/§6).
type Result struct {
	ProjectEnd          time.Time
	ProjectDurationDays int
	CriticalPath        []string
	Tasks               map[string]*TaskResult
	Metrics             metrics.Result
	Diagnostics         []domain.Diagnostic
}

// Options carries per-call overrides for Schedule; leveling is configured
// on the Project itself.
type Options struct {
	// StatusDate overrides project.StatusDate for the progress overlay.
	StatusDate *time.Time
}

// Schedule runs the full pipeline over project and returns the resulting
// Result. It never returns an error for recoverable project-authoring
// problems — those surface as diagnostics on Result.Diagnostics — only for
// a nil project. An unusable calendar yields a Result with no tasks and a
// fatal calendar diagnostic, not an error.
func Schedule(ctx context.Context, project *domain.Project, opts Options) (*Result, error) {
	if project == nil {
		return nil, fmt.Errorf("app: nil project")
	}

	sink := domain.NewSliceEmitter()

	cal := project.ResolveCalendar("")
	if err := calendarx.Validate(cal); err != nil {
		sink.Emit(domain.Diagnostic{
			Code:     calendarx.ValidationDiagnosticCode(err),
			Severity: domain.SeverityFatal,
			Message:  fmt.Sprintf("calendar unusable, returning a best-effort empty schedule: %s", err),
		})
		return &Result{
			Tasks:       map[string]*TaskResult{},
			Diagnostics: sink.Snapshot(),
		}, nil
	}

	g, err := graph.Build(project, sink)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if g.Cyclic {
		sink.Emit(domain.Diagnostic{
			Code:     domain.CodeCircularDependency,
			Severity: domain.SeverityFatal,
			Message:  "dependency graph contains a cycle; returning a best-effort partial schedule",
			TaskIDs:  g.CycleKeys,
		})
	}

	cpmResult, err := cpm.Schedule(project, g, cal, sink)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	overlay := progressx.Compute(project, g, cpmResult, cal, opts.StatusDate, sink)

	leveled := runLeveling(ctx, project, g, cpmResult, overlay, cal, sink)

	metricsResult := metrics.Compute(project, g, overlay, cpmResult.ProjectEndOffset, sink)

	result := &Result{
		ProjectEnd:          cpmResult.ProjectEnd,
		ProjectDurationDays: cpmResult.ProjectEndOffset,
		CriticalPath:        cpm.CriticalPath(g, cpmResult),
		Tasks:               make(map[string]*TaskResult, len(g.Leaves)),
		Metrics:             metricsResult,
		Diagnostics:         sink.Snapshot(),
	}

	for _, leaf := range g.Leaves {
		timing := cpmResult.Timings[leaf.Key]
		lp := overlay.Leaves[leaf.Key]

		tr := &TaskResult{
			Key:                 leaf.Key,
			ID:                  leaf.ID,
			Title:               leaf.Task.Title,
			EarlyStart:          timing.EarlyStart,
			EarlyFinish:         timing.EarlyFinish,
			LateStart:           timing.LateStart,
			LateFinish:          timing.LateFinish,
			TotalSlack:          timing.TotalSlack,
			FreeSlack:           timing.FreeSlack,
			IsCritical:          timing.IsCritical,
			ForecastStart:       lp.ForecastStart,
			ForecastFinish:      lp.ForecastFinish,
			Status:              lp.Status,
			CompleteFraction:    lp.CompleteFraction,
			BaselineStart:       lp.BaselineStart,
			BaselineFinish:      lp.BaselineFinish,
			StartVarianceDays:   lp.StartVarianceDays,
			FinishVarianceDays:  lp.FinishVarianceDays,
		}

		if leveled != nil {
			if placement, ok := leveled.Placements[leaf.Key]; ok {
				tr.ForecastStart = placement.Start
				tr.ForecastFinish = placement.Finish
				tr.Leveled = placement.Delayed
				tr.LevelingReason = placement.Reason
			}
		}

		result.Tasks[leaf.Key] = tr
	}

	return result, nil
}

// runLeveling dispatches to the heuristic leveler and/or the optimal
// cluster solver per project.LevelingMode (spec §4.6/§4.7).
func runLeveling(ctx context.Context, project *domain.Project, g *graph.Graph, cpmResult *cpm.Result, overlay *progressx.Overlay, cal *domain.Calendar, sink domain.Emitter) *leveler.Result {
	if project.LevelingMode == domain.LevelingNone {
		return nil
	}

	heuristic, err := leveler.Level(project, g, cpmResult, cal, sink)
	if err != nil || heuristic == nil {
		return heuristic
	}

	if project.LevelingMode == domain.LevelingHeuristic {
		return heuristic
	}

	windows := forecastWindows(g, overlay, cal)
	report, err := conflict.Analyze(project, g, windows, sink)
	if err != nil {
		return heuristic
	}

	threshold := project.OptimalThreshold
	if threshold <= 0 {
		threshold = 8
	}
	timeoutMS := project.OptimalTimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = 2000
	}

	var eligible []conflict.Cluster
	for _, c := range report.Clusters {
		if len(c.TaskKeys) <= threshold {
			eligible = append(eligible, c)
		}
	}

	// Disjoint clusters share no state (spec §5.1): solve them concurrently,
	// one goroutine per cluster bounded to one per core, then merge the
	// per-cluster placement maps by disjoint-key union once every cluster
	// has finished — clusters are connected components, so their task keys
	// never collide.
	placementSets := make([]map[string]*leveler.Placement, len(eligible))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i, c := range eligible {
		i, c := i, c
		eg.Go(func() error {
			placementSets[i] = solveCluster(egCtx, project, g, cpmResult, c, timeoutMS, sink)
			return nil
		})
	}
	_ = eg.Wait() // solveCluster never returns an error; failures surface as a nil placement set

	for _, placements := range placementSets {
		for key, p := range placements {
			heuristic.Placements[key] = p
		}
	}

	return heuristic
}

// solveCluster attempts the optimal solver for a single cluster and, on an
// Optimal/SatisfiableNotProven result, returns the placements for that
// cluster's tasks (spec §4.7 L005) for the caller to merge; it returns nil
// if the cluster could not be solved. Safe to call from multiple
// goroutines: it only reads project/g/cpmResult and only writes to its own
// local result map.
func solveCluster(ctx context.Context, project *domain.Project, g *graph.Graph, cpmResult *cpm.Result, c conflict.Cluster, timeoutMS int, sink domain.Emitter) map[string]*leveler.Placement {
	tasks := make([]cpsolver.Task, 0, len(c.TaskKeys))
	horizon := 0
	for _, key := range c.TaskKeys {
		leaf := g.LeafByKey(key)
		if leaf == nil {
			return nil
		}
		demands := map[string]int{}
		for _, a := range leaf.Task.Assigned {
			demands[a.ResourceID] = int(a.Units * 100)
		}
		tasks = append(tasks, cpsolver.Task{Key: key, Duration: leaf.Duration, Demands: demands})
		horizon += leaf.Duration
		if t := cpmResult.Timings[key]; t.LateFinishOffset > horizon {
			horizon = t.LateFinishOffset
		}
	}

	var edges []cpsolver.Edge
	for _, key := range c.TaskKeys {
		for _, e := range g.Predecessors[key] {
			if !contains(c.TaskKeys, e.Predecessor) {
				continue
			}
			predLeaf := g.LeafByKey(e.Predecessor)
			succLeaf := g.LeafByKey(key)
			edges = append(edges, cpsolver.Edge{Pred: e.Predecessor, Succ: key, Lag: normalizeLag(e, predLeaf.Duration, succLeaf.Duration)})
		}
	}

	capacities := map[string]int{}
	for _, r := range project.Resources {
		capacities[r.ID] = int(r.Capacity * 100)
	}

	start := timeNow()
	sol, err := cpsolver.Solve(ctx, tasks, edges, capacities, horizon+1, durationMS(timeoutMS))
	if err != nil || sol == nil {
		return nil
	}
	if sol.Status != cpsolver.StatusOptimal && sol.Status != cpsolver.StatusSatisfiableNotProven {
		return nil
	}

	cal := project.ResolveCalendar("")
	placements := make(map[string]*leveler.Placement, len(c.TaskKeys))
	for _, key := range c.TaskKeys {
		leaf := g.LeafByKey(key)
		offset, ok := sol.Starts[key]
		if !ok {
			continue
		}
		startDate, _ := calendarx.AddWorkingDays(project.Start, offset, cal)
		finishDate, _ := calendarx.AddWorkingDays(project.Start, offset+leaf.Duration, cal)
		placements[key] = &leveler.Placement{
			Key:       key,
			StartDay:  offset,
			FinishDay: offset + leaf.Duration,
			Start:     startDate,
			Finish:    finishDate,
			Delayed:   offset != cpmResult.Timings[key].EarlyStartOffset,
		}
	}

	outcome := "optimally"
	if sol.Status == cpsolver.StatusSatisfiableNotProven {
		outcome = "without a proof of optimality"
	}
	sink.Emit(domain.Diagnostic{
		Code:     domain.CodeLevelingOptimalSolved,
		Severity: domain.SeverityInfo,
		Message:  fmt.Sprintf("cluster %s of %d tasks solved %s (run %s) in %s", c.ID, len(c.TaskKeys), outcome, sol.RunID, timeNow().Sub(start)),
		TaskIDs:  c.TaskKeys,
	})

	return placements
}

// normalizeLag rewrites a dependency edge's lag into the FS-normalized form
// the CP solver expects (start_succ >= start_pred + duration_pred + lag),
// per spec §4.7/§9: SS(L) becomes lag L - duration(pred); FF(L) becomes
// lag L - duration(succ); SF(L) becomes lag L - duration(pred) -
// duration(succ) (derived from the same SF forward-pass rule cpm uses:
// candidate ES = pred.ES + L - duration(succ)).
func normalizeLag(e graph.Edge, predDuration, succDuration int) int {
	switch e.Kind {
	case domain.StartToStart:
		return e.LagDays - predDuration
	case domain.FinishToFinish:
		return e.LagDays - succDuration
	case domain.StartToFinish:
		return e.LagDays - predDuration - succDuration
	default: // FinishToStart
		return e.LagDays
	}
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func forecastWindows(g *graph.Graph, overlay *progressx.Overlay, cal *domain.Calendar) map[string]conflict.TaskWindow {
	windows := make(map[string]conflict.TaskWindow, len(g.Leaves))
	for _, leaf := range g.Leaves {
		if leaf.Duration == 0 {
			continue
		}
		lp := overlay.Leaves[leaf.Key]
		lastWorkingDay, err := calendarx.AddWorkingDays(lp.ForecastStart, leaf.Duration-1, cal)
		if err != nil {
			continue
		}
		windows[leaf.Key] = conflict.TaskWindow{Start: lp.ForecastStart, Finish: lastWorkingDay}
	}
	return windows
}

// IsFeasible reports whether project can be scheduled without any fatal
// diagnostic (spec §6 is_feasible).
func IsFeasible(ctx context.Context, project *domain.Project) (bool, error) {
	result, err := Schedule(ctx, project, Options{})
	if err != nil {
		return false, err
	}
	for _, d := range result.Diagnostics {
		if d.Severity == domain.SeverityFatal {
			return false, nil
		}
	}
	return true, nil
}

// ClassifySchedulingMode inspects project to report which scheduling
// regime it exercises (spec §3 SchedulingMode), used by callers that need
// to branch on duration-based vs. effort-based vs. resource-loaded input
// before rendering a schedule.
func ClassifySchedulingMode(project *domain.Project) domain.SchedulingMode {
	hasEffort, hasAssignments := false, false
	var walk func([]*domain.Task)
	walk = func(tasks []*domain.Task) {
		for _, t := range tasks {
			if t.Effort != nil {
				hasEffort = true
			}
			if len(t.Assigned) > 0 {
				hasAssignments = true
			}
			walk(t.Children)
		}
	}
	walk(project.Tasks)

	switch {
	case hasAssignments && len(project.Resources) > 0:
		return domain.ModeResourceLoaded
	case hasEffort:
		return domain.ModeEffortBased
	default:
		return domain.ModeDurationBased
	}
}

func timeNow() time.Time { return time.Now() }

func durationMS(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
