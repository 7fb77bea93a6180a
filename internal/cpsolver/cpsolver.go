// Package cpsolver implements the optimal cluster solver (spec §4.7,
// component C7): a small branch-and-bound CP search over task start times,
// subject to FS-normalized precedence and a cumulative resource-capacity
// constraint per cluster resource, minimizing makespan.
//
// The capacity check reimplements the time-table filtering with
// compulsory parts used by github.com/gitrdm/gokando's Cumulative
// constraint (see DESIGN.md): the retrieved reference only carried that
// propagator operating against a pre-built Solver/FDVariable pair, not the
// constructors for either, so the algorithm is reproduced natively here
// rather than calling into a solver this codebase cannot correctly build.
package cpsolver

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Task is one schedulable unit within a cluster.
type Task struct {
	Key      string
	Duration int            // working days, > 0
	Demands  map[string]int // resourceID -> scaled demand (units * 100)
}

// Edge is an FS-normalized precedence constraint: start[Succ] >= start[Pred] + duration[Pred] + Lag.
type Edge struct {
	Pred string
	Succ string
	Lag  int
}

// Status is the solver's termination classification (spec §4.7).
type Status int

const (
	StatusOptimal Status = iota
	StatusSatisfiableNotProven
	StatusInfeasible
	StatusUnknown
)

// Solution is the solver's result. RunID identifies this particular solve
// call so callers running many clusters concurrently can correlate a
// solution back to the diagnostic it produced (spec §5 per-cluster
// parallel leveling).
type Solution struct {
	RunID    string
	Starts   map[string]int
	Makespan int
	Status   Status
}

// Solve searches for a minimal-makespan assignment of start times to tasks
// given precedence edges and per-resource capacities (scaled the same way
// as demands). horizon bounds every start time; timeout is a wall-clock
// search budget.
func Solve(ctx context.Context, tasks []Task, edges []Edge, capacities map[string]int, horizon int, timeout time.Duration) (*Solution, error) {
	runID := uuid.New().String()

	if len(tasks) == 0 {
		return &Solution{RunID: runID, Starts: map[string]int{}, Status: StatusOptimal}, nil
	}

	if infeasibleByConstruction(tasks, capacities) {
		return &Solution{RunID: runID, Status: StatusInfeasible}, nil
	}

	order, err := topoOrder(tasks, edges)
	if err != nil {
		return &Solution{RunID: runID, Status: StatusInfeasible}, nil
	}

	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	predecessors := map[string][]Edge{}
	for _, e := range edges {
		predecessors[e.Succ] = append(predecessors[e.Succ], e)
	}
	durations := map[string]int{}
	for _, t := range tasks {
		durations[t.Key] = t.Duration
	}

	s := &search{
		tasks:        indexTasks(tasks),
		order:        order,
		predecessors: predecessors,
		durations:    durations,
		capacities:   capacities,
		horizon:      horizon,
		best:         nil,
		bestMakespan: horizon + 1,
		ctx:          ctx,
	}

	starts := map[string]int{}
	profile := map[string][]int{}
	for res := range capacities {
		profile[res] = make([]int, horizon+1)
	}

	completed := s.search(0, starts, profile, 0)

	if s.best == nil {
		if completed {
			return &Solution{RunID: runID, Status: StatusInfeasible}, nil
		}
		return &Solution{RunID: runID, Status: StatusUnknown}, nil
	}

	status := StatusSatisfiableNotProven
	if completed {
		status = StatusOptimal
	}
	return &Solution{RunID: runID, Starts: s.best, Makespan: s.bestMakespan, Status: status}, nil
}

type taskInfo struct {
	duration int
	demands  map[string]int
}

func indexTasks(tasks []Task) map[string]taskInfo {
	out := make(map[string]taskInfo, len(tasks))
	for _, t := range tasks {
		out[t.Key] = taskInfo{duration: t.Duration, demands: t.Demands}
	}
	return out
}

// infeasibleByConstruction implements spec §4.7's guard: any task whose
// demand for a cluster resource exceeds that resource's capacity makes the
// CP model infeasible regardless of scheduling.
func infeasibleByConstruction(tasks []Task, capacities map[string]int) bool {
	for _, t := range tasks {
		for res, dem := range t.Demands {
			if cap, ok := capacities[res]; ok && dem > cap {
				return true
			}
		}
	}
	return false
}

func topoOrder(tasks []Task, edges []Edge) ([]string, error) {
	inDegree := map[string]int{}
	adj := map[string][]string{}
	for _, t := range tasks {
		inDegree[t.Key] = 0
	}
	for _, e := range edges {
		inDegree[e.Succ]++
		adj[e.Pred] = append(adj[e.Pred], e.Succ)
	}

	var ready []string
	for _, t := range tasks {
		if inDegree[t.Key] == 0 {
			ready = append(ready, t.Key)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		key := ready[0]
		ready = ready[1:]
		order = append(order, key)
		for _, succ := range adj[key] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	if len(order) != len(tasks) {
		return nil, errCyclic
	}
	return order, nil
}

var errCyclic = &cyclicError{}

type cyclicError struct{}

func (e *cyclicError) Error() string { return "cpsolver: cluster precedence graph is cyclic" }

type search struct {
	tasks        map[string]taskInfo
	order        []string
	predecessors map[string][]Edge
	durations    map[string]int
	capacities   map[string]int
	horizon      int

	best         map[string]int
	bestMakespan int

	ctx context.Context
}

// search assigns a start time to tasks[idx] and recurses. It returns true
// iff the search space from this point was fully explored (not cut short
// by the deadline), which Solve uses to distinguish Optimal from
// Satisfiable-but-unproven.
func (s *search) search(idx int, starts map[string]int, profile map[string][]int, partialMakespan int) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}

	if partialMakespan >= s.bestMakespan {
		return true // pruned: can't possibly beat the incumbent
	}

	if idx == len(s.order) {
		snapshot := make(map[string]int, len(starts))
		for k, v := range starts {
			snapshot[k] = v
		}
		s.best = snapshot
		s.bestMakespan = partialMakespan
		return true
	}

	key := s.order[idx]
	info := s.tasks[key]
	earliest := 0
	for _, e := range s.predecessors[key] {
		candidate := starts[e.Pred] + s.durations[e.Pred] + e.Lag
		if candidate > earliest {
			earliest = candidate
		}
	}

	fullyExplored := true
	for start := earliest; start+info.duration <= s.horizon; start++ {
		if !fitsCapacity(info, start, profile, s.capacities) {
			continue
		}

		placeDemand(info, start, profile, 1)
		starts[key] = start
		finish := start + info.duration
		makespan := partialMakespan
		if finish > makespan {
			makespan = finish
		}

		if !s.search(idx+1, starts, profile, makespan) {
			fullyExplored = false
		}

		placeDemand(info, start, profile, -1)
		delete(starts, key)

		select {
		case <-s.ctx.Done():
			return false
		default:
		}
	}

	return fullyExplored
}

func fitsCapacity(info taskInfo, start int, profile map[string][]int, capacities map[string]int) bool {
	for res, dem := range info.demands {
		if dem == 0 {
			continue
		}
		cap := capacities[res]
		row := profile[res]
		for t := start; t < start+info.duration; t++ {
			if t >= len(row) {
				return false
			}
			if row[t]+dem > cap {
				return false
			}
		}
	}
	return true
}

func placeDemand(info taskInfo, start int, profile map[string][]int, sign int) {
	for res, dem := range info.demands {
		if dem == 0 {
			continue
		}
		row := profile[res]
		for t := start; t < start+info.duration && t < len(row); t++ {
			row[t] += sign * dem
		}
	}
}
