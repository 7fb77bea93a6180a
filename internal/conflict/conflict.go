// Package conflict implements the BDD/SAT-based resource-conflict analyzer
// (spec §4.5, component C5): per-(resource, day) overallocation detection,
// connected-component clustering, and a Boolean satisfiability witness
// search proving each cluster is resolvable by shifting some participants.
package conflict

import (
	"fmt"
	"sort"
	"time"

	"github.com/ashgrove/corepath/internal/calendarx"
	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
	"github.com/google/uuid"
)

// Cell is an overallocated (resource, working-day) slot.
type Cell struct {
	ResourceID string
	Day        time.Time
	Required   float64
	Available  float64
	TaskKeys   []string
}

// Cluster is a connected component of tasks that share at least one
// overallocated cell, plus the witness shift set proving it is resolvable.
type Cluster struct {
	// ID is a synthetic identifier (not derived from task/resource data)
	// used to correlate this cluster across the conflict report and the
	// optimal-solver diagnostics it feeds (spec §4.5/§4.7).
	ID                 string
	TaskKeys           []string
	Cells              []Cell
	ContentionEstimate float64 // (|tasks| / |resources|) - 1, clamped [0,1]
	Shift              map[string]bool // task key -> should shift, from the SAT witness
}

// Report is the full conflict-analysis result.
type Report struct {
	Cells         []Cell
	Clusters      []Cluster
	Unconstrained []string // leaf keys touching no conflict
}

// TaskWindow is the working-day span a task actually occupies: Start and
// Finish are both inclusive working days (unlike the CPM EF convention,
// which lands one working day past the last day of work — callers must
// subtract that trailing day before building a TaskWindow).
type TaskWindow struct {
	Start  time.Time
	Finish time.Time
}

// Analyze builds the overallocation map, clusters it, and proves each
// cluster resolvable via a SAT witness search.
func Analyze(project *domain.Project, g *graph.Graph, windows map[string]TaskWindow, emitter domain.Emitter) (*Report, error) {
	cellIndex := map[string]*Cell{} // "resourceID|day" -> cell
	var cellOrder []string

	for _, leaf := range g.Leaves {
		w, ok := windows[leaf.Key]
		if !ok || len(leaf.Task.Assigned) == 0 {
			continue
		}
		cal := project.ResolveCalendar("")
		days, err := calendarx.EnumerateWorkingDays(w.Start, w.Finish, cal)
		if err != nil {
			return nil, fmt.Errorf("conflict: enumerate working days for %q: %w", leaf.Key, err)
		}
		for _, assignment := range leaf.Task.Assigned {
			for _, day := range days {
				key := cellKey(assignment.ResourceID, day)
				cell, exists := cellIndex[key]
				if !exists {
					cell = &Cell{ResourceID: assignment.ResourceID, Day: day}
					cellIndex[key] = cell
					cellOrder = append(cellOrder, key)
				}
				cell.Required += assignment.Units
				cell.TaskKeys = append(cell.TaskKeys, leaf.Key)
			}
		}
	}

	report := &Report{}
	touching := map[string]bool{}
	for _, key := range cellOrder {
		cell := cellIndex[key]
		res := project.ResourceByID(cell.ResourceID)
		capacity := 1.0
		if res != nil {
			capacity = res.Capacity
		}
		cell.Available = capacity
		if cell.Required > capacity {
			sort.Strings(cell.TaskKeys)
			report.Cells = append(report.Cells, *cell)
			for _, tk := range cell.TaskKeys {
				touching[tk] = true
			}
		}
	}

	report.Clusters = cluster(report.Cells, len(project.Resources))

	for _, leaf := range g.Leaves {
		if !touching[leaf.Key] {
			report.Unconstrained = append(report.Unconstrained, leaf.Key)
		}
	}
	sort.Strings(report.Unconstrained)

	return report, nil
}

func cellKey(resourceID string, day time.Time) string {
	return resourceID + "|" + day.Format("2006-01-02")
}

// cluster groups tasks into connected components using the overallocated
// cells as hyperedges (two tasks are adjacent iff they co-occur in a cell),
// then searches for a satisfying shift witness per cluster.
func cluster(cells []Cell, resourceCount int) []Cluster {
	parent := map[string]string{}
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, cell := range cells {
		for i := 1; i < len(cell.TaskKeys); i++ {
			union(cell.TaskKeys[0], cell.TaskKeys[i])
		}
		if len(cell.TaskKeys) == 1 {
			find(cell.TaskKeys[0])
		}
	}

	groups := map[string][]string{}
	for key := range parent {
		root := find(key)
		groups[root] = append(groups[root], key)
	}
	cellsByRoot := map[string][]Cell{}
	for _, cell := range cells {
		if len(cell.TaskKeys) == 0 {
			continue
		}
		root := find(cell.TaskKeys[0])
		cellsByRoot[root] = append(cellsByRoot[root], cell)
	}

	var roots []string
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	var clusters []Cluster
	for _, root := range roots {
		taskKeys := groups[root]
		sort.Strings(taskKeys)
		clusterCells := cellsByRoot[root]

		contention := 0.0
		if resourceCount > 0 {
			contention = float64(len(taskKeys))/float64(resourceCount) - 1
		}
		if contention < 0 {
			contention = 0
		}
		if contention > 1 {
			contention = 1
		}

		clusters = append(clusters, Cluster{
			ID:                 uuid.New().String(),
			TaskKeys:           taskKeys,
			Cells:              clusterCells,
			ContentionEstimate: contention,
			Shift:              satWitness(taskKeys, clusterCells),
		})
	}
	return clusters
}

// satWitness finds a Boolean assignment (one shift_i variable per task) that
// satisfies, for every conflict cell, the clause OR(shift_i for i in cell).
// Every cluster is searched here, whatever its size (the optimal_threshold
// filter is applied later, by the caller of Analyze), with a backtracking
// search over the participant set; ties prefer leaving the lexicographically
// earlier task unshifted so the earliest-id task is disturbed least.
func satWitness(taskKeys []string, cells []Cell) map[string]bool {
	n := len(taskKeys)
	index := make(map[string]int, n)
	for i, k := range taskKeys {
		index[k] = i
	}
	clauses := make([][]int, 0, len(cells))
	for _, cell := range cells {
		var clause []int
		seen := map[int]bool{}
		for _, tk := range cell.TaskKeys {
			if idx, ok := index[tk]; ok && !seen[idx] {
				clause = append(clause, idx)
				seen[idx] = true
			}
		}
		if len(clause) > 0 {
			clauses = append(clauses, clause)
		}
	}

	assignment := make([]bool, n)
	if !backtrack(0, n, clauses, assignment) {
		// every clause is non-empty, so shifting all participants always
		// satisfies them and backtrack always succeeds; this is a defensive
		// fallback only.
		for i := range assignment {
			assignment[i] = true
		}
	}

	out := make(map[string]bool, n)
	for i, k := range taskKeys {
		out[k] = assignment[i]
	}
	return out
}

func backtrack(i, n int, clauses [][]int, assignment []bool) bool {
	if i == n {
		return satisfies(clauses, assignment)
	}
	assignment[i] = false
	if canStillSatisfy(clauses, assignment, i+1) && backtrack(i+1, n, clauses, assignment) {
		return true
	}
	assignment[i] = true
	if backtrack(i+1, n, clauses, assignment) {
		return true
	}
	assignment[i] = false
	return false
}

func satisfies(clauses [][]int, assignment []bool) bool {
	for _, clause := range clauses {
		ok := false
		for _, v := range clause {
			if assignment[v] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// canStillSatisfy prunes early (returns false) when some clause has no
// true literal and none of its variables has index nextFree-1 or later; the
// just-assigned variable at nextFree-1 still counts as free, so pruning is
// conservative and the full check is left to the leaf.
func canStillSatisfy(clauses [][]int, assignment []bool, nextFree int) bool {
	for _, clause := range clauses {
		hasTrue := false
		hasFree := false
		for _, v := range clause {
			if assignment[v] {
				hasTrue = true
				break
			}
			if v >= nextFree-1 {
				hasFree = true
			}
		}
		if !hasTrue && !hasFree {
			return false
		}
	}
	return true
}
