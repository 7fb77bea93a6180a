// Package graph walks a Project's WBS forest and flattens it into a leaf
// DAG (spec §4.2, component C2): computed durations, resolved dependency
// edges, and a Kahn topological order. Leaves are held in a slice with a
// key-to-index map; edge adjacency is keyed by leaf key string, not by
// index. The DAG is built once per schedule() call.
package graph

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ashgrove/corepath/internal/domain"
)

// Edge is a resolved, leaf-to-leaf dependency after flattening.
type Edge struct {
	Predecessor string // leaf key (qualified path) of the predecessor
	Successor   string // leaf key (qualified path) of the successor
	Kind        domain.DependencyKind
	LagDays     int
}

// Leaf is a schedulable node in the flattened DAG.
//
// Key is the task's dotted qualified path from the forest root and is the
// canonical graph identity: raw Task.ID is only unique among siblings (spec
// §3), so two containers can each have a child named "a" — using the bare
// id as a map key would silently merge them. Key is unique unless two
// siblings share an id (reported as E004; both leaves then share the key);
// ID is kept for display and for bare-id dependency resolution (spec §4.2
// step 1).
type Leaf struct {
	Key      string
	ID       string
	Task     *domain.Task
	Duration int // working days, already ceiled/derived (spec §4.2 duration policy)
}

// Graph is the flattened, leaf-only scheduling DAG (spec §3 SchedulingGraph).
type Graph struct {
	Leaves            []*Leaf
	IndexByKey        map[string]int
	QualifiedToSimple map[string]string   // any qualified path (leaf or container) -> bare id
	ContainerToLeaves map[string][]string // container qualified path -> leaf keys beneath it
	ContainerTasks    map[string]*domain.Task // container qualified path -> its own Task node
	Successors        map[string][]Edge   // leaf key -> edges where it is the predecessor
	Predecessors       map[string][]Edge  // leaf key -> edges where it is the successor
	TopoOrder         []string            // leaf keys in a Kahn-consistent total order
	Cyclic            bool
	CycleKeys         []string
}

// LeafByKey returns the leaf with the given key, or nil.
func (g *Graph) LeafByKey(key string) *Leaf {
	if idx, ok := g.IndexByKey[key]; ok {
		return g.Leaves[idx]
	}
	return nil
}

type buildState struct {
	emitter           domain.Emitter
	graph             *Graph
	bareIDToKeys      map[string][]string // leaf bare id -> all leaf keys sharing it
	containerChildren map[string][]*domain.Task
	containerTasks    map[string]*domain.Task // container qualified path -> its own Task node
}

// Build flattens project's task forest into a Graph. It never returns an
// error for recoverable conditions (cycles, missing deps, duplicate ids) —
// those surface as diagnostics per spec §7; Build only fails on a
// structurally unusable project (nil project).
func Build(project *domain.Project, emitter domain.Emitter) (*Graph, error) {
	if project == nil {
		return nil, fmt.Errorf("graph: nil project")
	}
	g := &Graph{
		IndexByKey:        map[string]int{},
		QualifiedToSimple: map[string]string{},
		ContainerToLeaves: map[string][]string{},
		ContainerTasks:    map[string]*domain.Task{},
		Successors:        map[string][]Edge{},
		Predecessors:      map[string][]Edge{},
	}
	st := &buildState{
		emitter:           emitter,
		graph:             g,
		bareIDToKeys:      map[string][]string{},
		containerChildren: map[string][]*domain.Task{},
		containerTasks:    map[string]*domain.Task{},
	}

	checkDuplicateSiblingIDs(project.Tasks, "", emitter)
	walk(st, project.Tasks, "")
	g.ContainerTasks = st.containerTasks

	for i, leaf := range g.Leaves {
		g.IndexByKey[leaf.Key] = i
	}

	resolveDependencies(st)
	emitContainerDependencyWarnings(st)
	topoSort(g)

	return g, nil
}

func checkDuplicateSiblingIDs(siblings []*domain.Task, parentPath string, emitter domain.Emitter) {
	seen := map[string]bool{}
	for _, t := range siblings {
		if seen[t.ID] {
			emit(emitter, domain.Diagnostic{
				Code:     domain.CodeDuplicateTaskID,
				Severity: domain.SeverityError,
				Message:  fmt.Sprintf("duplicate task id %q among siblings under %q", t.ID, displayParent(parentPath)),
				TaskIDs:  []string{joinPath(parentPath, t.ID)},
			})
			continue
		}
		seen[t.ID] = true
	}
}

func displayParent(parentPath string) string {
	if parentPath == "" {
		return "<root>"
	}
	return parentPath
}

func joinPath(parentPath, id string) string {
	if parentPath == "" {
		return id
	}
	return parentPath + "." + id
}

// walk recursively flattens the forest, computing leaf durations and
// populating QualifiedToSimple/ContainerToLeaves as it goes.
func walk(st *buildState, tasks []*domain.Task, parentPath string) []string {
	var leafKeysUnderParent []string
	for _, t := range tasks {
		key := joinPath(parentPath, t.ID)
		st.graph.QualifiedToSimple[key] = t.ID

		if t.IsLeaf() {
			dur := computeDuration(t, st.emitter, key)
			leaf := &Leaf{Key: key, ID: t.ID, Task: t, Duration: dur}
			st.graph.Leaves = append(st.graph.Leaves, leaf)
			st.bareIDToKeys[t.ID] = append(st.bareIDToKeys[t.ID], key)
			leafKeysUnderParent = append(leafKeysUnderParent, key)
			continue
		}

		checkDuplicateSiblingIDs(t.Children, key, st.emitter)
		st.containerChildren[key] = t.Children
		st.containerTasks[key] = t
		childLeafKeys := walk(st, t.Children, key)
		st.graph.ContainerToLeaves[key] = childLeafKeys
		leafKeysUnderParent = append(leafKeysUnderParent, childLeafKeys...)
	}
	return leafKeysUnderParent
}

// computeDuration applies the four-step duration policy of spec §4.2.
func computeDuration(t *domain.Task, emitter domain.Emitter, key string) int {
	if t.Milestone {
		return 0
	}
	if t.Duration != nil {
		return ceilWorkingDays(*t.Duration)
	}
	if t.Effort != nil {
		totalUnits := 0.0
		for _, a := range t.Assigned {
			totalUnits += a.Units
		}
		if totalUnits <= 0 {
			totalUnits = 1
		}
		return int(math.Ceil(*t.Effort / totalUnits))
	}
	emit(emitter, domain.Diagnostic{
		Code:     domain.CodeZeroLengthPlaceholder,
		Severity: domain.SeverityHint,
		Message:  fmt.Sprintf("task %q has no duration, effort, or milestone flag; treated as zero-length", key),
		TaskIDs:  []string{key},
	})
	return 0
}

func ceilWorkingDays(days float64) int {
	return int(math.Ceil(days))
}

// resolveDependencies implements the five-step resolution order of spec
// §4.2 for every leaf's authored Dependency entries.
func resolveDependencies(st *buildState) {
	g := st.graph
	for _, leaf := range g.Leaves {
		containerPath := parentPath(leaf.Key)
		for _, dep := range leaf.Task.Depends {
			keys, ok := resolveRef(st, dep.Predecessor, containerPath)
			if !ok || len(keys) == 0 {
				emit(st.emitter, domain.Diagnostic{
					Code:     domain.CodeMissingDependency,
					Severity: domain.SeverityError,
					Message:  fmt.Sprintf("task %q: dependency reference %q could not be resolved", leaf.Key, dep.Predecessor),
					TaskIDs:  []string{leaf.Key},
				})
				continue
			}
			for _, predKey := range keys {
				if predKey == leaf.Key {
					continue
				}
				e := Edge{Predecessor: predKey, Successor: leaf.Key, Kind: dep.Kind, LagDays: dep.LagDays}
				g.Successors[predKey] = append(g.Successors[predKey], e)
				g.Predecessors[leaf.Key] = append(g.Predecessors[leaf.Key], e)
			}
		}
	}
	for key := range g.Successors {
		sortEdgesDeterministic(g.Successors[key])
	}
	for key := range g.Predecessors {
		sortEdgesDeterministic(g.Predecessors[key])
	}
}

func sortEdgesDeterministic(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Predecessor != edges[j].Predecessor {
			return edges[i].Predecessor < edges[j].Predecessor
		}
		return edges[i].Successor < edges[j].Successor
	})
}

func parentPath(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return ""
	}
	return key[:idx]
}

// resolveRef applies spec §4.2 steps 1-4; step 5 (drop + diagnostic) is the
// caller's responsibility when ok is false.
func resolveRef(st *buildState, ref string, containerPath string) ([]string, bool) {
	if keys, ok := tryResolveOnce(st, ref); ok {
		return keys, true
	}
	if containerPath != "" {
		siblingRef := containerPath + "." + ref
		if keys, ok := tryResolveOnce(st, siblingRef); ok {
			return keys, true
		}
	}
	return nil, false
}

func tryResolveOnce(st *buildState, ref string) ([]string, bool) {
	g := st.graph
	// Step 1: bare leaf id match (only unambiguous when exactly one leaf
	// anywhere shares that bare id).
	if keys := st.bareIDToKeys[ref]; len(keys) == 1 {
		return keys, true
	}
	// Step 2: dotted qualified path resolving to a leaf.
	if _, isLeaf := g.IndexByKey[ref]; isLeaf {
		return []string{ref}, true
	}
	// Step 3: dotted qualified path resolving to a container.
	if leaves, isContainer := g.ContainerToLeaves[ref]; isContainer {
		out := make([]string, len(leaves))
		copy(out, leaves)
		return out, true
	}
	return nil, false
}

// emitContainerDependencyWarnings implements spec §4.2's W014 rule: if a
// container declares a predecessor, every child lacking the same
// predecessor reference triggers a warning. Comparison is by the authored
// reference string, not full resolution — this is purely advisory.
func emitContainerDependencyWarnings(st *buildState) {
	for containerKey, children := range st.containerChildren {
		container := taskAtPath(st, containerKey)
		if container == nil || len(container.Depends) == 0 {
			continue
		}
		declared := map[string]bool{}
		for _, d := range container.Depends {
			declared[d.Predecessor] = true
		}
		for _, child := range children {
			childHas := false
			for _, d := range child.Depends {
				if declared[d.Predecessor] {
					childHas = true
					break
				}
			}
			if !childHas {
				emit(st.emitter, domain.Diagnostic{
					Code:     domain.CodeContainerDepNotMirrored,
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("container %q declares a predecessor not mirrored on child %q", containerKey, child.ID),
					TaskIDs:  []string{joinPath(containerKey, child.ID)},
				})
			}
		}
	}
}

func taskAtPath(st *buildState, key string) *domain.Task {
	if leaf := st.graph.LeafByKey(key); leaf != nil {
		return leaf.Task
	}
	if t, ok := st.containerTasks[key]; ok {
		return t
	}
	return nil
}

func emit(emitter domain.Emitter, d domain.Diagnostic) {
	if emitter != nil {
		emitter.Emit(d)
	}
}
