package progressx

import (
	"testing"
	"time"

	"github.com/ashgrove/corepath/internal/cpm"
	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func days(n float64) *float64 { return &n }
func pct(n float64) *float64  { return &n }

func buildAndSchedule(t *testing.T, proj *domain.Project) (*graph.Graph, *cpm.Result) {
	t.Helper()
	g, err := graph.Build(proj, nil)
	require.NoError(t, err)
	res, err := cpm.Schedule(proj, g, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)
	return g, res
}

func baseProject(tasks ...*domain.Task) *domain.Project {
	return &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           tasks,
	}
}

func TestCompute_CompleteTaskForecastsActualFinish(t *testing.T) {
	finish := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	a := &domain.Task{ID: "a", Duration: days(5), Complete: pct(100), ActualFinish: &finish}
	proj := baseProject(a)
	g, res := buildAndSchedule(t, proj)

	overlay := Compute(proj, g, res, proj.ResolveCalendar(""), nil, nil)
	lp := overlay.Leaves["a"]
	assert.Equal(t, domain.StatusComplete, lp.Status)
	assert.True(t, lp.ForecastFinish.Equal(finish))
	assert.Equal(t, 0.0, lp.RemainingDays)
}

func TestCompute_InProgressWithActualStartUsesRemaining(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	a := &domain.Task{ID: "a", Duration: days(10), Complete: pct(50), ActualStart: &start}
	proj := baseProject(a)
	g, res := buildAndSchedule(t, proj)

	overlay := Compute(proj, g, res, proj.ResolveCalendar(""), nil, nil)
	lp := overlay.Leaves["a"]
	assert.Equal(t, domain.StatusInProgress, lp.Status)
	assert.Equal(t, 5.0, lp.RemainingDays)
	assert.Equal(t, 0.5, lp.CompleteFraction)
}

func TestCompute_NotStartedForecastsFromStatusDate(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(3)}
	proj := baseProject(a)
	statusDate := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC) // Thursday, after project start
	g, res := buildAndSchedule(t, proj)

	overlay := Compute(proj, g, res, proj.ResolveCalendar(""), &statusDate, nil)
	lp := overlay.Leaves["a"]
	assert.Equal(t, domain.StatusNotStarted, lp.Status)
	assert.True(t, lp.ForecastStart.Equal(statusDate))
}

func TestCompute_ExplicitRemainingDisagreementEmitsP005(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	a := &domain.Task{ID: "a", Duration: days(10), Complete: pct(50), ActualStart: &start, ExplicitRemaining: days(9)} // derived=5, explicit=9, diff/duration=0.4
	proj := baseProject(a)
	g, res := buildAndSchedule(t, proj)
	sink := domain.NewSliceEmitter()

	overlay := Compute(proj, g, res, proj.ResolveCalendar(""), nil, sink)
	assert.Equal(t, 9.0, overlay.Leaves["a"].RemainingDays)

	found := false
	for _, d := range sink.Snapshot() {
		if d.Code == domain.CodeRemainingCompleteConflict {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompute_ContainerRollupIsEffortWeighted(t *testing.T) {
	leaf1 := &domain.Task{ID: "leaf1", Duration: days(2), Complete: pct(100)}
	leaf2 := &domain.Task{ID: "leaf2", Duration: days(8), Complete: pct(0)}
	container := &domain.Task{ID: "phase", Children: []*domain.Task{leaf1, leaf2}}
	proj := baseProject(container)
	g, res := buildAndSchedule(t, proj)

	overlay := Compute(proj, g, res, proj.ResolveCalendar(""), nil, nil)
	cp := overlay.Containers["phase"]
	require.NotNil(t, cp)
	assert.InDelta(t, 0.2, cp.CompleteFraction, 1e-9) // (2*1 + 8*0) / 10
}

func TestCompute_ContainerExplicitOverrideEmitsP006(t *testing.T) {
	leaf1 := &domain.Task{ID: "leaf1", Duration: days(5), Complete: pct(0)}
	leaf2 := &domain.Task{ID: "leaf2", Duration: days(5), Complete: pct(0)}
	container := &domain.Task{ID: "phase", Children: []*domain.Task{leaf1, leaf2}, Complete: pct(90)}
	proj := baseProject(container)
	g, res := buildAndSchedule(t, proj)
	sink := domain.NewSliceEmitter()

	overlay := Compute(proj, g, res, proj.ResolveCalendar(""), nil, sink)
	cp := overlay.Containers["phase"]
	assert.Equal(t, 0.9, cp.CompleteFraction)
	assert.False(t, cp.Derived)

	found := false
	for _, d := range sink.Snapshot() {
		if d.Code == domain.CodeContainerCompleteOverride {
			found = true
		}
	}
	assert.True(t, found)
}
