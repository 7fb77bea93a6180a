package leveler

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

func buildScheduled(t *testing.T, proj *domain.Project) (*graph.Graph, *cpm.Result) {
	t.Helper()
	g, err := graph.Build(proj, nil)
	require.NoError(t, err)
	res, err := cpm.Schedule(proj, g, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)
	return g, res
}

func TestLevel_UnconstrainedTasksKeepEarlyStart(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(2)}
	b := &domain.Task{ID: "b", Duration: days(2)}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a, b},
	}
	g, res := buildScheduled(t, proj)

	leveled, err := Level(proj, g, res, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)
	assert.False(t, leveled.Placements["a"].Delayed)
	assert.False(t, leveled.Placements["b"].Delayed)
}

func TestLevel_ConflictingAssignmentsDelayOneTask(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(3), Assigned: []domain.Assignment{{ResourceID: "dev", Units: 1}}}
	b := &domain.Task{ID: "b", Duration: days(3), Assigned: []domain.Assignment{{ResourceID: "dev", Units: 1}}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Resources:       []domain.Resource{{ID: "dev", Capacity: 1.0}},
		Tasks:           []*domain.Task{a, b},
	}
	g, res := buildScheduled(t, proj)
	sink := domain.NewSliceEmitter()

	leveled, err := Level(proj, g, res, proj.ResolveCalendar(""), sink)
	require.NoError(t, err)

	pa, pb := leveled.Placements["a"], leveled.Placements["b"]
	delayedCount := 0
	if pa.Delayed {
		delayedCount++
	}
	if pb.Delayed {
		delayedCount++
	}
	assert.Equal(t, 1, delayedCount)

	foundSummary := false
	for _, d := range sink.Snapshot() {
		if d.Code == domain.CodeLevelingSummary {
			foundSummary = true
		}
	}
	assert.True(t, foundSummary)
}
