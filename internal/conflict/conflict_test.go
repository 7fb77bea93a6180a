package conflict

import (
	"testing"
	"time"

	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func days(n float64) *float64 { return &n }

func TestAnalyze_OverlappingAssignmentsProduceConflictCell(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(3), Assigned: []domain.Assignment{{ResourceID: "dev", Units: 0.8}}}
	b := &domain.Task{ID: "b", Duration: days(3), Assigned: []domain.Assignment{{ResourceID: "dev", Units: 0.8}}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Resources:       []domain.Resource{{ID: "dev", Capacity: 1.0}},
		Tasks:           []*domain.Task{a, b},
	}
	g, err := graph.Build(proj, nil)
	require.NoError(t, err)

	start := proj.Start
	finish := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	windows := map[string]TaskWindow{
		"a": {Start: start, Finish: finish},
		"b": {Start: start, Finish: finish},
	}

	report, err := Analyze(proj, g, windows, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Cells)
	require.Len(t, report.Clusters, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, report.Clusters[0].TaskKeys)
	assert.Empty(t, report.Unconstrained)
}

func TestAnalyze_SatWitnessShiftsAtLeastOneParticipantPerCell(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(2), Assigned: []domain.Assignment{{ResourceID: "dev", Units: 0.6}}}
	b := &domain.Task{ID: "b", Duration: days(2), Assigned: []domain.Assignment{{ResourceID: "dev", Units: 0.6}}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Resources:       []domain.Resource{{ID: "dev", Capacity: 1.0}},
		Tasks:           []*domain.Task{a, b},
	}
	g, err := graph.Build(proj, nil)
	require.NoError(t, err)

	start := proj.Start
	finish := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	windows := map[string]TaskWindow{
		"a": {Start: start, Finish: finish},
		"b": {Start: start, Finish: finish},
	}

	report, err := Analyze(proj, g, windows, nil)
	require.NoError(t, err)
	require.Len(t, report.Clusters, 1)

	shift := report.Clusters[0].Shift
	for _, cell := range report.Clusters[0].Cells {
		shifted := false
		for _, tk := range cell.TaskKeys {
			if shift[tk] {
				shifted = true
			}
		}
		assert.True(t, shifted, "every overallocated cell must have at least one shifted participant")
	}
}

func TestAnalyze_NonOverlappingTasksAreUnconstrained(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(2), Assigned: []domain.Assignment{{ResourceID: "dev", Units: 1}}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Resources:       []domain.Resource{{ID: "dev", Capacity: 1.0}},
		Tasks:           []*domain.Task{a},
	}
	g, err := graph.Build(proj, nil)
	require.NoError(t, err)

	windows := map[string]TaskWindow{"a": {Start: proj.Start, Finish: time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)}}
	report, err := Analyze(proj, g, windows, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Cells)
	assert.Equal(t, []string{"a"}, report.Unconstrained)
}
