package cpm

import (
	"testing"
	"time"

	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func days(n float64) *float64 { return &n }

func mustBuild(t *testing.T, proj *domain.Project, emitter domain.Emitter) *graph.Graph {
	t.Helper()
	g, err := graph.Build(proj, emitter)
	require.NoError(t, err)
	return g
}

func TestSchedule_LinearChainForwardAndBackwardPass(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(5)}
	b := &domain.Task{ID: "b", Duration: days(3), Depends: []domain.Dependency{{Predecessor: "a", Kind: domain.FinishToStart}}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), // Monday
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
	}
	proj.Tasks = []*domain.Task{a, b}
	g := mustBuild(t, proj, nil)

	res, err := Schedule(proj, g, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)

	ta := res.Timings["a"]
	tb := res.Timings["b"]
	assert.Equal(t, 0, ta.EarlyStartOffset)
	assert.Equal(t, 5, ta.EarlyFinishOffset)
	assert.Equal(t, 5, tb.EarlyStartOffset)
	assert.Equal(t, 8, tb.EarlyFinishOffset)
	assert.True(t, ta.IsCritical)
	assert.True(t, tb.IsCritical)
	assert.Equal(t, 0, ta.TotalSlack)
	assert.Equal(t, 8, res.ProjectEndOffset)
}

func TestSchedule_LagDelaysSuccessorStart(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(2)}
	b := &domain.Task{ID: "b", Duration: days(1), Depends: []domain.Dependency{{Predecessor: "a", Kind: domain.FinishToStart, LagDays: 3}}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a, b},
	}
	g := mustBuild(t, proj, nil)

	res, err := Schedule(proj, g, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Timings["b"].EarlyStartOffset) // 2 (EF of a) + 3 lag
}

func TestSchedule_StartToStartSyncsBeginnings(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(4)}
	b := &domain.Task{ID: "b", Duration: days(2), Depends: []domain.Dependency{{Predecessor: "a", Kind: domain.StartToStart, LagDays: 1}}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a, b},
	}
	g := mustBuild(t, proj, nil)

	res, err := Schedule(proj, g, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Timings["b"].EarlyStartOffset)
}

func TestSchedule_StartNoEarlierThanFloorsEarlyStart(t *testing.T) {
	a := &domain.Task{
		ID:       "a",
		Duration: days(2),
		Constraints: []domain.Constraint{
			{Kind: domain.StartNoEarlierThan, Date: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)}, // next Monday, offset 5
		},
	}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a},
	}
	g := mustBuild(t, proj, nil)

	res, err := Schedule(proj, g, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Timings["a"].EarlyStartOffset)
}

func TestSchedule_MustStartOnConflictEmitsDiagnosticAndWins(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(5)}
	b := &domain.Task{
		ID:       "b",
		Duration: days(1),
		Depends:  []domain.Dependency{{Predecessor: "a", Kind: domain.FinishToStart}},
		Constraints: []domain.Constraint{
			{Kind: domain.MustStartOn, Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}, // offset 0, earlier than a's EF
		},
	}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a, b},
	}
	g := mustBuild(t, proj, nil)
	sink := domain.NewSliceEmitter()

	res, err := Schedule(proj, g, proj.ResolveCalendar(""), sink)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Timings["b"].EarlyStartOffset)
	assert.True(t, res.Timings["b"].ConstraintRelaxed)

	found := false
	for _, d := range sink.Snapshot() {
		if d.Code == domain.CodeHardConstraintInfeasible {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSchedule_CriticalPathHasZeroSlack(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(3)}
	b := &domain.Task{ID: "b", Duration: days(1), Depends: []domain.Dependency{{Predecessor: "a", Kind: domain.FinishToStart}}}
	c := &domain.Task{ID: "c", Duration: days(10), Depends: []domain.Dependency{{Predecessor: "a", Kind: domain.FinishToStart}}}
	d := &domain.Task{ID: "d", Duration: days(1), Depends: []domain.Dependency{
		{Predecessor: "b", Kind: domain.FinishToStart},
		{Predecessor: "c", Kind: domain.FinishToStart},
	}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a, b, c, d},
	}
	g := mustBuild(t, proj, nil)

	res, err := Schedule(proj, g, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)

	path := CriticalPath(g, res)
	assert.Contains(t, path, "a")
	assert.Contains(t, path, "c")
	assert.Contains(t, path, "d")
	assert.NotContains(t, path, "b")
	assert.True(t, res.Timings["b"].TotalSlack > 0)
}

func TestSchedule_FinishNoLaterThanCanForceNegativeSlackFatalDiagnostic(t *testing.T) {
	a := &domain.Task{
		ID:       "a",
		Duration: days(10),
		Constraints: []domain.Constraint{
			{Kind: domain.FinishNoLaterThan, Date: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)}, // offset 1, impossible for a 10-day task
		},
	}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a},
	}
	g := mustBuild(t, proj, nil)
	sink := domain.NewSliceEmitter()

	res, err := Schedule(proj, g, proj.ResolveCalendar(""), sink)
	require.NoError(t, err)
	assert.True(t, res.Timings["a"].TotalSlack < 0)

	found := false
	for _, d := range sink.Snapshot() {
		if d.Code == domain.CodeCPMInvariantViolation && d.Severity == domain.SeverityFatal {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSchedule_NoWorkingDaysCalendarEmitsC002(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(1)}
	cal := &domain.Calendar{ID: "broken", WorkingDays: map[time.Weekday]bool{}}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*cal},
		DefaultCalendar: "broken",
		Tasks:           []*domain.Task{a},
	}
	g := mustBuild(t, proj, nil)
	sink := domain.NewSliceEmitter()

	_, err := Schedule(proj, g, proj.ResolveCalendar(""), sink)
	assert.Error(t, err)

	found := false
	for _, d := range sink.Snapshot() {
		if d.Code == domain.CodeNoWorkingDays && d.Severity == domain.SeverityFatal {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSchedule_ZeroWorkingHoursCalendarEmitsC001(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(1)}
	cal := domain.StandardCalendar("broken")
	cal.WorkingHours = nil
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*cal},
		DefaultCalendar: "broken",
		Tasks:           []*domain.Task{a},
	}
	g := mustBuild(t, proj, nil)
	sink := domain.NewSliceEmitter()

	_, err := Schedule(proj, g, proj.ResolveCalendar(""), sink)
	assert.Error(t, err)

	found := false
	for _, d := range sink.Snapshot() {
		if d.Code == domain.CodeZeroWorkingHours && d.Severity == domain.SeverityFatal {
			found = true
		}
	}
	assert.True(t, found)
}
