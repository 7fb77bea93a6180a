package metrics

import (
	"testing"
	"time"

	"github.com/ashgrove/corepath/internal/cpm"
	"github.com/ashgrove/corepath/internal/domain"
	"github.com/ashgrove/corepath/internal/graph"
	"github.com/ashgrove/corepath/internal/progressx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func days(n float64) *float64 { return &n }
func pct(n float64) *float64  { return &n }

func scheduleAndOverlay(t *testing.T, proj *domain.Project, statusDate *time.Time) (*graph.Graph, *cpm.Result, *progressx.Overlay) {
	t.Helper()
	g, err := graph.Build(proj, nil)
	require.NoError(t, err)
	res, err := cpm.Schedule(proj, g, proj.ResolveCalendar(""), nil)
	require.NoError(t, err)
	overlay := progressx.Compute(proj, g, res, proj.ResolveCalendar(""), statusDate, nil)
	return g, res, overlay
}

func TestCompute_FullyCompleteOnScheduleYieldsSPIOne(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(5), Complete: pct(100)}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a},
	}
	statusDate := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	g, res, overlay := scheduleAndOverlay(t, proj, &statusDate)

	result := Compute(proj, g, overlay, res.ProjectEndOffset, nil)
	assert.InDelta(t, 500, result.EarnedValue, 1e-6) // 1.0 complete * 5 days * 100
	assert.InDelta(t, 1.0, result.SPI, 1e-6)
	assert.Equal(t, domain.RiskOnTrack, result.Status)
}

func TestCompute_NoProgressPastDeadlineIsBehind(t *testing.T) {
	a := &domain.Task{ID: "a", Duration: days(5)}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{a},
	}
	statusDate := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC) // well past baseline finish
	g, res, overlay := scheduleAndOverlay(t, proj, &statusDate)

	result := Compute(proj, g, overlay, res.ProjectEndOffset, nil)
	assert.Equal(t, 0.0, result.EarnedValue)
	assert.Equal(t, domain.RiskBehind, result.Status)
}

func TestCompute_ContainersExcludedFromEarnedValue(t *testing.T) {
	leaf1 := &domain.Task{ID: "leaf1", Duration: days(2), Complete: pct(100)}
	container := &domain.Task{ID: "phase", Children: []*domain.Task{leaf1}, Complete: pct(0)}
	proj := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
		Tasks:           []*domain.Task{container},
	}
	statusDate := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	g, res, overlay := scheduleAndOverlay(t, proj, &statusDate)

	result := Compute(proj, g, overlay, res.ProjectEndOffset, nil)
	assert.InDelta(t, 200, result.EarnedValue, 1e-6) // only leaf1 contributes: 1.0 complete * 2 days * 100
}
