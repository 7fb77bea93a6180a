// Package testutil provides functional-option fixture builders for this
// module's tests. The existing package tests build their fixtures inline
// and do not import it.
package testutil

import (
	"time"

	"github.com/ashgrove/corepath/internal/domain"
)

// TaskOption mutates a Task under construction.
type TaskOption func(*domain.Task)

// NewTask builds a leaf task with a duration by default; apply options to
// turn it into an effort-based, milestone, or dependent task.
func NewTask(id string, opts ...TaskOption) *domain.Task {
	dur := 1.0
	t := &domain.Task{ID: id, Duration: &dur}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func WithDuration(days float64) TaskOption {
	return func(t *domain.Task) { t.Duration = &days; t.Effort = nil }
}

func WithEffort(personDays float64) TaskOption {
	return func(t *domain.Task) { t.Effort = &personDays; t.Duration = nil }
}

func WithMilestone() TaskOption {
	return func(t *domain.Task) { t.Milestone = true }
}

func WithDependency(predecessor string, kind domain.DependencyKind, lagDays int) TaskOption {
	return func(t *domain.Task) {
		t.Depends = append(t.Depends, domain.Dependency{Predecessor: predecessor, Kind: kind, LagDays: lagDays})
	}
}

func WithAssignment(resourceID string, units float64) TaskOption {
	return func(t *domain.Task) {
		t.Assigned = append(t.Assigned, domain.Assignment{ResourceID: resourceID, Units: units})
	}
}

func WithComplete(pct float64) TaskOption {
	return func(t *domain.Task) { t.Complete = &pct }
}

func WithChildren(children ...*domain.Task) TaskOption {
	return func(t *domain.Task) { t.Children = children; t.Duration = nil }
}

// ProjectOption mutates a Project under construction.
type ProjectOption func(*domain.Project)

// NewProject builds a Project starting 2026-01-05 (a Monday) on the
// standard Mon-Fri calendar, the common baseline used across package tests.
func NewProject(opts ...ProjectOption) *domain.Project {
	p := &domain.Project{
		Start:           time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Calendars:       []domain.Calendar{*domain.StandardCalendar("std")},
		DefaultCalendar: "std",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithTasks(tasks ...*domain.Task) ProjectOption {
	return func(p *domain.Project) { p.Tasks = tasks }
}

func WithResources(resources ...domain.Resource) ProjectOption {
	return func(p *domain.Project) { p.Resources = resources }
}

func WithStatusDate(d time.Time) ProjectOption {
	return func(p *domain.Project) { p.StatusDate = &d }
}

func WithLevelingMode(mode domain.LevelingMode) ProjectOption {
	return func(p *domain.Project) { p.LevelingMode = mode }
}
