package domain

import "time"

// Assignment binds a task to a resource at a given number of units
// (fractional FTE, e.g. 0.5 is half-time).
type Assignment struct {
	ResourceID string  `yaml:"resource_id"`
	Units      float64 `yaml:"units"`
}

// Dependency is an edge reference as authored on a task, before the WBS
// flattener resolves it to a leaf-to-leaf edge. Predecessor is whatever the
// author wrote: a bare id, a dotted qualified path, or a sibling-relative
// fragment — internal/graph resolves it per spec §4.2.
type Dependency struct {
	Predecessor string         `yaml:"predecessor"`
	Kind        DependencyKind `yaml:"kind"`
	LagDays     int            `yaml:"lag_days"`
}

// Constraint is a hard date constraint attached to a task.
type Constraint struct {
	Kind ConstraintKind `yaml:"kind"`
	Date time.Time      `yaml:"date"`
}

// Task is a node in the WBS forest. Leaves (no Children) are schedulable;
// containers aggregate their descendants' dates and progress.
type Task struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Duration    *float64       `yaml:"duration"` // working days (may be fractional; ceiled when materialized); nil means "derive"
	Effort      *float64       `yaml:"effort"`    // person-working-days total; nil means "not effort based"
	Assigned    []Assignment   `yaml:"assigned"`
	Depends     []Dependency   `yaml:"depends"`
	Milestone   bool           `yaml:"milestone"`
	Constraints []Constraint   `yaml:"constraints"`

	Complete          *float64   `yaml:"complete"` // percent in [0,100]
	ExplicitRemaining *float64   `yaml:"explicit_remaining"` // working days; overrides linear interpolation
	ActualStart       *time.Time `yaml:"actual_start"`
	ActualFinish      *time.Time `yaml:"actual_finish"`
	Status            *TaskStatus `yaml:"status"`
	Regime            *Regime    `yaml:"regime"`

	// UnitsTotal/UnitsDone carry a scope-progress signal for callers of
	// progressx.SmoothRemaining; the progress overlay does not read them.
	UnitsTotal int `yaml:"units_total"`
	UnitsDone  int `yaml:"units_done"`

	Children []*Task `yaml:"children"`
}

// IsLeaf reports whether a task is schedulable (has no children).
func (t *Task) IsLeaf() bool {
	return len(t.Children) == 0
}

// EffectiveRegime resolves the task's regime per spec §3: default is Event
// for milestones, Work otherwise.
func (t *Task) EffectiveRegime() Regime {
	if t.Regime != nil {
		return *t.Regime
	}
	if t.Milestone {
		return RegimeEvent
	}
	return RegimeWork
}

// Resource is a pool of capacity consumable by task assignments.
type Resource struct {
	ID         string   `yaml:"id"`
	Capacity   float64  `yaml:"capacity"`
	Efficiency float64  `yaml:"efficiency"`
	CalendarID string   `yaml:"calendar_id"` // empty means the project default calendar
	Rate       *float64 `yaml:"rate"`
}

// DateRange is an inclusive [Start, End] calendar-date interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls within the inclusive range (date-only
// comparison; time-of-day is ignored).
func (r DateRange) Contains(d time.Time) bool {
	d = truncateToDate(d)
	start := truncateToDate(r.Start)
	end := truncateToDate(r.End)
	return !d.Before(start) && !d.After(end)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WorkingHours is a minutes-from-midnight interval within a working day.
type WorkingHours struct {
	StartMin int
	EndMin   int
}

// Minutes returns the span of the interval in minutes.
func (w WorkingHours) Minutes() int {
	if w.EndMin <= w.StartMin {
		return 0
	}
	return w.EndMin - w.StartMin
}

// Calendar defines the working pattern used to convert working-day offsets
// to calendar dates (spec §4.1).
type Calendar struct {
	ID           string                 `yaml:"id"`
	WorkingDays  map[time.Weekday]bool  `yaml:"working_days"`
	WorkingHours []WorkingHours         `yaml:"working_hours"`
	Holidays     []DateRange            `yaml:"holidays"`
	// Exceptions maps a specific date (truncated to midnight, in the
	// calendar's implied location) to an explicit working/non-working flag,
	// overriding WorkingDays and Holidays for that date.
	Exceptions map[time.Time]bool `yaml:"exceptions"`
}

// StandardCalendar returns a Monday-Friday, 9-to-5 calendar with the given
// id and no holidays — the common default used throughout tests and the
// demo fixtures.
func StandardCalendar(id string) *Calendar {
	return &Calendar{
		ID: id,
		WorkingDays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		WorkingHours: []WorkingHours{{StartMin: 9 * 60, EndMin: 17 * 60}},
		Exceptions:   map[time.Time]bool{},
	}
}

// Project is the root input to schedule().
type Project struct {
	Start            time.Time
	StatusDate       *time.Time
	Tasks            []*Task
	Resources        []Resource
	Calendars        []Calendar
	DefaultCalendar  string
	LevelingMode     LevelingMode
	OptimalThreshold int
	OptimalTimeoutMS int
	CostPolicy       CostPolicy
}

// ResolveCalendar returns the named calendar, or the project default when
// id is empty, or nil if neither exists.
func (p *Project) ResolveCalendar(id string) *Calendar {
	if id == "" {
		id = p.DefaultCalendar
	}
	for i := range p.Calendars {
		if p.Calendars[i].ID == id {
			return &p.Calendars[i]
		}
	}
	return nil
}

// ResourceByID returns the named resource, or nil if absent.
func (p *Project) ResourceByID(id string) *Resource {
	for i := range p.Resources {
		if p.Resources[i].ID == id {
			return &p.Resources[i]
		}
	}
	return nil
}
