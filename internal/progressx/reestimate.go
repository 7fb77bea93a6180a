package progressx

import "math"

// SmoothRemaining blends the currently planned remaining working days with
// a pace-implied remaining figure derived from UnitsDone/UnitsTotal scope
// progress against elapsedDays actually spent, weighted 70/30 toward the
// current plan. It never returns less than zero remaining days. This is a
// supplemented re-estimate hook, not part of the base progress overlay:
// Compute does not call it, so setting UnitsTotal/UnitsDone on a task has
// no effect unless a caller passes them here itself.
func SmoothRemaining(currentRemainingDays, elapsedDays float64, unitsDone, unitsTotal int) float64 {
	if unitsDone <= 0 || unitsTotal <= 0 {
		return currentRemainingDays
	}

	pacePerUnit := elapsedDays / float64(unitsDone)
	impliedTotal := pacePerUnit * float64(unitsTotal)
	impliedRemaining := impliedTotal - elapsedDays

	blended := 0.7*currentRemainingDays + 0.3*impliedRemaining
	if blended < 0 {
		return 0
	}
	return math.Round(blended*100) / 100
}
