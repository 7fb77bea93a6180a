package progressx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmoothRemaining_NoUnitsDataReturnsCurrent(t *testing.T) {
	assert.Equal(t, 5.0, SmoothRemaining(5, 2, 0, 0))
}

func TestSmoothRemaining_FasterThanPlannedPacePullsRemainingDown(t *testing.T) {
	// 10 units total, 5 done in 2 elapsed days => pace implies 4 total days,
	// 2 remaining; blended toward current (8) should land between the two.
	result := SmoothRemaining(8, 2, 5, 10)
	assert.True(t, result < 8)
	assert.True(t, result > 2)
}

func TestSmoothRemaining_NeverNegative(t *testing.T) {
	result := SmoothRemaining(0, 100, 1, 10)
	assert.True(t, result >= 0)
}
