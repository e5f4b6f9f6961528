package model

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateViolation(t *testing.T) {
	//** Arrange
	// Occurrences 0 and 1 belong to g1, 2 and 3 to g2; t1 and r1 have index 0
	instance := preprocessed(t, twoGroupInput())
	current := newState(instance)
	current.place(0, placement{day: 0, position: 0, teacher: 0, room: 0})

	scenarios := []struct {
		occurrence int
		target     placement
		expected   ConstraintClass
	}{
		{1, placement{day: 0, position: 0, teacher: 1, room: 1}, GroupClash},
		{1, placement{day: 0, position: 2, teacher: 0, room: 0}, BreakOccupied},
		{2, placement{day: 0, position: 0, teacher: 0, room: 1}, TeacherClash},
		{2, placement{day: 0, position: 0, teacher: 1, room: 0}, RoomClash},
	}

	for _, scenario := range scenarios {
		//** Act
		class, violated := current.violation(scenario.occurrence, scenario.target)

		//** Assert
		assert.True(t, violated, scenario.expected)
		assert.Equal(t, scenario.expected, class)
	}

	_, violated := current.violation(2, placement{day: 0, position: 0, teacher: 1, room: 1})
	assert.False(t, violated)
	_, violated = current.violation(1, placement{day: 0, position: 1, teacher: 0, room: 0})
	assert.False(t, violated)
}

func TestStatePlaceAndRemove(t *testing.T) {
	instance := preprocessed(t, twoGroupInput())
	current := newState(instance)
	target := placement{day: 1, position: 1, teacher: 0, room: 0}

	current.place(0, target)
	assert.Equal(t, 1, current.placed)
	assert.Equal(t, 1, current.load[0])
	assert.Panics(t, func() { current.place(0, target) })

	assert.Equal(t, target, current.remove(0))
	assert.Equal(t, 0, current.placed)
	assert.Equal(t, 0, current.load[0])
	assert.Equal(t, unplaced, current.placements[0])
	assert.Panics(t, func() { current.remove(0) })

	_, violated := current.violation(2, placement{day: 1, position: 1, teacher: 0, room: 0})
	assert.False(t, violated)
}

func TestConsecutiveRun(t *testing.T) {
	instance := preprocessed(t, singleSubjectInput(3, 3))
	current := newState(instance)
	current.place(0, placement{day: 0, position: 0, teacher: 0, room: 0})
	current.place(1, placement{day: 0, position: 1, teacher: 0, room: 0})

	class, violated := current.violation(2, placement{day: 0, position: 2, teacher: 0, room: 0})

	assert.True(t, violated)
	assert.Equal(t, ConsecutiveExceed, class)
	assert.Equal(t, 3, current.runLength(0, 0, 2))
}

func TestRejectionsDominant(t *testing.T) {
	_, ok := rejections{}.dominant()
	assert.False(t, ok)

	class, ok := rejections{TeacherRestricted: 2, GroupClash: 2, RoomClash: 1}.dominant()
	assert.True(t, ok)
	assert.Equal(t, GroupClash, class)
}

func TestAnnealer(t *testing.T) {
	//** Arrange
	instance := preprocessed(t, schoolInput())
	current := newState(instance)
	random := rand.New(rand.NewPCG(7, 7))
	require.Nil(t, newBacktracker(instance, current, random, 0).run(context.Background()))

	options := testOptions()
	improver := newAnnealer(instance, current, random, options)

	//** Act
	result := improver.run(context.Background())

	//** Assert
	assert.LessOrEqual(t, result.breakdown.Total(), result.initial)
	assert.InDelta(t, instance.evaluate(result.best).Total(), result.breakdown.Total(), 1e-9)
	assert.Empty(t, Verify(instance.input, instance.lessons(result.best)))
	assert.Greater(t, result.iterations, 0)
	assert.False(t, result.cancelled)
}

func TestAnnealerCancelled(t *testing.T) {
	instance := preprocessed(t, schoolInput())
	current := newState(instance)
	random := rand.New(rand.NewPCG(1, 1))
	require.Nil(t, newBacktracker(instance, current, random, 0).run(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newAnnealer(instance, current, random, testOptions()).run(ctx)

	assert.True(t, result.cancelled)
	assert.Equal(t, 0, result.iterations)
	assert.Equal(t, current.placements, result.best)
}

func TestTemperature(t *testing.T) {
	improver := &annealer{iterations: 11, tempHigh: 5, tempLow: 0.05}

	assert.InDelta(t, 5.0, improver.temperature(0), 1e-9)
	assert.InDelta(t, 0.05, improver.temperature(10), 1e-9)
	assert.Less(t, improver.temperature(6), improver.temperature(5))
}
