package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func allRules(input Input) Input {
	input.Rules.AvoidTeacherGaps = true
	input.Rules.UniformDistribution = true
	input.Rules.GroupConsecutive = true
	input.Rules.TheoryEarly = true
	input.Rules.BalanceWorkload = true
	return input
}

func at(day, position int) placement {
	return placement{day: day, position: position, teacher: 0, room: 0}
}

func TestEvaluate(t *testing.T) {
	t.Run("Gaps, distribution and theory positions", func(t *testing.T) {
		//** Arrange
		instance := preprocessed(t, allRules(singleSubjectInput(3, 3)))
		placements := []placement{at(0, 0), at(0, 2), at(1, 1)}

		//** Act
		breakdown := instance.evaluate(placements)

		//** Assert
		assert.InDelta(t, 10.0, breakdown.TeacherGap, 1e-9)
		assert.InDelta(t, 5*0.64, breakdown.Distribution, 1e-9)
		assert.InDelta(t, 0.0, breakdown.Consecutive, 1e-9)
		assert.InDelta(t, 3.0, breakdown.TheoryEarly, 1e-9)
		assert.InDelta(t, 0.0, breakdown.WorkloadBalance, 1e-9)
		assert.InDelta(t, 0.0, breakdown.LabPlacement, 1e-9)
		assert.InDelta(t, 16.2, breakdown.Total(), 1e-9)
	})

	t.Run("Consecutive lessons are rewarded", func(t *testing.T) {
		instance := preprocessed(t, allRules(singleSubjectInput(3, 3)))

		breakdown := instance.evaluate([]placement{at(0, 0), at(0, 1), at(1, 0)})

		assert.InDelta(t, 0.0, breakdown.TeacherGap, 1e-9)
		assert.InDelta(t, -2.0, breakdown.Consecutive, 1e-9)
		assert.InDelta(t, 1.0, breakdown.TheoryEarly, 1e-9)
		assert.InDelta(t, 2.2, breakdown.Total(), 1e-9)
	})

	t.Run("Disabled rules contribute nothing", func(t *testing.T) {
		instance := preprocessed(t, singleSubjectInput(3, 3))

		breakdown := instance.evaluate([]placement{at(0, 0), at(0, 2), at(1, 1)})

		assert.Equal(t, Breakdown{}, breakdown)
	})

	t.Run("Lab placement policies", func(t *testing.T) {
		input := singleSubjectInput(3, 2)
		input.Subjects[0].Category = SubjectLab
		input.Rooms[0].Category = RoomLab

		input.Rules.LabRule = LabPolicyAvoidLast
		assert.InDelta(t, 8.0, preprocessed(t, input).evaluate([]placement{at(0, 2), at(1, 0)}).LabPlacement, 1e-9)

		input.Rules.LabRule = LabPolicyPrioritizeEnd
		assert.InDelta(t, 16.0, preprocessed(t, input).evaluate([]placement{at(0, 2), at(1, 0)}).LabPlacement, 1e-9)

		input.Rules.LabRule = LabPolicyNone
		assert.InDelta(t, 0.0, preprocessed(t, input).evaluate([]placement{at(0, 2), at(1, 0)}).LabPlacement, 1e-9)
	})

	t.Run("Workload balance across qualified teachers", func(t *testing.T) {
		input := allRules(singleSubjectInput(1, 2))
		input.Teachers = append(input.Teachers, Teacher{Id: "t2", Name: "Bia", Subjects: []string{"math"}, IsFullyAvailable: true})
		instance := preprocessed(t, input)

		unbalanced := instance.evaluate([]placement{at(0, 0), at(1, 0)})
		balanced := instance.evaluate([]placement{at(0, 0), {day: 1, position: 0, teacher: 1, room: 0}})

		assert.InDelta(t, 3.0, unbalanced.WorkloadBalance, 1e-9)
		assert.InDelta(t, 0.0, balanced.WorkloadBalance, 1e-9)
	})

	t.Run("Custom weights", func(t *testing.T) {
		input := allRules(singleSubjectInput(3, 3))
		input.Rules.Weights = &Weights{TheoryEarly: 4}

		breakdown := preprocessed(t, input).evaluate([]placement{at(0, 0), at(0, 2), at(1, 1)})

		assert.Equal(t, Breakdown{TheoryEarly: 12}, breakdown)
	})
}

func TestVariance(t *testing.T) {
	assert.Equal(t, 0.0, variance(nil))
	assert.Equal(t, 0.0, variance([]int{2, 2, 2}))
	assert.InDelta(t, 1.0, variance([]int{2, 0}), 1e-9)
}
