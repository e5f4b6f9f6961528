package model

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func twoGroupInput() Input {
	input := singleSubjectInput(2, 2)
	input.Groups = append(input.Groups, Group{Id: "g2", Name: "1B", Shift: ShiftMorning, Size: 30})
	input.Rooms = append(input.Rooms, Room{Id: "r2", Name: "Sala 2", Category: RoomRegular, Capacity: 40})
	input.Teachers = append(input.Teachers, Teacher{Id: "t2", Name: "Bia", Subjects: []string{"math"}, IsFullyAvailable: true})
	input.Workload["g2"] = map[string]int{"math": 2}
	return input
}

func twoGroupLessons() []Lesson {
	first := Interval{Start: 8 * 60, End: 8*60 + 50}
	return []Lesson{
		{Group: "g1", Subject: "math", Teacher: "t1", Room: "r1", Day: 0, Position: 0, Interval: first},
		{Group: "g1", Subject: "math", Teacher: "t1", Room: "r1", Day: 1, Position: 0, Interval: first},
		{Group: "g2", Subject: "math", Teacher: "t2", Room: "r2", Day: 0, Position: 0, Interval: first},
		{Group: "g2", Subject: "math", Teacher: "t2", Room: "r2", Day: 1, Position: 0, Interval: first},
	}
}

func violationClasses(violations []Violation) []ConstraintClass {
	return lo.Uniq(lo.Map(violations, func(violation Violation, _ int) ConstraintClass { return violation.Constraint }))
}

func TestVerify(t *testing.T) {
	t.Run("Valid schedule", func(t *testing.T) {
		assert.Empty(t, Verify(twoGroupInput(), twoGroupLessons()))
	})

	t.Run("Injected violations", func(t *testing.T) {
		scenarios := map[ConstraintClass]func(input *Input, lessons []Lesson) []Lesson{
			TeacherClash: func(input *Input, lessons []Lesson) []Lesson {
				lessons[2].Teacher = "t1"
				return lessons
			},
			RoomClash: func(input *Input, lessons []Lesson) []Lesson {
				lessons[3].Room = "r1"
				return lessons
			},
			GroupClash: func(input *Input, lessons []Lesson) []Lesson {
				lessons[1].Day = 0
				lessons[1].Teacher, lessons[1].Room = "t2", "r2"
				lessons[2].Day, lessons[2].Teacher, lessons[2].Room = 1, "t1", "r1"
				return lessons
			},
			TeacherRestricted: func(input *Input, lessons []Lesson) []Lesson {
				input.Teachers[0].IsFullyAvailable = false
				input.Teachers[0].Restrictions = []Restriction{{Days: []string{"Ter"}, StartTime: "08:30", EndTime: "09:00"}}
				return lessons
			},
			TeacherUnqualified: func(input *Input, lessons []Lesson) []Lesson {
				input.Teachers[1].Subjects = nil
				return lessons
			},
			WorkloadMismatch: func(input *Input, lessons []Lesson) []Lesson {
				return lessons[:3]
			},
			BreakOccupied: func(input *Input, lessons []Lesson) []Lesson {
				lessons[0].Interval = Interval{Start: 8*60 + 10, End: 9 * 60}
				return lessons
			},
		}

		for class, inject := range scenarios {
			//** Arrange
			input := twoGroupInput()
			lessons := inject(&input, twoGroupLessons())

			//** Act
			violations := Verify(input, lessons)

			//** Assert
			assert.Contains(t, violationClasses(violations), class, class.Description())
		}
	})

	t.Run("Lesson on a break", func(t *testing.T) {
		input := singleSubjectInput(2, 1)
		input.Config.DefaultEndTime = "10:00"
		input.Groups[0].SnackTime = "09:40"

		violations := Verify(input, []Lesson{{Group: "g1", Subject: "math", Teacher: "t1", Room: "r1", Day: 0, Interval: Interval{Start: 9*60 + 40, End: 10 * 60}}})

		assert.Equal(t, []ConstraintClass{BreakOccupied}, violationClasses(violations))
	})

	t.Run("Too many consecutive lessons", func(t *testing.T) {
		input := singleSubjectInput(3, 3)
		lessons := lo.Map([]int{0, 1, 2}, func(position int, _ int) Lesson {
			start := Clock(8 * 60).Add(50 * position)
			return Lesson{Group: "g1", Subject: "math", Teacher: "t1", Room: "r1", Day: 0, Position: position, Interval: Interval{Start: start, End: start.Add(50)}}
		})

		violations := Verify(input, lessons)

		assert.Equal(t, []ConstraintClass{ConsecutiveExceed}, violationClasses(violations))
		assert.Len(t, violations, 1)
	})
}
