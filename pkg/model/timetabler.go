package model

import (
	"context"
	"time"
)

type Timetabler interface {
	Build(
		ctx context.Context,
		input Input,
	) (timetable Timetable, err error)

	Verify(
		input Input,
		timetable Timetable,
	) []Violation
}

// Options tune the search. NewTimetabler replaces out-of-range values with their defaults
type Options struct {
	Seed             int64
	Workers          int           // Independent search branches, at least 1
	MaxNodes         int           // Backtracking node budget per branch, 0 for unlimited
	Timeout          time.Duration // Wall clock budget for the whole run, 0 for none
	AnnealIterations int
	Patience         int // Iterations without improvement before local search stops, 0 for none
	TempHigh         float64
	TempLow          float64
	Weights          Weights // Used when the rules carry no weights; the zero value means DefaultWeights
}

func DefaultOptions() Options {
	return Options{
		Seed:             1,
		Workers:          1,
		MaxNodes:         200000,
		Timeout:          30 * time.Second,
		AnnealIterations: 20000,
		Patience:         4000,
		TempHigh:         5.0,
		TempLow:          0.05,
		Weights:          DefaultWeights(),
	}
}

// Lesson is one placed lesson-occurrence
type Lesson struct {
	Group    string
	Subject  string
	Teacher  string
	Room     string
	Day      int // Index into the teaching days
	Position int // Teaching position in the group's day
	Interval
}

// Assignment is the public (group, subject, teacher, room, weekday, timeslot) tuple
type Assignment struct {
	Group   string
	Subject string
	Teacher string
	Room    string
	Weekday string
	Slot    TimeSlot
}

// Timetable is an accepted, validated schedule
type Timetable struct {
	RunID           string
	Seed            int64 // Seed of the branch that produced the schedule
	Lessons         []Lesson
	Grid            Grid
	Penalty         float64
	Breakdown       Breakdown
	Nodes           int
	Backtracks      int
	Iterations      int
	BudgetExhausted bool // Local search stopped on the timeout or cancellation
}

func (timetable Timetable) Assignments() []Assignment {
	assignments := make([]Assignment, 0, len(timetable.Lessons))
	groups := make(map[string]GroupGrid, len(timetable.Grid.Groups))
	for _, groupGrid := range timetable.Grid.Groups {
		groups[groupGrid.Group] = groupGrid
	}

	for _, lesson := range timetable.Lessons {
		groupGrid := groups[lesson.Group]
		assignments = append(assignments, Assignment{
			Group:   lesson.Group,
			Subject: lesson.Subject,
			Teacher: lesson.Teacher,
			Room:    lesson.Room,
			Weekday: timetable.Grid.Days[lesson.Day],
			Slot:    TimeSlot{Day: lesson.Day, GridSlot: groupGrid.TeachingSlot(lesson.Position)},
		})
	}
	return assignments
}
