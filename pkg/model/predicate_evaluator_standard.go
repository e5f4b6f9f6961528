package model

import (
	"github.com/samber/lo"
)

type predicateEvaluatorStandard struct {
	qualified    [][]bool // Teacher x subject
	availability [][]bool // Teacher x cell
	suitable     [][]bool // Room x subject
	fits         [][]bool // Group x room
	overlapping  [][]bool // Period x period
	indexer      indexer
}

func newPredicateEvaluator(input Input, periods []Interval, indexer indexer) predicateEvaluator {
	subjects := indexById(input.Subjects, func(subject Subject) string { return subject.Id })

	evaluator := predicateEvaluatorStandard{indexer: indexer}

	//** Qualification and availability per teacher
	evaluator.qualified = make([][]bool, len(input.Teachers))
	evaluator.availability = make([][]bool, len(input.Teachers))
	for teacher, teacherInput := range input.Teachers {
		evaluator.qualified[teacher] = make([]bool, len(input.Subjects))
		for _, subject := range teacherInput.Subjects {
			if index, ok := subjects[subject]; ok {
				evaluator.qualified[teacher][index] = true
			}
		}

		evaluator.availability[teacher] = make([]bool, indexer.Cells())
		for cell := range evaluator.availability[teacher] {
			evaluator.availability[teacher][cell] = true
		}
		if teacherInput.IsFullyAvailable {
			continue
		}
		for cell := range evaluator.availability[teacher] {
			period, day := indexer.Attributes(cell)
			if period >= len(periods) {
				continue
			}
			if lo.SomeBy(teacherInput.Restrictions, func(restriction Restriction) bool {
				return restrictionBlocks(restriction, input.Config.TeachingDays[day], periods[period])
			}) {
				evaluator.availability[teacher][cell] = false
			}
		}
	}

	//** Room suitability
	evaluator.suitable = make([][]bool, len(input.Rooms))
	for room, roomInput := range input.Rooms {
		evaluator.suitable[room] = lo.Map(input.Subjects, func(subject Subject, _ int) bool {
			return roomSuits(roomInput.Category, subject.Category)
		})
	}

	//** Room capacity
	evaluator.fits = make([][]bool, len(input.Groups))
	for group, groupInput := range input.Groups {
		evaluator.fits[group] = lo.Map(input.Rooms, func(room Room, _ int) bool {
			return groupInput.Size == 0 || groupInput.Size <= room.Capacity
		})
	}

	//** Period overlaps
	evaluator.overlapping = make([][]bool, len(periods))
	for period1 := range periods {
		evaluator.overlapping[period1] = make([]bool, len(periods))
		for period2 := range periods {
			evaluator.overlapping[period1][period2] = periods[period1].Overlaps(periods[period2])
		}
	}

	return &evaluator
}

func (evaluator *predicateEvaluatorStandard) Qualified(teacher, subject int) bool {
	return evaluator.qualified[teacher][subject]
}

func (evaluator *predicateEvaluatorStandard) TeacherAvailable(teacher, day, period int) bool {
	return evaluator.availability[teacher][evaluator.indexer.Index(period, day)]
}

func (evaluator *predicateEvaluatorStandard) Suitable(room, subject int) bool {
	return evaluator.suitable[room][subject]
}

func (evaluator *predicateEvaluatorStandard) Fits(group, room int) bool {
	return evaluator.fits[group][room]
}

func (evaluator *predicateEvaluatorStandard) Overlapping(period1, period2 int) bool {
	return evaluator.overlapping[period1][period2]
}
