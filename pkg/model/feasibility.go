package model

import (
	"fmt"

	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
)

// checkFeasibility runs necessary conditions that fail fast before any search happens
func (instance *problem) checkFeasibility() *InfeasibleScheduleError {
	//** Per pair resources
	for index, pair := range instance.pairs {
		group, subject := instance.input.Groups[pair.group].Id, instance.input.Subjects[pair.subject].Id
		if len(pair.teachers) == 0 {
			return &InfeasibleScheduleError{
				Constraint:  TeacherUnqualified,
				Reason:      fmt.Sprintf("no teacher is qualified for subject \"%v\" required by group \"%v\"", subject, group),
				Occurrences: instance.pairOccurrences(index, 0),
			}
		}
		if len(pair.rooms) == 0 {
			return &InfeasibleScheduleError{
				Constraint:  RoomClash,
				Reason:      fmt.Sprintf("no room suits subject \"%v\" and fits group \"%v\"", subject, group),
				Occurrences: instance.pairOccurrences(index, 0),
			}
		}
	}

	//** Per pair time
	for index, pair := range instance.pairs {
		group, subject := instance.input.Groups[pair.group].Id, instance.input.Subjects[pair.subject].Id
		cells := instance.days * len(instance.groupPeriods[pair.group])
		available := 0
		for day := range instance.days {
			for _, period := range instance.groupPeriods[pair.group] {
				if instance.anyTeacherAvailable(pair, day, period) {
					available++
				}
			}
		}
		if pair.lessons <= available {
			continue
		}

		if available == cells {
			return &InfeasibleScheduleError{
				Constraint:  GroupClash,
				Reason:      fmt.Sprintf("group \"%v\" has %d teaching slots per week but subject \"%v\" requires %d lessons", group, cells, subject, pair.lessons),
				Occurrences: instance.pairOccurrences(index, cells),
			}
		}
		return &InfeasibleScheduleError{
			Constraint:  TeacherRestricted,
			Reason:      fmt.Sprintf("qualified teachers of subject \"%v\" are available in %d of the %d slots of group \"%v\" but %d lessons are required", subject, available, cells, group, pair.lessons),
			Occurrences: instance.pairOccurrences(index, available),
		}
	}

	//** Per group matching
	for group := range instance.input.Groups {
		occurrences := lo.Filter(lo.Range(len(instance.occurrences)), func(occurrence int, _ int) bool {
			return instance.pairs[instance.occurrences[occurrence].pair].group == group
		})
		if len(occurrences) == 0 {
			continue
		}
		positions := len(instance.groupPeriods[group])
		cells := lo.Range(instance.days * positions)

		unmatched, err := unmatchedOccurrences(occurrences, cells, func(occurrence, cell int) bool {
			pair := instance.pairs[instance.occurrences[occurrence].pair]
			return instance.anyTeacherAvailable(pair, cell/positions, instance.groupPeriods[group][cell%positions])
		})
		if err != nil {
			return &InfeasibleScheduleError{Constraint: GroupClash, Reason: "cannot build group matching", Err: err}
		}
		if len(unmatched) > 0 {
			return &InfeasibleScheduleError{
				Constraint: GroupClash,
				Reason: fmt.Sprintf("group \"%v\" cannot fit %d of its %d lessons into slots where a qualified teacher is available",
					instance.input.Groups[group].Id, len(unmatched), len(occurrences)),
				Occurrences: lo.Map(unmatched, func(occurrence int, _ int) Occurrence { return instance.occurrenceOf(occurrence) }),
			}
		}
	}

	//** Per teacher matching of forced demand
	for teacher := range instance.input.Teachers {
		occurrences := lo.Filter(lo.Range(len(instance.occurrences)), func(occurrence int, _ int) bool {
			pair := instance.pairs[instance.occurrences[occurrence].pair]
			return len(pair.teachers) == 1 && pair.teachers[0] == teacher
		})
		if len(occurrences) == 0 {
			continue
		}
		cells := lo.Filter(lo.Range(instance.indexer.Cells()), func(cell int, _ int) bool {
			period, day := instance.indexer.Attributes(cell)
			return period < len(instance.periods) && instance.evaluator.TeacherAvailable(teacher, day, period)
		})

		unmatched, err := unmatchedOccurrences(occurrences, cells, func(occurrence, cell int) bool {
			period, _ := instance.indexer.Attributes(cell)
			group := instance.pairs[instance.occurrences[occurrence].pair].group
			return lo.Contains(instance.groupPeriods[group], period)
		})
		if err != nil {
			return &InfeasibleScheduleError{Constraint: TeacherClash, Reason: "cannot build teacher matching", Err: err}
		}
		if len(unmatched) > 0 {
			return &InfeasibleScheduleError{
				Constraint: TeacherClash,
				Reason: fmt.Sprintf("teacher \"%v\" is the only qualified teacher for %d lessons but can teach at most %d of them",
					instance.input.Teachers[teacher].Id, len(occurrences), len(occurrences)-len(unmatched)),
				Occurrences: lo.Map(unmatched, func(occurrence int, _ int) Occurrence { return instance.occurrenceOf(occurrence) }),
			}
		}
	}

	return nil
}

func (instance *problem) anyTeacherAvailable(pair pairDemand, day, period int) bool {
	return lo.SomeBy(pair.teachers, func(teacher int) bool {
		return instance.evaluator.TeacherAvailable(teacher, day, period)
	})
}

// unmatchedOccurrences returns the occurrences left out of a maximum matching against the cells
func unmatchedOccurrences(occurrences, cells []int, neighbours func(occurrence, cell int) bool) ([]int, error) {
	if len(cells) == 0 {
		return occurrences, nil
	}

	// Transform occurrences and cells to slices of any
	occurrencesAny, cellsAny := lo.Map(occurrences, func(occurrence int, _ int) any { return occurrence }), lo.Map(cells, func(cell int, _ int) any { return cell })

	graph, err := bipartitegraph.NewBipartiteGraph(occurrencesAny, cellsAny, func(occurrenceAny, cellAny any) (bool, error) {
		return neighbours(occurrenceAny.(int), cellAny.(int)), nil
	})
	if err != nil {
		return nil, err
	}

	matching := graph.LargestMatching()
	if len(matching) == len(occurrences) {
		return nil, nil
	}

	matched := make(map[int]bool, len(matching))
	for _, edge := range matching {
		matched[edge.Node1] = true
	}
	unmatched := make([]int, 0, len(occurrences)-len(matching))
	for index, occurrence := range occurrences {
		if !matched[index] {
			unmatched = append(unmatched, occurrence)
		}
	}
	return unmatched, nil
}
