package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// pairDemand is a (group, subject) pair with a positive workload
type pairDemand struct {
	group    int
	subject  int
	lessons  int
	teachers []int // Qualified teachers
	rooms    []int // Suitable rooms the group fits in, smallest first
}

// occurrence is one required lesson of a pair; occurrences of the same pair are contiguous
type occurrence struct {
	pair  int
	index int
}

// problem is the preprocessed, read-only instance shared by every search branch
type problem struct {
	input Input
	grid  Grid
	days  int

	periods      []Interval // Distinct teaching intervals across every group
	overlaps     [][]int    // Period -> overlapping periods, itself included
	groupPeriods [][]int    // Group -> teaching position -> period

	pairs       []pairDemand
	occurrences []occurrence
	pairIndex   map[[2]int]int // (group, subject) -> pair
	pairStart   []int          // Pair -> first occurrence

	groupPairs       [][]int   // Group -> pairs
	teacherPairs     [][]int   // Teacher -> pairs the teacher is qualified for
	roomPairs        [][]int   // Room -> pairs the room suits
	overlapPositions [][][]int // Group -> period -> teaching positions overlapping the period
	pools            []pool

	groupIds, subjectIds, teacherIds, roomIds map[string]int

	theoretical []bool // Subject -> theoretical
	labLike     []bool // Subject -> lab or practical
	demanded    []int  // Teachers qualified for at least one demanded subject

	indexer        indexer
	evaluator      predicateEvaluator
	weights        Weights
	maxConsecutive int
	policy         LabPolicy
	classDuration  int
}

func preprocessInput(input Input, fallback Weights) (*problem, error) {
	grid, err := BuildGrid(input.Config, input.Groups)
	if err != nil {
		return nil, err
	}

	instance := &problem{
		input:          input,
		grid:           grid,
		days:           len(grid.Days),
		groupIds:       indexById(input.Groups, func(group Group) string { return group.Id }),
		subjectIds:     indexById(input.Subjects, func(subject Subject) string { return subject.Id }),
		teacherIds:     indexById(input.Teachers, func(teacher Teacher) string { return teacher.Id }),
		roomIds:        indexById(input.Rooms, func(room Room) string { return room.Id }),
		weights:        input.Rules.EffectiveWeights(fallback),
		maxConsecutive: input.Rules.MaxConsecutive,
		policy:         input.Rules.Policy(),
		classDuration:  input.Config.ClassDuration,
		pairIndex:      make(map[[2]int]int),
	}
	if instance.maxConsecutive <= 0 {
		return nil, configErrorf("rules.maxConsecutive", "must be at least 1")
	}

	//** Global periods
	instance.periods = lo.Uniq(lo.FlatMap(grid.Groups, func(groupGrid GroupGrid, _ int) []Interval {
		return lo.Map(groupGrid.Teaching, func(slot int, _ int) Interval { return groupGrid.Slots[slot].Interval })
	}))
	slices.SortFunc(instance.periods, func(a, b Interval) int {
		return cmp.Or(cmp.Compare(a.Start, b.Start), cmp.Compare(a.End, b.End))
	})
	periodIndex := make(map[Interval]int, len(instance.periods))
	for index, period := range instance.periods {
		periodIndex[period] = index
	}
	instance.groupPeriods = lo.Map(grid.Groups, func(groupGrid GroupGrid, _ int) []int {
		return lo.Map(groupGrid.Teaching, func(slot int, _ int) int { return periodIndex[groupGrid.Slots[slot].Interval] })
	})

	//** Dependencies
	instance.indexer = newIndexer(max(len(instance.periods), 1), instance.days)
	instance.evaluator = newPredicateEvaluator(input, instance.periods, instance.indexer)

	instance.overlaps = lo.Map(instance.periods, func(_ Interval, period int) []int {
		return lo.Filter(lo.Range(len(instance.periods)), func(other int, _ int) bool {
			return instance.evaluator.Overlapping(period, other)
		})
	})

	instance.theoretical = lo.Map(input.Subjects, func(subject Subject, _ int) bool { return subject.Category == SubjectTheoretical })
	instance.labLike = lo.Map(input.Subjects, func(subject Subject, _ int) bool {
		return subject.Category == SubjectLab || subject.Category == SubjectPractical
	})

	//** Pairs
	for group := range input.Groups {
		for subject := range input.Subjects {
			lessons := input.Workload.Lessons(input.Groups[group].Id, input.Subjects[subject].Id)
			if lessons <= 0 {
				continue
			}

			rooms := lo.Filter(lo.Range(len(input.Rooms)), func(room int, _ int) bool {
				return instance.evaluator.Suitable(room, subject) && instance.evaluator.Fits(group, room)
			})
			slices.SortStableFunc(rooms, func(a, b int) int {
				return cmp.Compare(input.Rooms[a].Capacity, input.Rooms[b].Capacity)
			})

			instance.pairs = append(instance.pairs, pairDemand{
				group:   group,
				subject: subject,
				lessons: lessons,
				teachers: lo.Filter(lo.Range(len(input.Teachers)), func(teacher int, _ int) bool {
					return instance.evaluator.Qualified(teacher, subject)
				}),
				rooms: rooms,
			})
		}
	}

	// Most constrained pairs first: fewest (teacher, cell) options, then largest demand
	options := lo.Map(instance.pairs, func(pair pairDemand, _ int) int { return instance.pairOptions(pair) })
	order := lo.Range(len(instance.pairs))
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Or(
			cmp.Compare(options[a], options[b]),
			cmp.Compare(instance.pairs[b].lessons, instance.pairs[a].lessons),
		)
	})
	instance.pairs = lo.Map(order, func(index int, _ int) pairDemand { return instance.pairs[index] })

	for index, pair := range instance.pairs {
		instance.pairIndex[[2]int{pair.group, pair.subject}] = index
		instance.pairStart = append(instance.pairStart, len(instance.occurrences))
		for lesson := range pair.lessons {
			instance.occurrences = append(instance.occurrences, occurrence{pair: index, index: lesson})
		}
	}

	demandedSubjects := lo.SliceToMap(instance.pairs, func(pair pairDemand) (int, bool) { return pair.subject, true })
	instance.demanded = lo.Filter(lo.Range(len(input.Teachers)), func(teacher int, _ int) bool {
		return lo.SomeBy(lo.Keys(demandedSubjects), func(subject int) bool {
			return instance.evaluator.Qualified(teacher, subject)
		})
	})

	//** Search indexes
	instance.groupPairs = make([][]int, len(input.Groups))
	instance.teacherPairs = make([][]int, len(input.Teachers))
	instance.roomPairs = make([][]int, len(input.Rooms))
	for index, pair := range instance.pairs {
		instance.groupPairs[pair.group] = append(instance.groupPairs[pair.group], index)
		for _, teacher := range pair.teachers {
			instance.teacherPairs[teacher] = append(instance.teacherPairs[teacher], index)
		}
		for _, room := range pair.rooms {
			instance.roomPairs[room] = append(instance.roomPairs[room], index)
		}
	}
	instance.overlapPositions = lo.Map(instance.groupPeriods, func(periods []int, _ int) [][]int {
		return lo.Map(instance.periods, func(_ Interval, period int) []int {
			return lo.Filter(lo.Range(len(periods)), func(position int, _ int) bool {
				return instance.evaluator.Overlapping(period, periods[position])
			})
		})
	})
	instance.pools = slices.Concat(
		instance.buildPools(TeacherClash, func(pair pairDemand) []int { return pair.teachers }),
		instance.buildPools(RoomClash, func(pair pairDemand) []int { return pair.rooms }),
	)

	return instance, nil
}

// pool is a set of teachers or rooms together with the pairs that can only use resources of the set
type pool struct {
	class     ConstraintClass // TeacherClash for teachers, RoomClash for rooms
	resources []int
	members   []int // Pairs, ordered by group
}

// buildPools creates one pool per distinct resource set used by a pair
func (instance *problem) buildPools(class ConstraintClass, resources func(pairDemand) []int) []pool {
	pools := make([]pool, 0)
	seen := make(map[string]bool)
	for _, pair := range instance.pairs {
		set := slices.Sorted(slices.Values(resources(pair)))
		key := fmt.Sprint(set)
		if len(set) == 0 || seen[key] {
			continue
		}
		seen[key] = true

		members := lo.Filter(lo.Range(len(instance.pairs)), func(other int, _ int) bool {
			used := resources(instance.pairs[other])
			return len(used) > 0 && lo.Every(set, used)
		})
		slices.SortStableFunc(members, func(a, b int) int { return cmp.Compare(instance.pairs[a].group, instance.pairs[b].group) })
		pools = append(pools, pool{class: class, resources: set, members: members})
	}
	return pools
}

// pairOptions counts the (teacher, day, position) combinations a pair could ever use
func (instance *problem) pairOptions(pair pairDemand) int {
	if len(pair.rooms) == 0 {
		return 0
	}
	options := 0
	for day := range instance.days {
		for _, period := range instance.groupPeriods[pair.group] {
			for _, teacher := range pair.teachers {
				if instance.evaluator.TeacherAvailable(teacher, day, period) {
					options++
				}
			}
		}
	}
	return options
}

// occurrenceOf returns the public identity of an occurrence
func (instance *problem) occurrenceOf(index int) Occurrence {
	occurrence := instance.occurrences[index]
	pair := instance.pairs[occurrence.pair]
	return Occurrence{
		Group:   instance.input.Groups[pair.group].Id,
		Subject: instance.input.Subjects[pair.subject].Id,
		Index:   occurrence.index,
	}
}

// pairOccurrences returns the public identities of the pair's occurrences starting at the given lesson
func (instance *problem) pairOccurrences(pair int, from int) []Occurrence {
	demand := instance.pairs[pair]
	return lo.Map(lo.RangeFrom(from, max(demand.lessons-from, 0)), func(lesson int, _ int) Occurrence {
		return Occurrence{
			Group:   instance.input.Groups[demand.group].Id,
			Subject: instance.input.Subjects[demand.subject].Id,
			Index:   lesson,
		}
	})
}

func indexById[T any](values []T, id func(T) string) map[string]int {
	indices := make(map[string]int, len(values))
	for index, value := range values {
		indices[id(value)] = index
	}
	return indices
}
