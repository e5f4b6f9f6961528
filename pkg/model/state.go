package model

import "log"

// placement is where an occurrence is taught; day == -1 marks an unplaced occurrence
type placement struct {
	day      int
	position int // Teaching position in the group's day
	teacher  int
	room     int
}

var unplaced = placement{day: -1, position: -1, teacher: -1, room: -1}

// rejections counts why candidate placements were refused, per constraint class
type rejections map[ConstraintClass]int

// dominant returns the most frequent rejection, ties resolved by class order
func (counts rejections) dominant() (ConstraintClass, bool) {
	best, bestCount := ConstraintClass(""), 0
	for _, class := range []ConstraintClass{TeacherClash, RoomClash, GroupClash, TeacherRestricted, TeacherUnqualified, WorkloadMismatch, BreakOccupied, ConsecutiveExceed} {
		if counts[class] > bestCount {
			best, bestCount = class, counts[class]
		}
	}
	return best, bestCount > 0
}

// state is the mutable assignment owned by a single search branch
type state struct {
	problem    *problem
	placements []placement // Occurrence -> placement
	teacherUse [][]int     // Teacher -> cell -> lessons
	roomUse    [][]int     // Room -> cell -> lessons
	groupUse   [][][]int   // Group -> day -> position -> occurrence or -1
	pairDays   [][]int     // Pair -> day -> lessons
	pairPlaced []int       // Pair -> placed lessons
	load       []int       // Teacher -> lessons per week
	placed     int
}

func newState(instance *problem) *state {
	cells := instance.indexer.Cells()
	current := &state{
		problem:    instance,
		placements: make([]placement, len(instance.occurrences)),
		teacherUse: make([][]int, len(instance.input.Teachers)),
		roomUse:    make([][]int, len(instance.input.Rooms)),
		groupUse:   make([][][]int, len(instance.input.Groups)),
		pairDays:   make([][]int, len(instance.pairs)),
		pairPlaced: make([]int, len(instance.pairs)),
		load:       make([]int, len(instance.input.Teachers)),
	}
	for index := range current.placements {
		current.placements[index] = unplaced
	}
	for teacher := range current.teacherUse {
		current.teacherUse[teacher] = make([]int, cells)
	}
	for room := range current.roomUse {
		current.roomUse[room] = make([]int, cells)
	}
	for group := range current.groupUse {
		current.groupUse[group] = make([][]int, instance.days)
		for day := range current.groupUse[group] {
			current.groupUse[group][day] = make([]int, len(instance.groupPeriods[group]))
			for position := range current.groupUse[group][day] {
				current.groupUse[group][day][position] = -1
			}
		}
	}
	for pair := range current.pairDays {
		current.pairDays[pair] = make([]int, instance.days)
	}
	return current
}

func (current *state) place(occurrence int, target placement) {
	if current.placements[occurrence].day >= 0 {
		log.Panicf("occurrence %v is already placed", current.problem.occurrenceOf(occurrence))
	}
	pairIndex := current.problem.occurrences[occurrence].pair
	pair := current.problem.pairs[pairIndex]
	cell := current.problem.indexer.Index(current.problem.groupPeriods[pair.group][target.position], target.day)

	current.placements[occurrence] = target
	current.teacherUse[target.teacher][cell]++
	current.roomUse[target.room][cell]++
	current.groupUse[pair.group][target.day][target.position] = occurrence
	current.pairDays[pairIndex][target.day]++
	current.pairPlaced[pairIndex]++
	current.load[target.teacher]++
	current.placed++
}

func (current *state) remove(occurrence int) placement {
	target := current.placements[occurrence]
	if target.day < 0 {
		log.Panicf("occurrence %v is not placed", current.problem.occurrenceOf(occurrence))
	}
	pairIndex := current.problem.occurrences[occurrence].pair
	pair := current.problem.pairs[pairIndex]
	cell := current.problem.indexer.Index(current.problem.groupPeriods[pair.group][target.position], target.day)

	current.placements[occurrence] = unplaced
	current.teacherUse[target.teacher][cell]--
	current.roomUse[target.room][cell]--
	current.groupUse[pair.group][target.day][target.position] = -1
	current.pairDays[pairIndex][target.day]--
	current.pairPlaced[pairIndex]--
	current.load[target.teacher]--
	current.placed--
	return target
}

// remaining is the number of lessons of the pair still to be placed
func (current *state) remaining(pairIndex int) int {
	return current.problem.pairs[pairIndex].lessons - current.pairPlaced[pairIndex]
}

// teacherFree checks whether the teacher may teach at (day, period) and teaches nothing overlapping it
func (current *state) teacherFree(teacher, day, period int) bool {
	return current.problem.evaluator.TeacherAvailable(teacher, day, period) && !current.busy(current.teacherUse[teacher], day, period)
}

// slotViolation returns the first hard constraint that placing the pair's group at (day, position)
// would break, regardless of teacher and room
func (current *state) slotViolation(pairIndex, day, position int) (ConstraintClass, bool) {
	pair := current.problem.pairs[pairIndex]
	if current.groupUse[pair.group][day][position] >= 0 {
		return GroupClash, true
	}
	if current.runLength(pairIndex, day, position) > current.problem.maxConsecutive {
		return ConsecutiveExceed, true
	}
	return "", false
}

// teacherViolation returns the hard constraint that the teacher would break at (day, period)
func (current *state) teacherViolation(pairIndex, teacher, day, period int) (ConstraintClass, bool) {
	pair := current.problem.pairs[pairIndex]
	if !current.problem.evaluator.Qualified(teacher, pair.subject) {
		return TeacherUnqualified, true
	}
	if !current.problem.evaluator.TeacherAvailable(teacher, day, period) {
		return TeacherRestricted, true
	}
	if current.busy(current.teacherUse[teacher], day, period) {
		return TeacherClash, true
	}
	return "", false
}

// roomFree checks whether the room hosts no lesson overlapping (day, period)
func (current *state) roomFree(room, day, period int) bool {
	return !current.busy(current.roomUse[room], day, period)
}

func (current *state) busy(use []int, day, period int) bool {
	for _, other := range current.problem.overlaps[period] {
		if use[current.problem.indexer.Index(other, day)] > 0 {
			return true
		}
	}
	return false
}

// runLength is the length of the contiguous same-pair run that would contain (day, position)
func (current *state) runLength(pairIndex, day, position int) int {
	pair := current.problem.pairs[pairIndex]
	groupGrid := current.problem.grid.Groups[pair.group]
	slots := current.groupUse[pair.group][day]
	samePair := func(position int) bool {
		occurrence := slots[position]
		return occurrence >= 0 && current.problem.occurrences[occurrence].pair == pairIndex
	}

	length := 1
	for left := position - 1; left >= 0 && groupGrid.Contiguous(left, left+1) && samePair(left); left-- {
		length++
	}
	for right := position + 1; right < len(slots) && groupGrid.Contiguous(right-1, right) && samePair(right); right++ {
		length++
	}
	return length
}

// violation checks a full placement of the occurrence against every hard constraint the engine enforces
func (current *state) violation(occurrence int, target placement) (ConstraintClass, bool) {
	pairIndex := current.problem.occurrences[occurrence].pair
	pair := current.problem.pairs[pairIndex]
	if target.position < 0 || target.position >= len(current.problem.groupPeriods[pair.group]) {
		return BreakOccupied, true
	}
	if class, ok := current.slotViolation(pairIndex, target.day, target.position); ok {
		return class, true
	}
	period := current.problem.groupPeriods[pair.group][target.position]
	if class, ok := current.teacherViolation(pairIndex, target.teacher, target.day, period); ok {
		return class, true
	}
	if !current.problem.evaluator.Suitable(target.room, pair.subject) || !current.problem.evaluator.Fits(pair.group, target.room) ||
		!current.roomFree(target.room, target.day, period) {
		return RoomClash, true
	}
	return "", false
}

// snapshot copies the placements
func (current *state) snapshot() []placement {
	return append([]placement(nil), current.placements...)
}
