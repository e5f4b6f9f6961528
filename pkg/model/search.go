package model

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/samber/lo"
)

// candidate is a scored placement; lower ranks are tried first
type candidate struct {
	placement
	harm         float64 // Options taken away from unfinished pairs, weighted by how short they are of cells
	teacherRank  int
	dayRank      int
	positionRank int
	load         int
	jitter       uint64
}

// frame is one level of the explicit backtracking stack
type frame struct {
	pair       int
	occurrence int
	candidates []placement
	next       int
	rejected   rejections
	bans       int // Length of the ban stack when the frame was opened
}

// ban is a placement proven to lead nowhere for a pair while the enclosing frames keep their placements
type ban struct {
	pair int
	placement
}

// backtracker places one lesson at a time, always for the pair with the least slack, and undoes
// chronologically. Every placement is followed by a survey of all unfinished pairs. An attempt that
// reaches its node cutoff starts over with fresh tie-breaks and the failure weights learnt so far
type backtracker struct {
	problem  *problem
	state    *state
	random   *rand.Rand
	maxNodes int

	nodes      int
	backtracks int
	restarts   int

	teachers [][]int // Pair -> day*positions+position -> free qualified teachers, 0 for a dead cell
	rooms    [][]int // Pair -> day*positions+position -> free suitable rooms
	live     []int   // Pair -> live cells
	weights  []int   // Pair -> failures the pair was blamed for, starting at 1
	priority []uint64

	bans     []ban
	banned   map[ban]int
	cellBans map[[3]int]int // (pair, day, position) -> bans

	groupsAt []int // (day, period) -> groups able to use the surveyed pool there
	stamps   []int
	stamp    int

	deepest         int
	deepestPair     int
	deepestFrom     int
	deepestRejected rejections
}

func newBacktracker(instance *problem, current *state, random *rand.Rand, maxNodes int) *backtracker {
	cells := instance.days * len(instance.periods)
	search := &backtracker{
		problem:     instance,
		state:       current,
		random:      random,
		maxNodes:    maxNodes,
		teachers:    make([][]int, len(instance.pairs)),
		rooms:       make([][]int, len(instance.pairs)),
		live:        make([]int, len(instance.pairs)),
		weights:     make([]int, len(instance.pairs)),
		priority:    make([]uint64, len(instance.pairs)),
		banned:      make(map[ban]int),
		cellBans:    make(map[[3]int]int),
		groupsAt:    make([]int, cells),
		stamps:      make([]int, cells),
		deepest:     -1,
		deepestPair: -1,
	}
	for index, pair := range instance.pairs {
		search.teachers[index] = make([]int, instance.days*len(instance.groupPeriods[pair.group]))
		search.rooms[index] = make([]int, instance.days*len(instance.groupPeriods[pair.group]))
		search.weights[index] = 1
	}
	return search
}

// run searches for a complete placement satisfying every hard constraint
func (search *backtracker) run(ctx context.Context) *InfeasibleScheduleError {
	if len(search.problem.occurrences) == 0 {
		return nil
	}

	cutoff := max(256, 8*len(search.problem.occurrences))
	for {
		infeasible, restart := search.attempt(ctx, cutoff)
		if !restart {
			return infeasible
		}
		search.restarts++
		cutoff += cutoff / 2
	}
}

// attempt runs one depth-first search from the empty assignment. When the node cutoff is reached it
// undoes every placement and asks for a restart
func (search *backtracker) attempt(ctx context.Context, cutoff int) (*InfeasibleScheduleError, bool) {
	current := search.state
	for pair := range search.priority {
		search.priority[pair] = search.random.Uint64()
	}
	limit := search.nodes + cutoff

	if class, failed, ok := search.survey(); !ok {
		search.record(0, failed, rejections{class: 1})
		return search.failure(nil), false
	}
	frames := []frame{search.open()}

	for {
		if search.nodes%1024 == 0 && ctx.Err() != nil {
			return search.failure(fmt.Errorf("%w: %v", ErrSearchBudgetExceeded, ctx.Err())), false
		}
		if search.maxNodes > 0 && search.nodes >= search.maxNodes {
			return search.failure(fmt.Errorf("%w: %d nodes explored", ErrSearchBudgetExceeded, search.nodes)), false
		}
		if search.nodes >= limit {
			search.reset(frames)
			return nil, true
		}
		search.nodes++

		depth := len(frames) - 1
		top := &frames[depth]
		if top.next < len(top.candidates) {
			target := top.candidates[top.next]
			top.next++

			current.place(top.occurrence, target)
			class, failed, ok := search.survey()
			if !ok {
				current.remove(top.occurrence)
				if class != "" {
					top.rejected[class]++
				}
				search.weights[failed]++
				search.addBan(top.pair, target)
				continue
			}
			if current.placed == len(search.problem.occurrences) {
				return nil, false
			}
			frames = append(frames, search.open())
			continue
		}

		//** Dead end
		search.record(depth, top.pair, top.rejected)
		if depth == 0 {
			return search.failure(nil), false
		}
		search.backtracks++
		search.liftBans(top.bans)
		frames = frames[:depth]
		parent := &frames[depth-1]
		search.addBan(parent.pair, current.remove(parent.occurrence))
	}
}

// open chooses the next pair and lists its candidates; the survey tables must be current
func (search *backtracker) open() frame {
	pair := search.choose()
	candidates, rejected := search.candidates(pair)
	return frame{
		pair:       pair,
		occurrence: search.problem.pairStart[pair] + search.state.pairPlaced[pair],
		candidates: candidates,
		rejected:   rejected,
		bans:       len(search.bans),
	}
}

// reset undoes the placements of every frame and forgets the bans
func (search *backtracker) reset(frames []frame) {
	for index := len(frames) - 1; index >= 0; index-- {
		if search.state.placements[frames[index].occurrence].day >= 0 {
			search.state.remove(frames[index].occurrence)
		}
	}
	search.liftBans(0)
}

// choose returns the unfinished pair with the least slack relative to its failure weight
func (search *backtracker) choose() int {
	best := -1
	for pair := range search.problem.pairs {
		if search.state.remaining(pair) == 0 {
			continue
		}
		if best < 0 || search.compare(pair, best) < 0 {
			best = pair
		}
	}
	return best
}

func (search *backtracker) compare(a, b int) int {
	remainingA, remainingB := search.state.remaining(a), search.state.remaining(b)
	return cmp.Or(
		cmp.Compare((search.live[a]-remainingA+1)*search.weights[b], (search.live[b]-remainingB+1)*search.weights[a]),
		cmp.Compare(search.live[a], search.live[b]),
		cmp.Compare(remainingB, remainingA),
		cmp.Compare(search.priority[a], search.priority[b]),
	)
}

// survey refreshes the live cells of every unfinished pair, then checks that every pair, every group
// and every teacher or room pool can still be completed. On failure it returns the constraint class to
// blame and a pair that cannot be completed
func (search *backtracker) survey() (ConstraintClass, int, bool) {
	instance, current := search.problem, search.state

	//** Pairs
	for index, pair := range instance.pairs {
		remaining := current.remaining(index)
		if remaining == 0 {
			continue
		}
		positions := len(instance.groupPeriods[pair.group])
		live := 0
		for day := range instance.days {
			for position, period := range instance.groupPeriods[pair.group] {
				cell := day*positions + position
				search.teachers[index][cell], search.rooms[index][cell] = 0, 0
				if current.groupUse[pair.group][day][position] >= 0 || current.runLength(index, day, position) > instance.maxConsecutive {
					continue
				}
				teachers := search.freeTeachers(pair, day, period)
				if teachers == 0 {
					continue
				}
				rooms := search.freeRooms(pair, day, period)
				if rooms == 0 || search.exhausted(index, day, position, period) {
					continue
				}
				search.teachers[index][cell], search.rooms[index][cell] = teachers, rooms
				live++
			}
		}
		search.live[index] = live
		if live < remaining {
			return search.deadCells(index), index, false
		}
	}

	//** Groups
	for group, pairs := range instance.groupPairs {
		demand, first := 0, -1
		for _, pair := range pairs {
			if remaining := current.remaining(pair); remaining > 0 {
				demand += remaining
				if first < 0 {
					first = pair
				}
			}
		}
		if demand == 0 {
			continue
		}

		free := 0
		for cell := range instance.days * len(instance.groupPeriods[group]) {
			if lo.ContainsBy(pairs, func(pair int) bool { return current.remaining(pair) > 0 && search.teachers[pair][cell] > 0 }) {
				free++
			}
		}
		if free < demand {
			return GroupClash, first, false
		}
	}

	//** Pools
	for _, resources := range instance.pools {
		if failed, ok := search.poolFits(resources); !ok {
			return resources.class, failed, false
		}
	}
	return "", -1, true
}

// poolFits bounds the lessons the pool can still host: at every (day, period) no more than its free
// resources and no more than the groups with a live cell there
func (search *backtracker) poolFits(resources pool) (int, bool) {
	instance, current := search.problem, search.state
	demand, failed := 0, -1
	for _, pair := range resources.members {
		if remaining := current.remaining(pair); remaining > 0 {
			demand += remaining
			if failed < 0 || search.live[pair] < search.live[failed] {
				failed = pair
			}
		}
	}
	if demand == 0 {
		return -1, true
	}

	periods := len(instance.periods)
	clear(search.groupsAt)
	group := -1
	for _, pair := range resources.members {
		if current.remaining(pair) == 0 {
			continue
		}
		if instance.pairs[pair].group != group {
			group = instance.pairs[pair].group
			search.stamp++
		}
		positions := instance.groupPeriods[group]
		for day := range instance.days {
			for position, period := range positions {
				if search.teachers[pair][day*len(positions)+position] == 0 {
					continue
				}
				if at := day*periods + period; search.stamps[at] != search.stamp {
					search.stamps[at] = search.stamp
					search.groupsAt[at]++
				}
			}
		}
	}

	capacity := 0
	for at, groups := range search.groupsAt {
		if groups == 0 {
			continue
		}
		day, period := at/periods, at%periods
		free := 0
		for _, resource := range resources.resources {
			if free == groups {
				break
			}
			if resources.class == TeacherClash && current.teacherFree(resource, day, period) ||
				resources.class == RoomClash && current.roomFree(resource, day, period) {
				free++
			}
		}
		if capacity += free; capacity >= demand {
			return -1, true
		}
	}
	return failed, false
}

func (search *backtracker) freeTeachers(pair pairDemand, day, period int) int {
	free := 0
	for _, teacher := range pair.teachers {
		if search.state.teacherFree(teacher, day, period) {
			free++
		}
	}
	return free
}

func (search *backtracker) freeRooms(pair pairDemand, day, period int) int {
	free := 0
	for _, room := range pair.rooms {
		if search.state.roomFree(room, day, period) {
			free++
		}
	}
	return free
}

// exhausted checks whether every free (teacher, room) combination of the cell is banned for the pair
func (search *backtracker) exhausted(pairIndex, day, position, period int) bool {
	if len(search.cellBans) == 0 || search.cellBans[[3]int{pairIndex, day, position}] == 0 {
		return false
	}
	pair := search.problem.pairs[pairIndex]
	for _, teacher := range pair.teachers {
		if !search.state.teacherFree(teacher, day, period) {
			continue
		}
		for _, room := range pair.rooms {
			if search.state.roomFree(room, day, period) && !search.isBanned(pairIndex, placement{day: day, position: position, teacher: teacher, room: room}) {
				return false
			}
		}
	}
	return true
}

func (search *backtracker) isBanned(pair int, target placement) bool {
	return len(search.banned) > 0 && search.banned[ban{pair: pair, placement: target}] > 0
}

func (search *backtracker) addBan(pair int, target placement) {
	key := ban{pair: pair, placement: target}
	search.bans = append(search.bans, key)
	search.banned[key]++
	search.cellBans[[3]int{pair, target.day, target.position}]++
}

// liftBans drops the bans recorded after the stack had the given length
func (search *backtracker) liftBans(length int) {
	for _, key := range search.bans[length:] {
		if search.banned[key]--; search.banned[key] == 0 {
			delete(search.banned, key)
		}
		cell := [3]int{key.pair, key.day, key.position}
		if search.cellBans[cell]--; search.cellBans[cell] == 0 {
			delete(search.cellBans, cell)
		}
	}
	search.bans = search.bans[:length]
}

// cellReason tells why the pair cannot use (day, position). It is empty when the pair itself occupies
// the cell or when only bans exclude it
func (search *backtracker) cellReason(pairIndex, day, position int) ConstraintClass {
	instance, current := search.problem, search.state
	pair := instance.pairs[pairIndex]
	if occupant := current.groupUse[pair.group][day][position]; occupant >= 0 {
		if instance.occurrences[occupant].pair == pairIndex {
			return ""
		}
		return GroupClash
	}
	if current.runLength(pairIndex, day, position) > instance.maxConsecutive {
		return ConsecutiveExceed
	}
	period := instance.groupPeriods[pair.group][position]
	if !lo.ContainsBy(pair.teachers, func(teacher int) bool { return instance.evaluator.TeacherAvailable(teacher, day, period) }) {
		return TeacherRestricted
	}
	if search.freeTeachers(pair, day, period) == 0 {
		return TeacherClash
	}
	if search.freeRooms(pair, day, period) == 0 {
		return RoomClash
	}
	return ""
}

// deadCells returns the most common reason the pair lost its cells
func (search *backtracker) deadCells(pairIndex int) ConstraintClass {
	positions := len(search.problem.groupPeriods[search.problem.pairs[pairIndex].group])
	reasons := rejections{}
	for day := range search.problem.days {
		for position := range positions {
			if class := search.cellReason(pairIndex, day, position); class != "" {
				reasons[class]++
			}
		}
	}
	class, _ := reasons.dominant()
	return class
}

// candidates lists the placements of the pair's next lesson that keep every hard constraint, least
// harmful first, then by the soft preferences
func (search *backtracker) candidates(pairIndex int) ([]placement, rejections) {
	instance, current := search.problem, search.state
	pair := instance.pairs[pairIndex]
	positions := len(instance.groupPeriods[pair.group])
	previous := -1
	if placed := current.pairPlaced[pairIndex]; placed > 0 {
		previous = current.placements[instance.pairStart[pairIndex]+placed-1].teacher
	}

	rejected := rejections{}
	scored := make([]candidate, 0)
	roomHarm := make([]float64, len(pair.rooms))
	for day := range instance.days {
		for position, period := range instance.groupPeriods[pair.group] {
			if search.teachers[pairIndex][day*positions+position] == 0 {
				if class := search.cellReason(pairIndex, day, position); class != "" {
					rejected[class]++
				}
				continue
			}

			groupHarm := search.groupHarm(pairIndex, day, position)
			for index, room := range pair.rooms {
				roomHarm[index] = -1
				if current.roomFree(room, day, period) {
					roomHarm[index] = search.resourceHarm(pairIndex, instance.roomPairs[room], search.rooms, day, period)
				}
			}

			for _, teacher := range pair.teachers {
				if class, ok := current.teacherViolation(pairIndex, teacher, day, period); ok {
					rejected[class]++
					continue
				}
				teacherHarm := search.resourceHarm(pairIndex, instance.teacherPairs[teacher], search.teachers, day, period)
				teacherRank := 0
				if previous >= 0 && previous != teacher {
					teacherRank = 1
				}

				for index, room := range pair.rooms {
					target := placement{day: day, position: position, teacher: teacher, room: room}
					if roomHarm[index] < 0 || search.isBanned(pairIndex, target) {
						continue
					}
					scored = append(scored, candidate{
						placement:    target,
						harm:         groupHarm + teacherHarm + roomHarm[index],
						teacherRank:  teacherRank,
						dayRank:      current.pairDays[pairIndex][day],
						positionRank: search.positionRank(pair, position, positions),
						load:         current.load[teacher],
						jitter:       search.random.Uint64(),
					})
				}
			}
		}
	}

	slices.SortFunc(scored, func(a, b candidate) int {
		return cmp.Or(
			cmp.Compare(a.harm, b.harm),
			cmp.Compare(a.teacherRank, b.teacherRank),
			cmp.Compare(a.dayRank, b.dayRank),
			cmp.Compare(a.positionRank, b.positionRank),
			cmp.Compare(a.load, b.load),
			cmp.Compare(a.jitter, b.jitter),
		)
	})
	return lo.Map(scored, func(scored candidate, _ int) placement { return scored.placement }), rejected
}

// pressure grows as the pair runs out of spare cells
func (search *backtracker) pressure(pairIndex int) float64 {
	return 1 / float64(search.live[pairIndex]-search.state.remaining(pairIndex)+1)
}

// groupHarm weighs the other unfinished pairs of the group that could still use the cell
func (search *backtracker) groupHarm(pairIndex, day, position int) float64 {
	instance := search.problem
	group := instance.pairs[pairIndex].group
	cell := day*len(instance.groupPeriods[group]) + position
	harm := 0.0
	for _, other := range instance.groupPairs[group] {
		if other != pairIndex && search.state.remaining(other) > 0 && search.teachers[other][cell] > 0 {
			harm += search.pressure(other)
		}
	}
	return harm
}

// resourceHarm weighs the unfinished pairs of other groups that share a teacher or room at (day,
// period), each by the share of its free resources there that the placement takes
func (search *backtracker) resourceHarm(pairIndex int, users []int, free [][]int, day, period int) float64 {
	instance := search.problem
	group := instance.pairs[pairIndex].group
	harm := 0.0
	for _, other := range users {
		otherGroup := instance.pairs[other].group
		if otherGroup == group || search.state.remaining(other) == 0 {
			continue
		}
		positions := len(instance.groupPeriods[otherGroup])
		for _, position := range instance.overlapPositions[otherGroup][period] {
			if count := free[other][day*positions+position]; count > 0 {
				harm += search.pressure(other) / float64(count)
			}
		}
	}
	return harm
}

// positionRank steers placements towards the slots the soft rules prefer
func (search *backtracker) positionRank(pair pairDemand, position, positions int) int {
	instance := search.problem
	switch {
	case instance.theoretical[pair.subject] && instance.weights.TheoryEarly > 0:
		return position
	case instance.labLike[pair.subject] && instance.policy == LabPolicyPrioritizeEnd && instance.weights.LabPlacement > 0:
		return positions - 1 - position
	case instance.labLike[pair.subject] && instance.policy == LabPolicyAvoidLast && instance.weights.LabPlacement > 0 && position == positions-1:
		return 1
	}
	return 0
}

// record keeps the deepest dead end seen by any attempt
func (search *backtracker) record(depth, pair int, rejected rejections) {
	if depth < search.deepest {
		return
	}
	search.deepest, search.deepestPair, search.deepestFrom, search.deepestRejected = depth, pair, search.state.pairPlaced[pair], rejected
}

// failure describes the deepest dead end reached by the search
func (search *backtracker) failure(err error) *InfeasibleScheduleError {
	instance := search.problem
	if search.deepestPair < 0 {
		pair := max(slices.IndexFunc(lo.Range(len(instance.pairs)), func(pair int) bool { return search.state.remaining(pair) > 0 }), 0)
		search.deepest, search.deepestPair, search.deepestFrom, search.deepestRejected = 0, pair, search.state.pairPlaced[pair], rejections{}
	}
	pair, from := search.deepestPair, search.deepestFrom
	next := instance.occurrenceOf(instance.pairStart[pair] + min(from, instance.pairs[pair].lessons-1))

	class, ok := search.deepestRejected.dominant()
	detail := fmt.Sprintf("mostly rejected by %v (%v)", class, class.Description())
	if !ok {
		class, detail = GroupClash, "no free teaching slot remains for the group"
	}

	reason := fmt.Sprintf("cannot place %v after %d nodes, %d backtracks and %d restarts: %v", next, search.nodes, search.backtracks, search.restarts, detail)
	if err != nil {
		reason = fmt.Sprintf("search stopped after %d nodes, %d backtracks and %d restarts; deepest dead end at %v: %v", search.nodes, search.backtracks, search.restarts, next, detail)
	}

	return &InfeasibleScheduleError{
		Constraint:  class,
		Reason:      reason,
		Occurrences: instance.pairOccurrences(pair, from),
		Err:         err,
	}
}
