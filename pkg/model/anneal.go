package model

import (
	"context"
	"math"
	"math/rand/v2"
)

// move records the occurrences a local search step displaced so it can be undone
type move struct {
	occurrences []int
	previous    []placement
}

// annealer improves a feasible placement with simulated annealing over relocations and same-group
// swaps, never leaving the hard-feasible region
type annealer struct {
	problem    *problem
	state      *state
	random     *rand.Rand
	iterations int
	patience   int
	tempHigh   float64
	tempLow    float64

	accepted  int
	performed int
}

type annealResult struct {
	best       []placement
	breakdown  Breakdown
	initial    float64
	iterations int
	cancelled  bool
}

func newAnnealer(instance *problem, current *state, random *rand.Rand, options Options) *annealer {
	return &annealer{
		problem:    instance,
		state:      current,
		random:     random,
		iterations: options.AnnealIterations,
		patience:   options.Patience,
		tempHigh:   options.TempHigh,
		tempLow:    options.TempLow,
	}
}

func (search *annealer) run(ctx context.Context) annealResult {
	currentBreakdown := search.problem.evaluate(search.state.placements)
	current := currentBreakdown.Total()
	result := annealResult{
		best:      search.state.snapshot(),
		breakdown: currentBreakdown,
		initial:   current,
	}
	best := current
	if len(search.problem.occurrences) == 0 || search.iterations <= 0 {
		return result
	}

	lastImprovement := 0
	for step := range search.iterations {
		if step%256 == 0 && ctx.Err() != nil {
			result.cancelled = true
			break
		}
		if search.patience > 0 && step-lastImprovement > search.patience {
			break
		}
		result.iterations++

		applied, ok := search.propose()
		if !ok {
			continue
		}
		search.performed++

		candidateBreakdown := search.problem.evaluate(search.state.placements)
		candidate := candidateBreakdown.Total()
		delta := candidate - current
		if delta <= 0 || search.random.Float64() < math.Exp(-delta/search.temperature(step)) {
			search.accepted++
			current = candidate
			if candidate < best {
				best = candidate
				result.best = search.state.snapshot()
				result.breakdown = candidateBreakdown
				lastImprovement = step
			}
			continue
		}
		search.undo(applied)
	}

	return result
}

// temperature decays geometrically from tempHigh to tempLow over the iterations
func (search *annealer) temperature(step int) float64 {
	if search.iterations <= 1 || search.tempHigh <= 0 || search.tempLow <= 0 {
		return math.Max(search.tempLow, 1e-9)
	}
	return search.tempHigh * math.Pow(search.tempLow/search.tempHigh, float64(step)/float64(search.iterations-1))
}

// propose applies a random feasible move
func (search *annealer) propose() (move, bool) {
	if search.random.IntN(2) == 0 {
		return search.relocate()
	}
	return search.swap()
}

// relocate moves an occurrence to a random (day, position, teacher, room)
func (search *annealer) relocate() (move, bool) {
	instance, current := search.problem, search.state
	occurrence := search.random.IntN(len(instance.occurrences))
	pair := instance.pairs[instance.occurrences[occurrence].pair]

	target := placement{
		day:      search.random.IntN(instance.days),
		position: search.random.IntN(len(instance.groupPeriods[pair.group])),
		teacher:  pair.teachers[search.random.IntN(len(pair.teachers))],
		room:     pair.rooms[search.random.IntN(len(pair.rooms))],
	}

	previous := current.remove(occurrence)
	if target == previous {
		current.place(occurrence, previous)
		return move{}, false
	}
	if _, violated := current.violation(occurrence, target); violated {
		current.place(occurrence, previous)
		return move{}, false
	}
	current.place(occurrence, target)
	return move{occurrences: []int{occurrence}, previous: []placement{previous}}, true
}

// swap exchanges the time slots of two lessons of the same group, each keeping its teacher and room
func (search *annealer) swap() (move, bool) {
	instance, current := search.problem, search.state
	first := search.random.IntN(len(instance.occurrences))
	pairIndex := instance.occurrences[first].pair
	group := instance.pairs[pairIndex].group

	firstPlacement := current.placements[first]
	day := search.random.IntN(instance.days)
	position := search.random.IntN(len(instance.groupPeriods[group]))
	second := current.groupUse[group][day][position]
	if second < 0 || instance.occurrences[second].pair == pairIndex {
		return move{}, false
	}
	secondPlacement := current.placements[second]

	firstTarget := placement{day: secondPlacement.day, position: secondPlacement.position, teacher: firstPlacement.teacher, room: firstPlacement.room}
	secondTarget := placement{day: firstPlacement.day, position: firstPlacement.position, teacher: secondPlacement.teacher, room: secondPlacement.room}

	current.remove(first)
	current.remove(second)
	if _, violated := current.violation(first, firstTarget); !violated {
		current.place(first, firstTarget)
		if _, violated := current.violation(second, secondTarget); !violated {
			current.place(second, secondTarget)
			return move{occurrences: []int{first, second}, previous: []placement{firstPlacement, secondPlacement}}, true
		}
		current.remove(first)
	}
	current.place(first, firstPlacement)
	current.place(second, secondPlacement)
	return move{}, false
}

func (search *annealer) undo(applied move) {
	for _, occurrence := range applied.occurrences {
		search.state.remove(occurrence)
	}
	for index, occurrence := range applied.occurrences {
		search.state.place(occurrence, applied.previous[index])
	}
}
