package model

import (
	"cmp"
	"slices"
)

// Breakdown holds the weighted contribution of every soft constraint to the penalty
type Breakdown struct {
	TeacherGap      float64 `json:"teacherGap"`
	Distribution    float64 `json:"distribution"`
	Consecutive     float64 `json:"consecutive"`
	TheoryEarly     float64 `json:"theoryEarly"`
	WorkloadBalance float64 `json:"workloadBalance"`
	LabPlacement    float64 `json:"labPlacement"`
}

func (breakdown Breakdown) Total() float64 {
	return breakdown.TeacherGap + breakdown.Distribution + breakdown.Consecutive + breakdown.TheoryEarly + breakdown.WorkloadBalance + breakdown.LabPlacement
}

// evaluate scores a complete placement against the enabled soft constraints
func (instance *problem) evaluate(placements []placement) Breakdown {
	weights := instance.weights
	breakdown := Breakdown{}

	if weights.TeacherGap != 0 {
		breakdown.TeacherGap = weights.TeacherGap * float64(instance.teacherGaps(placements))
	}
	if weights.Distribution != 0 {
		breakdown.Distribution = weights.Distribution * instance.distributionVariance(placements)
	}
	if weights.Consecutive != 0 {
		breakdown.Consecutive = -weights.Consecutive * float64(instance.consecutivePairs(placements))
	}
	if weights.TheoryEarly != 0 {
		breakdown.TheoryEarly = weights.TheoryEarly * float64(instance.theoryPositions(placements))
	}
	if weights.WorkloadBalance != 0 {
		breakdown.WorkloadBalance = weights.WorkloadBalance * instance.workloadVariance(placements)
	}
	if weights.LabPlacement != 0 {
		breakdown.LabPlacement = weights.LabPlacement * float64(instance.labPlacement(placements))
	}

	return breakdown
}

//** S1: idle periods between consecutive lessons of a teacher on a day

func (instance *problem) teacherGaps(placements []placement) int {
	days := make([][]Interval, len(instance.input.Teachers)*instance.days)
	for occurrence, target := range placements {
		if target.day < 0 {
			continue
		}
		group := instance.pairs[instance.occurrences[occurrence].pair].group
		key := target.teacher*instance.days + target.day
		days[key] = append(days[key], instance.periods[instance.groupPeriods[group][target.position]])
	}

	idle := 0
	for _, lessons := range days {
		if len(lessons) < 2 {
			continue
		}
		slices.SortFunc(lessons, func(a, b Interval) int { return cmp.Compare(a.Start, b.Start) })
		for i := 1; i < len(lessons); i++ {
			if gap := int(lessons[i].Start - lessons[i-1].End); gap > 0 {
				idle += gap / instance.classDuration
			}
		}
	}
	return idle
}

//** S2: variance of per-day lesson counts of every pair

func (instance *problem) distributionVariance(placements []placement) float64 {
	counts := make([][]int, len(instance.pairs))
	for pair := range counts {
		counts[pair] = make([]int, instance.days)
	}
	for occurrence, target := range placements {
		if target.day >= 0 {
			counts[instance.occurrences[occurrence].pair][target.day]++
		}
	}

	total := 0.0
	for _, perDay := range counts {
		total += variance(perDay)
	}
	return total
}

//** S3: contiguous same-subject lesson pairs of a group

func (instance *problem) consecutivePairs(placements []placement) int {
	slots := instance.groupSlots(placements)
	contiguous := 0
	for group, days := range slots {
		groupGrid := instance.grid.Groups[group]
		for _, positions := range days {
			for position := 1; position < len(positions); position++ {
				if positions[position] >= 0 && positions[position] == positions[position-1] && groupGrid.Contiguous(position-1, position) {
					contiguous++
				}
			}
		}
	}
	return contiguous
}

//** S4: teaching position of theoretical lessons

func (instance *problem) theoryPositions(placements []placement) int {
	positions := 0
	for occurrence, target := range placements {
		if target.day >= 0 && instance.theoretical[instance.pairs[instance.occurrences[occurrence].pair].subject] {
			positions += target.position
		}
	}
	return positions
}

//** S5: variance of weekly lessons across teachers able to take part of the demand

func (instance *problem) workloadVariance(placements []placement) float64 {
	if len(instance.demanded) < 2 {
		return 0
	}
	loads := make([]int, len(instance.input.Teachers))
	for _, target := range placements {
		if target.day >= 0 {
			loads[target.teacher]++
		}
	}
	demanded := make([]int, len(instance.demanded))
	for index, teacher := range instance.demanded {
		demanded[index] = loads[teacher]
	}
	return variance(demanded)
}

//** S6: lab and practical lessons against the lab placement policy

func (instance *problem) labPlacement(placements []placement) int {
	penalty := 0
	for occurrence, target := range placements {
		if target.day < 0 {
			continue
		}
		pair := instance.pairs[instance.occurrences[occurrence].pair]
		if !instance.labLike[pair.subject] {
			continue
		}
		last := len(instance.groupPeriods[pair.group]) - 1
		switch instance.policy {
		case LabPolicyAvoidLast:
			if target.position == last {
				penalty++
			}
		case LabPolicyPrioritizeEnd:
			penalty += last - target.position
		}
	}
	return penalty
}

// groupSlots lays the placements out as group -> day -> position -> pair, -1 when free
func (instance *problem) groupSlots(placements []placement) [][][]int {
	slots := make([][][]int, len(instance.input.Groups))
	for group := range slots {
		slots[group] = make([][]int, instance.days)
		for day := range slots[group] {
			slots[group][day] = make([]int, len(instance.groupPeriods[group]))
			for position := range slots[group][day] {
				slots[group][day][position] = -1
			}
		}
	}
	for occurrence, target := range placements {
		if target.day < 0 {
			continue
		}
		pair := instance.occurrences[occurrence].pair
		slots[instance.pairs[pair].group][target.day][target.position] = pair
	}
	return slots
}

func variance(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, value := range values {
		mean += float64(value)
	}
	mean /= float64(len(values))

	sum := 0.0
	for _, value := range values {
		sum += (float64(value) - mean) * (float64(value) - mean)
	}
	return sum / float64(len(values))
}
