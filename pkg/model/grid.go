package model

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// GridSlot is one interval of a group's teaching day
type GridSlot struct {
	Interval
	Kind SlotKind
	// Position among the teaching slots of the day, -1 for breaks
	Position int
}

// TimeSlot is a GridSlot pinned to a weekday
type TimeSlot struct {
	Day int
	GridSlot
}

type GroupGrid struct {
	Group    string
	Window   Interval
	Slots    []GridSlot // Daily sequence, identical for every teaching day
	Teaching []int      // Indices into Slots of the teaching slots, in order
	Unused   int        // Minutes left at the end of the window that do not fit a lesson
}

// TeachingSlot returns the teaching slot at the given position
func (grid GroupGrid) TeachingSlot(position int) GridSlot {
	return grid.Slots[grid.Teaching[position]]
}

// Contiguous checks whether the teaching slots at positions a < b are back-to-back
func (grid GroupGrid) Contiguous(a, b int) bool {
	if a < 0 || b >= len(grid.Teaching) || b != a+1 {
		return false
	}
	return grid.TeachingSlot(a).End == grid.TeachingSlot(b).Start
}

// Grid is the slot universe: one GroupGrid per group, in input order
type Grid struct {
	Days   []string
	Groups []GroupGrid
}

// TimeSlots expands the daily sequence of a group into one ordered sequence per weekday
func (grid Grid) TimeSlots(group int) [][]TimeSlot {
	return lo.Map(grid.Days, func(_ string, day int) []TimeSlot {
		return lo.Map(grid.Groups[group].Slots, func(slot GridSlot, _ int) TimeSlot {
			return TimeSlot{Day: day, GridSlot: slot}
		})
	})
}

type gridBreak struct {
	at       Clock
	duration int
	kind     SlotKind
}

// BuildGrid partitions each group's schedule window into lesson-sized chunks, carving out the
// group's snack and lunch breaks
func BuildGrid(config BaseConfig, groups []Group) (Grid, error) {
	if config.ClassDuration <= 0 {
		return Grid{}, configErrorf("config.classDuration", "must be positive")
	}
	if len(config.TeachingDays) == 0 {
		return Grid{}, configErrorf("config.teachingDays", "at least one teaching day is required")
	}

	defaultWindow, err := parseWindow("config", config.DefaultStartTime, config.DefaultEndTime)
	if err != nil {
		return Grid{}, err
	}
	windows := make(map[string]Interval, len(config.Schedules))
	for _, schedule := range config.Schedules {
		window, err := parseWindow(fmt.Sprintf("schedule \"%v\"", schedule.Name), schedule.StartTime, schedule.EndTime)
		if err != nil {
			return Grid{}, err
		}
		windows[schedule.Name] = window
	}

	grid := Grid{
		Days:   slices.Clone(config.TeachingDays),
		Groups: make([]GroupGrid, 0, len(groups)),
	}
	for _, group := range groups {
		window := defaultWindow
		if config.DifferentSchedules && group.ScheduleId != "" {
			named, ok := windows[group.ScheduleId]
			if !ok {
				return Grid{}, configErrorf(fmt.Sprintf("group \"%v\"", group.Id), "unknown schedule \"%v\"", group.ScheduleId)
			}
			window = named
		}

		groupGrid, err := buildGroupGrid(config, group, window)
		if err != nil {
			return Grid{}, err
		}
		grid.Groups = append(grid.Groups, groupGrid)
	}

	return grid, nil
}

func buildGroupGrid(config BaseConfig, group Group, window Interval) (GroupGrid, error) {
	field := fmt.Sprintf("group \"%v\"", group.Id)

	//** Collect breaks
	breaks := make([]gridBreak, 0, 2)
	for _, candidate := range []struct {
		time     string
		duration int
		kind     SlotKind
	}{
		{group.SnackTime, config.SnackDuration, SlotSnack},
		{group.LunchTime, config.LunchDuration, SlotLunch},
	} {
		if candidate.time == "" || candidate.duration <= 0 {
			continue
		}
		at, err := ParseClock(candidate.time)
		if err != nil {
			return GroupGrid{}, &ConfigError{Field: field, Message: fmt.Sprintf("bad %v time", candidate.kind), Err: err}
		}
		if at < window.Start || at >= window.End {
			return GroupGrid{}, configErrorf(field, "%v time %v is outside the schedule window %v", candidate.kind, at, window)
		}
		if at.Add(candidate.duration) > window.End {
			return GroupGrid{}, configErrorf(field, "%v break %v-%v overflows the schedule window %v", candidate.kind, at, at.Add(candidate.duration), window)
		}
		breaks = append(breaks, gridBreak{at: at, duration: candidate.duration, kind: candidate.kind})
	}
	slices.SortFunc(breaks, func(a, b gridBreak) int { return int(a.at - b.at) })
	for i := 1; i < len(breaks); i++ {
		if breaks[i-1].at.Add(breaks[i-1].duration) > breaks[i].at {
			return GroupGrid{}, configErrorf(field, "%v and %v breaks overlap", breaks[i-1].kind, breaks[i].kind)
		}
	}

	//** Chunk the window
	groupGrid := GroupGrid{Group: group.Id, Window: window}
	cursor, next := window.Start, 0
	for cursor < window.End {
		if next < len(breaks) && cursor == breaks[next].at {
			pause := breaks[next]
			groupGrid.Slots = append(groupGrid.Slots, GridSlot{
				Interval: Interval{Start: cursor, End: cursor.Add(pause.duration)},
				Kind:     pause.kind,
				Position: -1,
			})
			cursor = cursor.Add(pause.duration)
			next++
			continue
		}

		lessonEnd := cursor.Add(config.ClassDuration)
		if next < len(breaks) && lessonEnd > breaks[next].at {
			return GroupGrid{}, configErrorf(field, "%v time %v does not align to a slot boundary (lesson %v-%v straddles it)", breaks[next].kind, breaks[next].at, cursor, lessonEnd)
		}
		if lessonEnd > window.End {
			break
		}

		groupGrid.Teaching = append(groupGrid.Teaching, len(groupGrid.Slots))
		groupGrid.Slots = append(groupGrid.Slots, GridSlot{
			Interval: Interval{Start: cursor, End: lessonEnd},
			Kind:     SlotClass,
			Position: len(groupGrid.Teaching) - 1,
		})
		cursor = lessonEnd
	}
	groupGrid.Unused = int(window.End - cursor)

	return groupGrid, nil
}

func parseWindow(field, start, end string) (Interval, error) {
	startClock, err := ParseClock(start)
	if err != nil {
		return Interval{}, &ConfigError{Field: field, Message: "bad start time", Err: err}
	}
	endClock, err := ParseClock(end)
	if err != nil {
		return Interval{}, &ConfigError{Field: field, Message: "bad end time", Err: err}
	}
	if endClock <= startClock {
		return Interval{}, configErrorf(field, "end time %v must be after start time %v", endClock, startClock)
	}
	return Interval{Start: startClock, End: endClock}, nil
}
