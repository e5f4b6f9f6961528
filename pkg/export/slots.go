package export

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/eduplanner/timetabling/pkg/model"
)

// Slots flattens a timetable into schedule records: one per lesson plus one per break of every
// group on every teaching day, ordered by group, day and start time.
func Slots(timetable model.Timetable) []model.ScheduleSlot {
	groupOrder := make(map[string]int, len(timetable.Grid.Groups))
	for index, groupGrid := range timetable.Grid.Groups {
		groupOrder[groupGrid.Group] = index
	}
	dayOrder := make(map[string]int, len(timetable.Grid.Days))
	for index, day := range timetable.Grid.Days {
		dayOrder[day] = index
	}

	slots := make([]model.ScheduleSlot, 0, len(timetable.Lessons))
	for _, assignment := range timetable.Assignments() {
		slots = append(slots, model.ScheduleSlot{
			Day:       assignment.Weekday,
			StartTime: assignment.Slot.Start.String(),
			EndTime:   assignment.Slot.End.String(),
			TeacherId: assignment.Teacher,
			GroupId:   assignment.Group,
			RoomId:    assignment.Room,
			SubjectId: assignment.Subject,
			Kind:      model.SlotClass,
		})
	}

	for _, groupGrid := range timetable.Grid.Groups {
		breaks := lo.Filter(groupGrid.Slots, func(slot model.GridSlot, _ int) bool { return slot.Kind != model.SlotClass })
		for _, day := range timetable.Grid.Days {
			for _, slot := range breaks {
				slots = append(slots, model.ScheduleSlot{
					Day:       day,
					StartTime: slot.Start.String(),
					EndTime:   slot.End.String(),
					GroupId:   groupGrid.Group,
					Kind:      slot.Kind,
				})
			}
		}
	}

	slices.SortStableFunc(slots, func(a, b model.ScheduleSlot) int {
		return cmp.Or(
			cmp.Compare(groupOrder[a.GroupId], groupOrder[b.GroupId]),
			cmp.Compare(dayOrder[a.Day], dayOrder[b.Day]),
			cmp.Compare(a.StartTime, b.StartTime),
		)
	})
	return slots
}

// JSON renders the slot records as an indented array
func JSON(slots []model.ScheduleSlot) ([]byte, error) {
	if slots == nil {
		slots = []model.ScheduleSlot{}
	}
	return json.MarshalIndent(slots, "", "  ")
}

// Document embeds the generated schedule into a copy of the input document
func Document(input model.Input, timetable model.Timetable, generatedAt time.Time) model.Document {
	return model.Document{
		Input:    input.Clone(),
		Schedule: Slots(timetable),
		Meta: &model.Meta{
			GeneratedAt: generatedAt.UTC(),
			RunId:       timetable.RunID,
			Seed:        timetable.Seed,
		},
	}
}

// Lessons reads the class records of a schedule back into lessons, so an imported schedule can be verified
func Lessons(input model.Input, slots []model.ScheduleSlot) ([]model.Lesson, error) {
	grid, err := model.BuildGrid(input.Config, input.Groups)
	if err != nil {
		return nil, err
	}
	days := lo.SliceToMap(lo.Range(len(grid.Days)), func(index int) (string, int) { return grid.Days[index], index })
	groups := lo.SliceToMap(grid.Groups, func(groupGrid model.GroupGrid) (string, model.GroupGrid) { return groupGrid.Group, groupGrid })

	lessons := make([]model.Lesson, 0, len(slots))
	for index, slot := range slots {
		if slot.Kind != model.SlotClass {
			continue
		}
		field := fmt.Sprintf("schedule[%d]", index)

		day, ok := days[slot.Day]
		if !ok {
			return nil, &model.ConfigError{Field: field + ".day", Message: fmt.Sprintf("\"%v\" is not a teaching day", slot.Day)}
		}
		start, err := model.ParseClock(slot.StartTime)
		if err != nil {
			return nil, &model.ConfigError{Field: field + ".startTime", Message: "malformed time", Err: err}
		}
		end, err := model.ParseClock(slot.EndTime)
		if err != nil {
			return nil, &model.ConfigError{Field: field + ".endTime", Message: "malformed time", Err: err}
		}

		interval := model.Interval{Start: start, End: end}
		position := -1
		if gridSlot, found := lo.Find(groups[slot.GroupId].Slots, func(gridSlot model.GridSlot) bool { return gridSlot.Interval == interval }); found {
			position = gridSlot.Position
		}

		lessons = append(lessons, model.Lesson{
			Group:    slot.GroupId,
			Subject:  slot.SubjectId,
			Teacher:  slot.TeacherId,
			Room:     slot.RoomId,
			Day:      day,
			Position: position,
			Interval: interval,
		})
	}
	return lessons, nil
}
