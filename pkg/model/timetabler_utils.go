package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Verify re-checks lessons against every hard constraint. It works on clock intervals and the raw
// input only, sharing no state with the search
func Verify(input Input, lessons []Lesson) []Violation {
	violations := make([]Violation, 0)
	report := func(class ConstraintClass, format string, args ...any) {
		violations = append(violations, Violation{Constraint: class, Message: fmt.Sprintf(format, args...)})
	}

	grid, err := BuildGrid(input.Config, input.Groups)
	if err != nil {
		report(BreakOccupied, "cannot build the time grid: %v", err)
		return violations
	}

	groups := lo.SliceToMap(input.Groups, func(group Group) (string, Group) { return group.Id, group })
	grids := lo.SliceToMap(grid.Groups, func(groupGrid GroupGrid) (string, GroupGrid) { return groupGrid.Group, groupGrid })
	subjects := lo.SliceToMap(input.Subjects, func(subject Subject) (string, Subject) { return subject.Id, subject })
	teachers := lo.SliceToMap(input.Teachers, func(teacher Teacher) (string, Teacher) { return teacher.Id, teacher })
	rooms := lo.SliceToMap(input.Rooms, func(room Room) (string, Room) { return room.Id, room })

	counts := make(map[[2]string]int)
	byTeacher, byRoom, byGroup := make(map[string][]Lesson), make(map[string][]Lesson), make(map[string][]Lesson)

	//** Per lesson checks
	for _, lesson := range lessons {
		label := fmt.Sprintf("%v/%v on day %d at %v", lesson.Group, lesson.Subject, lesson.Day, lesson.Interval)

		group, groupOk := groups[lesson.Group]
		subject, subjectOk := subjects[lesson.Subject]
		teacher, teacherOk := teachers[lesson.Teacher]
		room, roomOk := rooms[lesson.Room]
		if !groupOk || !subjectOk {
			report(WorkloadMismatch, "%v references an unknown group or subject", label)
			continue
		}
		counts[[2]string{lesson.Group, lesson.Subject}]++

		if lesson.Day < 0 || lesson.Day >= len(grid.Days) {
			report(BreakOccupied, "%v is outside the teaching days", label)
			continue
		}
		day := grid.Days[lesson.Day]
		label = fmt.Sprintf("%v/%v on %v at %v", lesson.Group, lesson.Subject, day, lesson.Interval)

		// H7
		slot, found := lo.Find(grids[lesson.Group].Slots, func(slot GridSlot) bool { return slot.Interval == lesson.Interval })
		if !found {
			report(BreakOccupied, "%v does not match a slot of the group", label)
		} else if slot.Kind != SlotClass {
			report(BreakOccupied, "%v is placed on the %v break", label, slot.Kind)
		}

		// H5 and H4
		if !teacherOk {
			report(TeacherUnqualified, "%v is taught by unknown teacher \"%v\"", label, lesson.Teacher)
		} else {
			if !slices.Contains(teacher.Subjects, lesson.Subject) {
				report(TeacherUnqualified, "%v is taught by \"%v\" who is not qualified", label, teacher.Id)
			}
			if !teacher.IsFullyAvailable && lo.SomeBy(teacher.Restrictions, func(restriction Restriction) bool {
				return restrictionBlocks(restriction, day, lesson.Interval)
			}) {
				report(TeacherRestricted, "%v is inside a restriction of \"%v\"", label, teacher.Id)
			}
			byTeacher[teacher.Id] = append(byTeacher[teacher.Id], lesson)
		}

		// H2 suitability and capacity
		if !roomOk {
			report(RoomClash, "%v is hosted by unknown room \"%v\"", label, lesson.Room)
		} else {
			if !roomSuits(room.Category, subject.Category) {
				report(RoomClash, "%v is hosted by %v room \"%v\"", label, room.Category, room.Id)
			}
			if group.Size > 0 && group.Size > room.Capacity {
				report(RoomClash, "%v does not fit room \"%v\" (%d > %d)", label, room.Id, group.Size, room.Capacity)
			}
			byRoom[room.Id] = append(byRoom[room.Id], lesson)
		}

		byGroup[lesson.Group] = append(byGroup[lesson.Group], lesson)
	}

	//** Double bookings
	reportOverlaps(byTeacher, func(id string, a, b Lesson) {
		report(TeacherClash, "teacher \"%v\" teaches %v/%v and %v/%v at the same time on day %d", id, a.Group, a.Subject, b.Group, b.Subject, a.Day)
	})
	reportOverlaps(byRoom, func(id string, a, b Lesson) {
		report(RoomClash, "room \"%v\" hosts %v/%v and %v/%v at the same time on day %d", id, a.Group, a.Subject, b.Group, b.Subject, a.Day)
	})
	reportOverlaps(byGroup, func(id string, a, b Lesson) {
		report(GroupClash, "group \"%v\" has %v and %v at the same time on day %d", id, a.Subject, b.Subject, a.Day)
	})

	//** Workload
	for _, group := range input.Groups {
		for _, subject := range input.Subjects {
			key := [2]string{group.Id, subject.Id}
			if required := input.Workload.Lessons(group.Id, subject.Id); counts[key] != max(required, 0) {
				report(WorkloadMismatch, "group \"%v\" has %d lessons of \"%v\" but requires %d", group.Id, counts[key], subject.Id, max(required, 0))
			}
		}
	}

	//** Consecutive lessons
	for _, group := range input.Groups {
		perDay := lo.GroupBy(byGroup[group.Id], func(lesson Lesson) int { return lesson.Day })
		days := lo.Keys(perDay)
		slices.Sort(days)
		for _, day := range days {
			dayLessons := slices.Clone(perDay[day])
			slices.SortFunc(dayLessons, func(a, b Lesson) int { return cmp.Compare(a.Start, b.Start) })
			run := 1
			for i := 1; i < len(dayLessons); i++ {
				if dayLessons[i].Subject == dayLessons[i-1].Subject && dayLessons[i-1].End == dayLessons[i].Start {
					run++
				} else {
					run = 1
				}
				if run == input.Rules.MaxConsecutive+1 {
					report(ConsecutiveExceed, "group \"%v\" has more than %d consecutive lessons of \"%v\" on day %d", group.Id, input.Rules.MaxConsecutive, dayLessons[i].Subject, day)
				}
			}
		}
	}

	return violations
}

// reportOverlaps calls overlap for every pair of lessons of the same owner that overlap on a day
func reportOverlaps(owners map[string][]Lesson, overlap func(id string, a, b Lesson)) {
	ids := lo.Keys(owners)
	slices.Sort(ids)
	for _, id := range ids {
		lessons := slices.Clone(owners[id])
		slices.SortFunc(lessons, func(a, b Lesson) int {
			return cmp.Or(cmp.Compare(a.Day, b.Day), cmp.Compare(a.Start, b.Start), cmp.Compare(a.End, b.End))
		})
		for i := range lessons {
			for j := i + 1; j < len(lessons) && lessons[j].Day == lessons[i].Day && lessons[j].Start < lessons[i].End; j++ {
				overlap(id, lessons[i], lessons[j])
			}
		}
	}
}
