package model

import "fmt"

var weekDays = []string{"Seg", "Ter", "Qua", "Qui", "Sex"}

// singleSubjectInput is one group, one theoretical subject, one teacher and one room, with
// slotsPerDay back-to-back 50 minute lessons starting at 08:00
func singleSubjectInput(slotsPerDay, lessons int) Input {
	end := Clock(8 * 60).Add(50 * slotsPerDay)
	return Input{
		Config: BaseConfig{
			DefaultStartTime: "08:00",
			DefaultEndTime:   end.String(),
			ClassDuration:    50,
			SnackDuration:    20,
			LunchDuration:    60,
			TeachingDays:     append([]string(nil), weekDays...),
		},
		Rooms:    []Room{{Id: "r1", Name: "Sala 1", Category: RoomRegular, Capacity: 40}},
		Subjects: []Subject{{Id: "math", Name: "Matemática", Category: SubjectTheoretical}},
		Groups:   []Group{{Id: "g1", Name: "1A", Shift: ShiftMorning, Size: 30}},
		Teachers: []Teacher{{Id: "t1", Name: "Ana", Subjects: []string{"math"}, IsFullyAvailable: true}},
		Workload: Workload{"g1": {"math": lessons}},
		Rules:    RuleConfig{MaxConsecutive: 2, LabRule: LabPolicyNone},
	}
}

// schoolInput is a small but realistic morning school: two groups, four subjects, four teachers
// and five teaching slots per day around a snack break
func schoolInput() Input {
	return Input{
		Config: BaseConfig{
			DefaultStartTime: "08:00",
			DefaultEndTime:   "12:30",
			ClassDuration:    50,
			SnackDuration:    20,
			LunchDuration:    60,
			TeachingDays:     append([]string(nil), weekDays...),
		},
		Rooms: []Room{
			{Id: "r1", Name: "Sala 1", Category: RoomRegular, Capacity: 40},
			{Id: "r2", Name: "Sala 2", Category: RoomRegular, Capacity: 40},
			{Id: "lab1", Name: "Laboratório", Category: RoomLab, Capacity: 30},
			{Id: "gym", Name: "Quadra", Category: RoomSports, Capacity: 60},
		},
		Subjects: []Subject{
			{Id: "math", Name: "Matemática", Category: SubjectTheoretical},
			{Id: "port", Name: "Português", Category: SubjectTheoretical},
			{Id: "chem", Name: "Química", Category: SubjectLab},
			{Id: "pe", Name: "Educação Física", Category: SubjectPractical},
		},
		Groups: []Group{
			{Id: "g1", Name: "1A", Shift: ShiftMorning, SnackTime: "10:30", Size: 30},
			{Id: "g2", Name: "1B", Shift: ShiftMorning, SnackTime: "10:30", Size: 28},
		},
		Teachers: []Teacher{
			{Id: "t-math", Name: "Ana", Subjects: []string{"math"}, IsFullyAvailable: true},
			{Id: "t-port", Name: "Bruno", Subjects: []string{"port"}, Restrictions: []Restriction{
				{Id: "r", Days: []string{"Seg"}, StartTime: "08:00", EndTime: "10:30"},
			}},
			{Id: "t-sci", Name: "Carla", Subjects: []string{"chem", "pe"}, IsFullyAvailable: true},
			{Id: "t-flex", Name: "Davi", Subjects: []string{"math", "port"}, IsFullyAvailable: true},
		},
		Workload: Workload{
			"g1": {"math": 5, "port": 4, "chem": 2, "pe": 2},
			"g2": {"math": 4, "port": 4, "chem": 2, "pe": 2},
		},
		Rules: RuleConfig{
			AvoidTeacherGaps:    true,
			UniformDistribution: true,
			GroupConsecutive:    true,
			TheoryEarly:         true,
			BalanceWorkload:     true,
			LabRule:             LabPolicyAvoidLast,
			MaxConsecutive:      2,
		},
	}
}

// denseSchoolInput fills 24 of the 25 weekly slots of every group: math 8, port 8, chem 4 and pe 4.
// Science teachers cover both chem and pe, so they compete for the same periods across groups
func denseSchoolInput(groups, teachersPerSubject, regularRooms, labs, gyms int) Input {
	input := Input{
		Config: BaseConfig{
			DefaultStartTime: "08:00",
			DefaultEndTime:   "12:10",
			ClassDuration:    50,
			TeachingDays:     append([]string(nil), weekDays...),
		},
		Subjects: []Subject{
			{Id: "math", Name: "Matemática", Category: SubjectTheoretical},
			{Id: "port", Name: "Português", Category: SubjectTheoretical},
			{Id: "chem", Name: "Química", Category: SubjectLab},
			{Id: "pe", Name: "Educação Física", Category: SubjectPractical},
		},
		Workload: Workload{},
		Rules: RuleConfig{
			AvoidTeacherGaps:    true,
			UniformDistribution: true,
			GroupConsecutive:    true,
			TheoryEarly:         true,
			BalanceWorkload:     true,
			LabRule:             LabPolicyAvoidLast,
			MaxConsecutive:      2,
		},
	}

	for index := range groups {
		id := fmt.Sprintf("g%d", index+1)
		input.Groups = append(input.Groups, Group{Id: id, Name: fmt.Sprintf("%dº", index+1), Shift: ShiftMorning, Size: 30})
		input.Workload[id] = map[string]int{"math": 8, "port": 8, "chem": 4, "pe": 4}
	}
	for _, rooms := range []struct {
		prefix   string
		count    int
		category RoomCategory
	}{{"r", regularRooms, RoomRegular}, {"lab", labs, RoomLab}, {"gym", gyms, RoomSports}} {
		for index := range rooms.count {
			id := fmt.Sprintf("%v%d", rooms.prefix, index+1)
			input.Rooms = append(input.Rooms, Room{Id: id, Name: id, Category: rooms.category, Capacity: 40})
		}
	}
	for _, staff := range []struct {
		prefix   string
		subjects []string
	}{{"t-math", []string{"math"}}, {"t-port", []string{"port"}}, {"t-sci", []string{"chem", "pe"}}} {
		for index := range teachersPerSubject {
			id := fmt.Sprintf("%v%d", staff.prefix, index+1)
			input.Teachers = append(input.Teachers, Teacher{Id: id, Name: id, Subjects: staff.subjects, IsFullyAvailable: true})
		}
	}
	return input
}

func testOptions() Options {
	options := DefaultOptions()
	options.Timeout = 0
	options.AnnealIterations = 2000
	options.Patience = 500
	return options
}

func occurrenceKeys(occurrences []Occurrence) []string {
	keys := make([]string, 0, len(occurrences))
	for _, occurrence := range occurrences {
		keys = append(keys, fmt.Sprintf("%v/%v", occurrence.Group, occurrence.Subject))
	}
	return keys
}
