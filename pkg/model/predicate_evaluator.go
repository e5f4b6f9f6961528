package model

type predicateEvaluator interface {
	// Checks whether the teacher is qualified to teach the subject
	Qualified(teacher, subject int) bool

	// Checks whether no restriction of the teacher overlaps the period on the given day
	TeacherAvailable(teacher, day, period int) bool

	// Checks whether the room's category suits the subject's category
	Suitable(room, subject int) bool

	// Checks whether the group's size is smaller than or equal to the room's capacity (i.e. the group fits in the room)
	Fits(group, room int) bool

	// Checks whether period1 and period2 share at least one minute
	Overlapping(period1, period2 int) bool
}

var roomSuitability = map[SubjectCategory][]RoomCategory{
	SubjectLab:         {RoomLab},
	SubjectPractical:   {RoomLab, RoomSports, RoomRegular},
	SubjectTheoretical: {RoomRegular, RoomLibrary},
}

// roomSuits checks whether a room category can host a subject category
func roomSuits(room RoomCategory, subject SubjectCategory) bool {
	for _, category := range roomSuitability[subject] {
		if category == room {
			return true
		}
	}
	return false
}

// restrictionBlocks checks whether a restriction makes the teacher unavailable during the interval on the day
func restrictionBlocks(restriction Restriction, day string, interval Interval) bool {
	dayMatches := false
	for _, restrictedDay := range restriction.Days {
		if restrictedDay == day {
			dayMatches = true
			break
		}
	}
	if !dayMatches {
		return false
	}

	start, err := ParseClock(restriction.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseClock(restriction.EndTime)
	if err != nil {
		return false
	}
	return interval.Overlaps(Interval{Start: start, End: end})
}
