package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a time of day expressed in minutes since midnight
type Clock int

const minutesPerDay = 24 * 60

// ParseClock parses an "HH:MM" time of day
func ParseClock(value string) (Clock, error) {
	hours, minutes, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time \"%v\": expected HH:MM", value)
	}

	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in time \"%v\"", value)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m > 59 || len(minutes) != 2 {
		return 0, fmt.Errorf("invalid minutes in time \"%v\"", value)
	}

	return Clock(h*60 + m), nil
}

func (clock Clock) String() string {
	normalized := ((int(clock) % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", normalized/60, normalized%60)
}

// Add returns the clock shifted by the given amount of minutes
func (clock Clock) Add(minutes int) Clock {
	return clock + Clock(minutes)
}

// Interval is a half-open [Start, End) time range within a day
type Interval struct {
	Start Clock
	End   Clock
}

// Overlaps checks whether both intervals share at least one minute
func (interval Interval) Overlaps(other Interval) bool {
	return interval.Start < other.End && other.Start < interval.End
}

// Minutes returns the length of the interval
func (interval Interval) Minutes() int {
	return int(interval.End - interval.Start)
}

func (interval Interval) String() string {
	return fmt.Sprintf("%v-%v", interval.Start, interval.End)
}
