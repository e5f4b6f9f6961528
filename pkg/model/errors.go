package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ConstraintClass names a hard constraint
type ConstraintClass string

const (
	TeacherClash       ConstraintClass = "H1" // Teacher double-booked
	RoomClash          ConstraintClass = "H2" // Room double-booked or too small
	GroupClash         ConstraintClass = "H3" // Group double-booked
	TeacherRestricted  ConstraintClass = "H4" // Teacher scheduled inside a restriction
	TeacherUnqualified ConstraintClass = "H5" // Teacher not qualified for the subject
	WorkloadMismatch   ConstraintClass = "H6" // Lessons placed differ from the workload
	BreakOccupied      ConstraintClass = "H7" // Lesson placed on a break
	ConsecutiveExceed  ConstraintClass = "H8" // Too many back-to-back lessons of a subject
)

var constraintDescriptions = map[ConstraintClass]string{
	TeacherClash:       "teacher double-booked",
	RoomClash:          "room double-booked or over capacity",
	GroupClash:         "group double-booked",
	TeacherRestricted:  "teacher unavailable",
	TeacherUnqualified: "teacher not qualified",
	WorkloadMismatch:   "workload not met",
	BreakOccupied:      "lesson on a break",
	ConsecutiveExceed:  "too many consecutive lessons",
}

func (class ConstraintClass) Description() string {
	return constraintDescriptions[class]
}

// ErrSearchBudgetExceeded reports that the search stopped on its node budget, timeout or cancellation
var ErrSearchBudgetExceeded = errors.New("search budget exceeded")

// ConfigError reports malformed or inconsistent input
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (err *ConfigError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("invalid %v: %v: %v", err.Field, err.Message, err.Err)
	}
	return fmt.Sprintf("invalid %v: %v", err.Field, err.Message)
}

func (err *ConfigError) Unwrap() error {
	return err.Err
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Occurrence identifies one required lesson of a (group, subject) pair
type Occurrence struct {
	Group   string
	Subject string
	Index   int
}

func (occurrence Occurrence) String() string {
	return fmt.Sprintf("%v/%v#%d", occurrence.Group, occurrence.Subject, occurrence.Index+1)
}

// InfeasibleScheduleError reports that no complete schedule satisfies the hard constraints
type InfeasibleScheduleError struct {
	Constraint  ConstraintClass
	Reason      string
	Occurrences []Occurrence
	Err         error
}

func (err *InfeasibleScheduleError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "infeasible schedule (%v %v): %v", err.Constraint, err.Constraint.Description(), err.Reason)
	if len(err.Occurrences) > 0 {
		shown := lo.Slice(err.Occurrences, 0, 8)
		fmt.Fprintf(&builder, "; unplaceable: %v", strings.Join(lo.Map(shown, func(occurrence Occurrence, _ int) string {
			return occurrence.String()
		}), ", "))
		if len(err.Occurrences) > len(shown) {
			fmt.Fprintf(&builder, " and %d more", len(err.Occurrences)-len(shown))
		}
	}
	if err.Err != nil {
		fmt.Fprintf(&builder, ": %v", err.Err)
	}
	return builder.String()
}

func (err *InfeasibleScheduleError) Unwrap() error {
	return err.Err
}

// Violation is a single hard-constraint breach found by the validator
type Violation struct {
	Constraint ConstraintClass
	Message    string
}

func (violation Violation) String() string {
	return fmt.Sprintf("%v: %v", violation.Constraint, violation.Message)
}

// InternalValidationError reports an engine defect: the produced schedule breaks a hard constraint
type InternalValidationError struct {
	Violations []Violation
}

func (err *InternalValidationError) Error() string {
	return fmt.Sprintf("internal validation failed with %d violation(s): %v", len(err.Violations), strings.Join(lo.Map(err.Violations, func(violation Violation, _ int) string {
		return violation.String()
	}), "; "))
}
