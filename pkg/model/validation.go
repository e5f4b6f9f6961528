package model

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	err := validate.RegisterValidation("clock", func(field validator.FieldLevel) bool {
		_, err := ParseClock(field.Field().String())
		return err == nil
	})
	if err != nil {
		log.Panicf("cannot register clock validation: %v", err)
	}
	return validate
}

var inputValidator = newValidator()

// Validate checks the shape of the input and every cross reference between entities
func (input Input) Validate() error {
	//** Field level rules
	if err := validateStruct("config", input.Config); err != nil {
		return err
	}
	if err := validateStruct("rules", input.Rules); err != nil {
		return err
	}
	for _, room := range input.Rooms {
		if err := validateStruct(fmt.Sprintf("room \"%v\"", room.Id), room); err != nil {
			return err
		}
	}
	for _, subject := range input.Subjects {
		if err := validateStruct(fmt.Sprintf("subject \"%v\"", subject.Id), subject); err != nil {
			return err
		}
	}
	for _, group := range input.Groups {
		if err := validateStruct(fmt.Sprintf("group \"%v\"", group.Id), group); err != nil {
			return err
		}
	}
	for _, teacher := range input.Teachers {
		if err := validateStruct(fmt.Sprintf("teacher \"%v\"", teacher.Id), teacher); err != nil {
			return err
		}
	}

	//** Unique identifiers
	if duplicate, ok := firstDuplicate(lo.Map(input.Rooms, func(room Room, _ int) string { return room.Id })); ok {
		return configErrorf("rooms", "duplicate room id \"%v\"", duplicate)
	}
	if duplicate, ok := firstDuplicate(lo.Map(input.Subjects, func(subject Subject, _ int) string { return subject.Id })); ok {
		return configErrorf("subjects", "duplicate subject id \"%v\"", duplicate)
	}
	if duplicate, ok := firstDuplicate(lo.Map(input.Groups, func(group Group, _ int) string { return group.Id })); ok {
		return configErrorf("groups", "duplicate group id \"%v\"", duplicate)
	}
	if duplicate, ok := firstDuplicate(lo.Map(input.Teachers, func(teacher Teacher, _ int) string { return teacher.Id })); ok {
		return configErrorf("teachers", "duplicate teacher id \"%v\"", duplicate)
	}
	if duplicate, ok := firstDuplicate(lo.Map(input.Config.Schedules, func(schedule TimeConfig, _ int) string { return schedule.Name })); ok {
		return configErrorf("config.schedules", "duplicate schedule name \"%v\"", duplicate)
	}

	//** Windows
	if _, err := parseWindow("config", input.Config.DefaultStartTime, input.Config.DefaultEndTime); err != nil {
		return err
	}
	for _, schedule := range input.Config.Schedules {
		if _, err := parseWindow(fmt.Sprintf("schedule \"%v\"", schedule.Name), schedule.StartTime, schedule.EndTime); err != nil {
			return err
		}
	}

	//** References
	subjects := lo.SliceToMap(input.Subjects, func(subject Subject) (string, bool) { return subject.Id, true })
	groups := lo.SliceToMap(input.Groups, func(group Group) (string, bool) { return group.Id, true })
	schedules := lo.SliceToMap(input.Config.Schedules, func(schedule TimeConfig) (string, bool) { return schedule.Name, true })

	for _, group := range input.Groups {
		if input.Config.DifferentSchedules && group.ScheduleId != "" && !schedules[group.ScheduleId] {
			return configErrorf(fmt.Sprintf("group \"%v\"", group.Id), "unknown schedule \"%v\"", group.ScheduleId)
		}
	}

	for _, teacher := range input.Teachers {
		field := fmt.Sprintf("teacher \"%v\"", teacher.Id)
		for _, subject := range teacher.Subjects {
			if !subjects[subject] {
				return configErrorf(field, "unknown subject \"%v\"", subject)
			}
		}
		if teacher.IsFullyAvailable {
			continue
		}
		for _, restriction := range teacher.Restrictions {
			if _, err := parseWindow(field+" restriction", restriction.StartTime, restriction.EndTime); err != nil {
				return err
			}
			for _, day := range restriction.Days {
				if !slices.Contains(input.Config.TeachingDays, day) {
					return configErrorf(field, "restriction day \"%v\" is not a teaching day", day)
				}
			}
		}
	}

	for group, row := range input.Workload {
		if !groups[group] {
			return configErrorf("workload", "unknown group \"%v\"", group)
		}
		for subject, lessons := range row {
			if !subjects[subject] {
				return configErrorf("workload", "unknown subject \"%v\" for group \"%v\"", subject, group)
			}
			if lessons < 0 {
				return configErrorf("workload", "negative lessons for group \"%v\" and subject \"%v\"", group, subject)
			}
		}
	}

	return nil
}

func validateStruct(field string, value any) error {
	err := inputValidator.Struct(value)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := lo.Map(validationErrors, func(fieldError validator.FieldError, _ int) string {
			if fieldError.Param() != "" {
				return fmt.Sprintf("%v fails %v=%v", fieldError.Field(), fieldError.Tag(), fieldError.Param())
			}
			return fmt.Sprintf("%v fails %v", fieldError.Field(), fieldError.Tag())
		})
		return &ConfigError{Field: field, Message: strings.Join(messages, ", "), Err: err}
	}
	return &ConfigError{Field: field, Message: "validation failed", Err: err}
}

func firstDuplicate(values []string) (string, bool) {
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		if seen[value] {
			return value, true
		}
		seen[value] = true
	}
	return "", false
}
