package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("Valid input", func(t *testing.T) {
		assert.NoError(t, schoolInput().Validate())
		assert.NoError(t, singleSubjectInput(1, 5).Validate())
	})

	t.Run("Invalid inputs", func(t *testing.T) {
		scenarios := map[string]func(input *Input){
			"bad clock":              func(input *Input) { input.Config.DefaultStartTime = "8h" },
			"zero class duration":    func(input *Input) { input.Config.ClassDuration = 0 },
			"no teaching days":       func(input *Input) { input.Config.TeachingDays = nil },
			"room without capacity":  func(input *Input) { input.Rooms[0].Capacity = 0 },
			"unknown room category":  func(input *Input) { input.Rooms[0].Category = "garage" },
			"unknown shift":          func(input *Input) { input.Groups[0].Shift = "weekend" },
			"duplicate room":         func(input *Input) { input.Rooms[1].Id = input.Rooms[0].Id },
			"duplicate teacher":      func(input *Input) { input.Teachers[1].Id = input.Teachers[0].Id },
			"unknown teacher subject": func(input *Input) {
				input.Teachers[0].Subjects = append(input.Teachers[0].Subjects, "history")
			},
			"restriction on a day off": func(input *Input) { input.Teachers[1].Restrictions[0].Days = []string{"Sab"} },
			"reversed restriction": func(input *Input) {
				input.Teachers[1].Restrictions[0].StartTime, input.Teachers[1].Restrictions[0].EndTime = "10:30", "08:00"
			},
			"unknown workload group":   func(input *Input) { input.Workload["g9"] = map[string]int{"math": 1} },
			"unknown workload subject": func(input *Input) { input.Workload["g1"]["history"] = 1 },
			"negative workload":        func(input *Input) { input.Workload["g1"]["math"] = -1 },
			"zero consecutive cap":     func(input *Input) { input.Rules.MaxConsecutive = 0 },
			"unknown lab rule":         func(input *Input) { input.Rules.LabRule = "sometimes" },
			"reversed default window": func(input *Input) { input.Config.DefaultEndTime = "07:00" },
			"empty schedule window": func(input *Input) {
				input.Config.Schedules = []TimeConfig{{Name: "late", StartTime: "13:00", EndTime: "13:00"}}
			},
			"unknown schedule": func(input *Input) {
				input.Config.DifferentSchedules = true
				input.Groups[0].ScheduleId = "night"
			},
		}

		for name, mutate := range scenarios {
			//** Arrange
			input := schoolInput()
			mutate(&input)

			//** Act
			err := input.Validate()

			//** Assert
			var configError *ConfigError
			assert.True(t, errors.As(err, &configError), name)
		}
	})

	t.Run("Window errors match the grid", func(t *testing.T) {
		//** Arrange
		input := schoolInput()
		input.Config.DefaultStartTime, input.Config.DefaultEndTime = "12:30", "08:00"

		//** Act
		validateErr := input.Validate()
		_, gridErr := BuildGrid(input.Config, input.Groups)

		//** Assert
		var configError *ConfigError
		require.True(t, errors.As(validateErr, &configError))
		assert.Equal(t, "config", configError.Field)
		assert.EqualError(t, validateErr, gridErr.Error())
	})
}
