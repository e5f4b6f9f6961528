package model

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type RoomCategory string

const (
	RoomRegular RoomCategory = "regular"
	RoomLab     RoomCategory = "lab"
	RoomSports  RoomCategory = "sports"
	RoomLibrary RoomCategory = "library"
)

type SubjectCategory string

const (
	SubjectTheoretical SubjectCategory = "theoretical"
	SubjectPractical   SubjectCategory = "practical"
	SubjectLab         SubjectCategory = "lab"
)

type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftNight     Shift = "night"
)

// LabPolicy selects at most one lab placement preference
type LabPolicy string

const (
	LabPolicyNone          LabPolicy = "none"
	LabPolicyAvoidLast     LabPolicy = "avoidLast"
	LabPolicyPrioritizeEnd LabPolicy = "prioritizeEnd"
)

type SlotKind string

const (
	SlotClass SlotKind = "class"
	SlotSnack SlotKind = "snack"
	SlotLunch SlotKind = "lunch"
)

type TimeConfig struct {
	Name      string `json:"name" validate:"required"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
}

type BaseConfig struct {
	DifferentSchedules bool         `json:"differentSchedules"`
	DefaultStartTime   string       `json:"defaultStartTime" validate:"required,clock"`
	DefaultEndTime     string       `json:"defaultEndTime" validate:"required,clock"`
	Schedules          []TimeConfig `json:"schedules" validate:"dive"`
	ClassDuration      int          `json:"classDuration" validate:"gt=0"`
	SnackDuration      int          `json:"snackDuration" validate:"gte=0"`
	LunchDuration      int          `json:"lunchDuration" validate:"gte=0"`
	TeachingDays       []string     `json:"teachingDays" validate:"required,min=1,unique,dive,required"`
}

type Room struct {
	Id       string       `json:"id" validate:"required"`
	Name     string       `json:"name"`
	Category RoomCategory `json:"type" validate:"oneof=regular lab sports library"`
	Capacity int          `json:"capacity" validate:"gt=0"`
}

type Subject struct {
	Id       string          `json:"id" validate:"required"`
	Name     string          `json:"name"`
	Category SubjectCategory `json:"type" validate:"oneof=theoretical practical lab"`
	Color    string          `json:"color,omitempty"`
}

type Group struct {
	Id         string `json:"id" validate:"required"`
	Name       string `json:"name"`
	Level      string `json:"level,omitempty"`
	Shift      Shift  `json:"shift" validate:"omitempty,oneof=morning afternoon night"`
	SnackTime  string `json:"snackTime" validate:"omitempty,clock"`
	LunchTime  string `json:"lunchTime" validate:"omitempty,clock"`
	ScheduleId string `json:"scheduleId,omitempty"`
	Size       int    `json:"size,omitempty" validate:"gte=0"`
}

type Restriction struct {
	Id        string   `json:"id,omitempty"`
	Days      []string `json:"days" validate:"required,min=1"`
	StartTime string   `json:"startTime" validate:"required,clock"`
	EndTime   string   `json:"endTime" validate:"required,clock"`
}

type Teacher struct {
	Id               string        `json:"id" validate:"required"`
	Name             string        `json:"name"`
	Subjects         []string      `json:"subjects" validate:"unique"`
	IsFullyAvailable bool          `json:"isFullyAvailable"`
	Restrictions     []Restriction `json:"restrictions" validate:"dive"`
}

// Workload maps group id -> subject id -> lessons per week
type Workload map[string]map[string]int

func (workload Workload) Lessons(group, subject string) int {
	return workload[group][subject]
}

// Weights are the tunable coefficients of the soft constraints
type Weights struct {
	TeacherGap      float64 `json:"teacherGap"`
	Distribution    float64 `json:"distribution"`
	Consecutive     float64 `json:"consecutive"`
	TheoryEarly     float64 `json:"theoryEarly"`
	WorkloadBalance float64 `json:"workloadBalance"`
	LabPlacement    float64 `json:"labPlacement"`
}

func DefaultWeights() Weights {
	return Weights{
		TeacherGap:      10,
		Distribution:    5,
		Consecutive:     2,
		TheoryEarly:     1,
		WorkloadBalance: 3,
		LabPlacement:    8,
	}
}

type RuleConfig struct {
	AvoidTeacherGaps    bool      `json:"avoidTeacherGaps"`
	UniformDistribution bool      `json:"uniformDistribution"`
	GroupConsecutive    bool      `json:"groupConsecutive"`
	TheoryEarly         bool      `json:"theoryEarly"`
	BalanceWorkload     bool      `json:"balanceWorkload"`
	LabRule             LabPolicy `json:"labRule" validate:"omitempty,oneof=none avoidLast prioritizeEnd"`
	MaxConsecutive      int       `json:"maxConsecutive" validate:"gte=1"`
	Weights             *Weights  `json:"weights,omitempty"`
}

// ScheduleSlot is the flat record consumed by rendering collaborators
type ScheduleSlot struct {
	Day       string   `json:"day"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	TeacherId string   `json:"teacherId"`
	GroupId   string   `json:"groupId"`
	RoomId    string   `json:"roomId"`
	SubjectId string   `json:"subjectId"`
	Kind      SlotKind `json:"type"`
}

type Meta struct {
	GeneratedAt time.Time `json:"generatedAt"`
	RunId       string    `json:"runId,omitempty"`
	Seed        int64     `json:"seed"`
}

// Input is the immutable snapshot handed to the engine
type Input struct {
	Config   BaseConfig `json:"config"`
	Rooms    []Room     `json:"rooms"`
	Subjects []Subject  `json:"subjects"`
	Groups   []Group    `json:"groups"`
	Teachers []Teacher  `json:"teachers"`
	Workload Workload   `json:"workload"`
	Rules    RuleConfig `json:"rules"`
}

// Document is the interchange format read and written by import/export collaborators
type Document struct {
	Input
	Schedule []ScheduleSlot `json:"schedule"`
	Meta     *Meta          `json:"meta,omitempty"`
}

var labPolicyAliases = map[string]LabPolicy{
	"":                LabPolicyNone,
	"none":            LabPolicyNone,
	"avoidlast":       LabPolicyAvoidLast,
	"avoid-last":      LabPolicyAvoidLast,
	"avoid-last-slot": LabPolicyAvoidLast,
	"prioritizeend":   LabPolicyPrioritizeEnd,
	"prioritize-end":  LabPolicyPrioritizeEnd,
}

func InputFromJson(file string) (Document, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return Document{}, fmt.Errorf("cannot read input file: %w", err)
	}
	return DecodeDocument(bytes)
}

func DecodeDocument(bytes []byte) (Document, error) {
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return Document{}, &ConfigError{Field: "document", Message: "invalid JSON", Err: err}
	}

	// Older exports keep the configuration under "baseConfig"
	if legacy, ok := inputJson["baseConfig"]; ok {
		if _, ok := inputJson["config"]; !ok {
			inputJson["config"] = legacy
		}
		delete(inputJson, "baseConfig")
	}

	var document Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		Result:           &document,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			labPolicyHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return Document{}, err
	}
	if err := decoder.Decode(inputJson); err != nil {
		return Document{}, &ConfigError{Field: "document", Message: "unexpected document shape", Err: err}
	}

	return document, nil
}

// Encode serializes the document; decoding and re-encoding an encoded document yields the same bytes
func (document Document) Encode() ([]byte, error) {
	return json.MarshalIndent(document, "", "  ")
}

// Clone returns a deep copy of the input so that a run never shares state with its caller
func (input Input) Clone() Input {
	clone := input
	clone.Config.Schedules = slices.Clone(input.Config.Schedules)
	clone.Config.TeachingDays = slices.Clone(input.Config.TeachingDays)
	clone.Rooms = slices.Clone(input.Rooms)
	clone.Subjects = slices.Clone(input.Subjects)
	clone.Groups = slices.Clone(input.Groups)
	clone.Teachers = lo.Map(input.Teachers, func(teacher Teacher, _ int) Teacher {
		teacher.Subjects = slices.Clone(teacher.Subjects)
		teacher.Restrictions = lo.Map(teacher.Restrictions, func(restriction Restriction, _ int) Restriction {
			restriction.Days = slices.Clone(restriction.Days)
			return restriction
		})
		return teacher
	})
	clone.Workload = make(Workload, len(input.Workload))
	for group, subjects := range input.Workload {
		clone.Workload[group] = lo.Assign(subjects)
	}
	if input.Rules.Weights != nil {
		weights := *input.Rules.Weights
		clone.Rules.Weights = &weights
	}
	return clone
}

// EffectiveWeights returns the document weights (or the defaults) with disabled rules zeroed
func (rules RuleConfig) EffectiveWeights(fallback Weights) Weights {
	weights := fallback
	if rules.Weights != nil {
		weights = *rules.Weights
	}
	if !rules.AvoidTeacherGaps {
		weights.TeacherGap = 0
	}
	if !rules.UniformDistribution {
		weights.Distribution = 0
	}
	if !rules.GroupConsecutive {
		weights.Consecutive = 0
	}
	if !rules.TheoryEarly {
		weights.TheoryEarly = 0
	}
	if !rules.BalanceWorkload {
		weights.WorkloadBalance = 0
	}
	if rules.Policy() == LabPolicyNone {
		weights.LabPlacement = 0
	}
	return weights
}

func (rules RuleConfig) Policy() LabPolicy {
	if rules.LabRule == "" {
		return LabPolicyNone
	}
	return rules.LabRule
}

func labPolicyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(LabPolicy("")) {
		return data, nil
	}
	raw := data.(string)
	policy, ok := labPolicyAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return nil, fmt.Errorf("unknown lab rule \"%v\"", raw)
	}
	if raw == "" {
		return raw, nil
	}
	return policy, nil
}

