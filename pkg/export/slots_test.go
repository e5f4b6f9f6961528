package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduplanner/timetabling/pkg/model"
)

func snackInput() model.Input {
	return model.Input{
		Config: model.BaseConfig{
			DefaultStartTime: "08:00",
			DefaultEndTime:   "10:30",
			ClassDuration:    50,
			SnackDuration:    20,
			LunchDuration:    60,
			TeachingDays:     []string{"Seg", "Ter", "Qua", "Qui", "Sex"},
		},
		Rooms:    []model.Room{{Id: "r1", Name: "Sala 1", Category: model.RoomRegular, Capacity: 40}},
		Subjects: []model.Subject{{Id: "math", Name: "Matemática", Category: model.SubjectTheoretical}},
		Groups:   []model.Group{{Id: "g1", Name: "1A", Shift: model.ShiftMorning, SnackTime: "09:40"}},
		Teachers: []model.Teacher{{Id: "t1", Name: "Ana", Subjects: []string{"math"}, IsFullyAvailable: true}},
		Workload: model.Workload{"g1": {"math": 3}},
		Rules:    model.RuleConfig{UniformDistribution: true, MaxConsecutive: 2, LabRule: model.LabPolicyNone},
	}
}

func generate(t *testing.T, input model.Input) model.Timetable {
	t.Helper()
	options := model.DefaultOptions()
	options.Timeout = 0
	options.AnnealIterations = 500
	timetable, err := model.NewEmbeddedRoomTimetabler(options, zap.NewNop()).Build(context.Background(), input)
	require.NoError(t, err)
	return timetable
}

func TestSlots(t *testing.T) {
	//** Arrange
	timetable := generate(t, snackInput())

	//** Act
	slots := Slots(timetable)

	//** Assert
	require.Len(t, slots, 8)
	classes := lo.Filter(slots, func(slot model.ScheduleSlot, _ int) bool { return slot.Kind == model.SlotClass })
	snacks := lo.Filter(slots, func(slot model.ScheduleSlot, _ int) bool { return slot.Kind == model.SlotSnack })
	assert.Len(t, classes, 3)
	assert.Len(t, snacks, 5)

	for _, slot := range classes {
		assert.Equal(t, "t1", slot.TeacherId)
		assert.Equal(t, "r1", slot.RoomId)
		assert.Equal(t, "math", slot.SubjectId)
	}
	for _, slot := range snacks {
		assert.Equal(t, "09:40", slot.StartTime)
		assert.Equal(t, "10:00", slot.EndTime)
		assert.Empty(t, slot.TeacherId)
		assert.Empty(t, slot.RoomId)
		assert.Empty(t, slot.SubjectId)
	}

	days := []string{"Seg", "Ter", "Qua", "Qui", "Sex"}
	for index := 1; index < len(slots); index++ {
		previous, current := slots[index-1], slots[index]
		previousDay, currentDay := lo.IndexOf(days, previous.Day), lo.IndexOf(days, current.Day)
		assert.True(t, previousDay < currentDay || (previousDay == currentDay && previous.StartTime < current.StartTime))
	}
}

func TestJSON(t *testing.T) {
	empty, err := JSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	content, err := JSON([]model.ScheduleSlot{{Day: "Seg", StartTime: "09:40", EndTime: "10:00", GroupId: "g1", Kind: model.SlotSnack}})
	require.NoError(t, err)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.Equal(t, map[string]string{
		"day": "Seg", "startTime": "09:40", "endTime": "10:00", "teacherId": "",
		"groupId": "g1", "roomId": "", "subjectId": "", "type": "snack",
	}, decoded[0])
	assert.True(t, strings.HasPrefix(string(content), "[\n  {"))
}

func TestDocumentRoundTrip(t *testing.T) {
	//** Arrange
	input := snackInput()
	timetable := generate(t, input)
	generatedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	//** Act
	document := Document(input, timetable, generatedAt)
	encoded, err := document.Encode()
	require.NoError(t, err)
	imported, err := model.DecodeDocument(encoded)
	require.NoError(t, err)
	lessons, err := Lessons(imported.Input, imported.Schedule)
	require.NoError(t, err)

	//** Assert
	require.NotNil(t, imported.Meta)
	assert.Equal(t, timetable.RunID, imported.Meta.RunId)
	assert.Equal(t, timetable.Seed, imported.Meta.Seed)
	assert.True(t, generatedAt.Equal(imported.Meta.GeneratedAt))
	assert.Equal(t, document.Schedule, imported.Schedule)

	assert.Empty(t, model.Verify(imported.Input, lessons))
	assert.ElementsMatch(t, timetable.Lessons, lessons)
}

func TestLessons(t *testing.T) {
	input := snackInput()

	t.Run("Break records are skipped", func(t *testing.T) {
		lessons, err := Lessons(input, []model.ScheduleSlot{
			{Day: "Ter", StartTime: "08:50", EndTime: "09:40", TeacherId: "t1", GroupId: "g1", RoomId: "r1", SubjectId: "math", Kind: model.SlotClass},
			{Day: "Ter", StartTime: "09:40", EndTime: "10:00", GroupId: "g1", Kind: model.SlotSnack},
		})

		require.NoError(t, err)
		require.Len(t, lessons, 1)
		assert.Equal(t, 1, lessons[0].Day)
		assert.Equal(t, 1, lessons[0].Position)
	})

	t.Run("Malformed records", func(t *testing.T) {
		for _, slot := range []model.ScheduleSlot{
			{Day: "Dom", StartTime: "08:00", EndTime: "08:50", Kind: model.SlotClass},
			{Day: "Seg", StartTime: "8h", EndTime: "08:50", Kind: model.SlotClass},
			{Day: "Seg", StartTime: "08:00", EndTime: "", Kind: model.SlotClass},
		} {
			_, err := Lessons(input, []model.ScheduleSlot{slot})

			var configError *model.ConfigError
			assert.ErrorAs(t, err, &configError)
		}
	})
}

func TestScheduleCSV(t *testing.T) {
	input := snackInput()
	slots := []model.ScheduleSlot{
		{Day: "Seg", StartTime: "08:00", EndTime: "08:50", TeacherId: "t1", GroupId: "g1", RoomId: "r1", SubjectId: "math", Kind: model.SlotClass},
		{Day: "Seg", StartTime: "09:40", EndTime: "10:00", GroupId: "g1", Kind: model.SlotSnack},
	}
	expected := "group,day,start,end,type,subject,teacher,room\n" +
		"1A,Seg,08:00,08:50,class,Matemática,Ana,Sala 1\n" +
		"1A,Seg,09:40,10:00,snack,,,\n"

	t.Run("Rendered in memory", func(t *testing.T) {
		content, err := NewCSVExporter().Render(ScheduleTable(input, slots))

		require.NoError(t, err)
		assert.Equal(t, expected, string(content))
	})

	t.Run("Streamed to a writer", func(t *testing.T) {
		//** Arrange
		var out strings.Builder
		exporter := NewCSVExporter()

		//** Act
		err := exporter.Write(&out, ScheduleTable(input, slots))

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, expected, out.String())
	})

	t.Run("Semicolon separated", func(t *testing.T) {
		exporter := NewCSVExporter()
		exporter.Comma = ';'

		content, err := exporter.Render(Table{Headers: []string{"a", "b"}, Rows: []map[string]string{{"a": "1", "b": "x;y"}}})

		require.NoError(t, err)
		assert.Equal(t, "a;b\n1;\"x;y\"\n", string(content))
	})

	t.Run("Failures", func(t *testing.T) {
		_, err := NewCSVExporter().Render(Table{})
		assert.Error(t, err)

		err = NewCSVExporter().Write(failingWriter{}, ScheduleTable(input, slots))
		assert.ErrorIs(t, err, errDiskFull)
	})
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errDiskFull
}
