package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/samber/lo"

	"github.com/eduplanner/timetabling/pkg/model"
)

// Table is a header row plus records keyed by header; missing keys become empty cells
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter writes tables as delimited text
type CSVExporter struct {
	Comma rune
}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Comma: ','}
}

// Write streams the table to w one record at a time
func (exporter *CSVExporter) Write(w io.Writer, table Table) error {
	if len(table.Headers) == 0 {
		return errors.New("csv table has no headers")
	}

	writer := csv.NewWriter(w)
	writer.Comma = exporter.Comma
	if err := writer.Write(table.Headers); err != nil {
		return fmt.Errorf("csv headers: %w", err)
	}
	record := make([]string, len(table.Headers))
	for index, row := range table.Rows {
		for column, header := range table.Headers {
			record[column] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("csv row %d: %w", index+1, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return nil
}

// Render is Write into memory
func (exporter *CSVExporter) Render(table Table) ([]byte, error) {
	var buffer bytes.Buffer
	if err := exporter.Write(&buffer, table); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

var scheduleHeaders = []string{"group", "day", "start", "end", "type", "subject", "teacher", "room"}

// ScheduleTable turns slot records into rows of display names, falling back to ids
func ScheduleTable(input model.Input, slots []model.ScheduleSlot) Table {
	groups := lo.SliceToMap(input.Groups, func(group model.Group) (string, string) { return group.Id, group.Name })
	subjects := lo.SliceToMap(input.Subjects, func(subject model.Subject) (string, string) { return subject.Id, subject.Name })
	teachers := lo.SliceToMap(input.Teachers, func(teacher model.Teacher) (string, string) { return teacher.Id, teacher.Name })
	rooms := lo.SliceToMap(input.Rooms, func(room model.Room) (string, string) { return room.Id, room.Name })
	name := func(names map[string]string, id string) string {
		return lo.CoalesceOrEmpty(names[id], id)
	}

	return Table{
		Headers: scheduleHeaders,
		Rows: lo.Map(slots, func(slot model.ScheduleSlot, _ int) map[string]string {
			return map[string]string{
				"group":   name(groups, slot.GroupId),
				"day":     slot.Day,
				"start":   slot.StartTime,
				"end":     slot.EndTime,
				"type":    string(slot.Kind),
				"subject": name(subjects, slot.SubjectId),
				"teacher": name(teachers, slot.TeacherId),
				"room":    name(rooms, slot.RoomId),
			}
		}),
	}
}
