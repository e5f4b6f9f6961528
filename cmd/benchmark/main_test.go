package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduplanner/timetabling/pkg/metrics"
	"github.com/eduplanner/timetabling/pkg/model"
)

func TestParseWorkers(t *testing.T) {
	workers, err := parseWorkers("4, 1,,4")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, workers)

	for _, raw := range []string{"", " , ", "two", "0"} {
		_, err := parseWorkers(raw)
		assert.Error(t, err, raw)
	}
}

func TestGetRuns(t *testing.T) {
	runs := getRuns(7, 2, []int{1, 3})

	assert.Equal(t, []RunMetadata{{Seed: 7, Workers: 1}, {Seed: 8, Workers: 1}, {Seed: 7, Workers: 3}, {Seed: 8, Workers: 3}}, runs)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, solved, classify(nil))
	assert.Equal(t, infeasible, classify(&model.InfeasibleScheduleError{Constraint: model.TeacherClash}))
	assert.Equal(t, timeout, classify(&model.InfeasibleScheduleError{Err: fmt.Errorf("%w: 10 nodes explored", model.ErrSearchBudgetExceeded)}))
	assert.Equal(t, invalid, classify(&model.InternalValidationError{}))
	assert.Equal(t, failed, classify(errors.New("boom")))
}

func TestBenchmarkTestdata(t *testing.T) {
	//** Arrange
	tests, documents := getTests("testdata")
	require.Len(t, tests, 1)
	options := model.DefaultOptions()
	options.Timeout = 0
	options.AnnealIterations = 1000

	//** Act
	result := measure(documents[0].Input, tests[0], RunMetadata{Seed: 1, Workers: 2}, options, zap.NewNop(), metrics.NewRecorder())
	out := &bytes.Buffer{}
	require.NoError(t, toCsv(out, []BenchmarkResult{result}))

	//** Assert
	assert.Equal(t, TestMetadata{Name: tests[0].Name, Groups: 2, Subjects: 4, Teachers: 4, Rooms: 4, Lessons: 25}, tests[0])
	assert.Equal(t, solved, result.Result)
	assert.Greater(t, result.Nodes, 0)

	records, err := csv.NewReader(out).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Test", records[0][0])
	assert.Equal(t, "solved", records[1][10])
	assert.Equal(t, "2", records[1][7])
}
