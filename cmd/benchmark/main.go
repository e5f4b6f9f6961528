package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/eduplanner/timetabling/pkg/config"
	"github.com/eduplanner/timetabling/pkg/logger"
	"github.com/eduplanner/timetabling/pkg/metrics"
	"github.com/eduplanner/timetabling/pkg/model"
)

const MB float64 = 1024 * 1024

type ResultType int

const (
	solved ResultType = iota
	infeasible
	timeout
	invalid
	failed
)

var resultTypes = map[ResultType]string{
	solved:     "solved",
	infeasible: "infeasible",
	timeout:    "timeout",
	invalid:    "invalid",
	failed:     "error",
}

type TestMetadata struct {
	Name     string
	Groups   int
	Subjects int
	Teachers int
	Rooms    int
	Lessons  int
}

type RunMetadata struct {
	Seed    int64
	Workers int
}

type BenchmarkResult struct {
	Run        RunMetadata
	Test       TestMetadata
	Duration   int64
	Memory     float64
	Result     ResultType
	Constraint model.ConstraintClass
	Penalty    float64
	Nodes      int
	Backtracks int
	Iterations int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("cannot load configuration: %v", err)
	}

	// Define arguments
	directoryPtr := flag.String("dir", "testdata", "Directory holding the input documents")
	outFilePathPtr := flag.String("out", "benchmark_results.csv", "Path of the CSV report")
	workersPtr := flag.String("workers", "1", "Comma separated worker counts to benchmark, e.g. \"1,4\"")
	seedsPtr := flag.Int("seeds", 1, "Number of seeds to run per document and worker count, starting at the configured seed")
	timeoutPtr := flag.Duration("timeout", cfg.Solver.Timeout, "Wall-clock budget of every run")
	metricsPtr := flag.String("metrics", cfg.Metrics.File, "Path of a Prometheus textfile aggregating every run")
	flag.Parse()

	workers, err := parseWorkers(*workersPtr)
	if err != nil {
		log.Fatal(err)
	} else if *seedsPtr < 1 {
		log.Fatalf("at least one seed is required: %v", *seedsPtr)
	}

	zapLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("cannot build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	tests, documents := getTests(*directoryPtr)
	runs := getRuns(cfg.Solver.Seed, *seedsPtr, workers)

	options := cfg.SolverOptions()
	options.Timeout = *timeoutPtr
	recorder := metrics.NewRecorder()
	results := make([]BenchmarkResult, 0, len(tests)*len(runs))

	for index, test := range tests {
		for _, run := range runs {
			fmt.Printf("Benchmarking test \"%v\" with seed \"%v\" and \"%v\" workers\n", test.Name, run.Seed, run.Workers)
			results = append(results, measure(documents[index].Input, test, run, options, zapLogger, recorder))
		}
	}

	file, err := os.Create(*outFilePathPtr)
	if err != nil {
		log.Fatalf("cannot create CSV file: %v", err)
	}
	defer file.Close()
	if err := toCsv(file, results); err != nil {
		log.Fatalf("cannot write CSV report: %v", err)
	}

	if *metricsPtr != "" {
		if err := recorder.WriteToTextfile(*metricsPtr); err != nil {
			log.Fatalf("cannot write metrics textfile: %v", err)
		}
	}
}

func getTests(directory string) ([]TestMetadata, []model.Document) {
	testFiles, err := os.ReadDir(directory)
	if err != nil {
		log.Fatalf("cannot read directory: %v", err)
	}

	tests := make([]TestMetadata, 0, len(testFiles))
	documents := make([]model.Document, 0, len(testFiles))
	for _, file := range testFiles {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		filename := filepath.Join(directory, file.Name())
		document, err := model.InputFromJson(filename)
		if err != nil {
			log.Fatalf("cannot parse input file: %v", err)
		}

		tests = append(tests, testMetadata(filename, document.Input))
		documents = append(documents, document)
	}

	return tests, documents
}

func testMetadata(name string, input model.Input) TestMetadata {
	lessons := 0
	for _, subjects := range input.Workload {
		for _, count := range subjects {
			lessons += max(count, 0)
		}
	}
	return TestMetadata{
		Name:     name,
		Groups:   len(input.Groups),
		Subjects: len(input.Subjects),
		Teachers: len(input.Teachers),
		Rooms:    len(input.Rooms),
		Lessons:  lessons,
	}
}

func getRuns(seed int64, seeds int, workers []int) []RunMetadata {
	runs := make([]RunMetadata, 0, seeds*len(workers))
	for _, workerCount := range workers {
		for offset := range seeds {
			runs = append(runs, RunMetadata{Seed: seed + int64(offset), Workers: workerCount})
		}
	}
	return runs
}

func parseWorkers(raw string) ([]int, error) {
	parts := lo.Filter(lo.Map(strings.Split(raw, ","), func(part string, _ int) string { return strings.TrimSpace(part) }),
		func(part string, _ int) bool { return part != "" })
	if len(parts) == 0 {
		return nil, fmt.Errorf("at least one worker count is required")
	}

	workers := make([]int, 0, len(parts))
	for _, part := range parts {
		count, err := strconv.Atoi(part)
		if err != nil || count < 1 {
			return nil, fmt.Errorf("invalid worker count \"%v\"", part)
		}
		workers = append(workers, count)
	}
	slices.Sort(workers)
	return slices.Compact(workers), nil
}

func measure(input model.Input, test TestMetadata, run RunMetadata, options model.Options, zapLogger *zap.Logger, recorder *metrics.Recorder) BenchmarkResult {
	options.Seed = run.Seed
	options.Workers = run.Workers
	timetabler := model.NewEmbeddedRoomTimetabler(options, zapLogger.With(zap.String("test", test.Name)))

	runtime.GC()
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	start := time.Now()
	timetable, err := timetabler.Build(context.Background(), input)
	elapsed := time.Since(start)

	runtime.ReadMemStats(&after)
	recorder.Observe(timetable, err, elapsed)

	result := BenchmarkResult{
		Run:        run,
		Test:       test,
		Duration:   elapsed.Milliseconds(),
		Memory:     float64(after.TotalAlloc-before.TotalAlloc) / MB,
		Result:     classify(err),
		Penalty:    timetable.Penalty,
		Nodes:      timetable.Nodes,
		Backtracks: timetable.Backtracks,
		Iterations: timetable.Iterations,
	}
	var infeasibleError *model.InfeasibleScheduleError
	if errors.As(err, &infeasibleError) {
		result.Constraint = infeasibleError.Constraint
	}
	return result
}

func classify(err error) ResultType {
	var infeasibleError *model.InfeasibleScheduleError
	var internalError *model.InternalValidationError
	switch {
	case err == nil:
		return solved
	case errors.Is(err, model.ErrSearchBudgetExceeded):
		return timeout
	case errors.As(err, &internalError):
		return invalid
	case errors.As(err, &infeasibleError):
		return infeasible
	default:
		return failed
	}
}

func toCsv(out io.Writer, results []BenchmarkResult) error {
	writer := csv.NewWriter(out)

	header := []string{"Test", "Groups", "Subjects", "Teachers", "Rooms", "Lessons", "Seed", "Workers", "Duration(ms)", "Allocated(MB)", "Result", "Constraint", "Penalty", "Nodes", "Backtracks", "Iterations"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("cannot write CSV header: %w", err)
	}

	for _, result := range results {
		record := []string{
			result.Test.Name,
			fmt.Sprintf("%d", result.Test.Groups),
			fmt.Sprintf("%d", result.Test.Subjects),
			fmt.Sprintf("%d", result.Test.Teachers),
			fmt.Sprintf("%d", result.Test.Rooms),
			fmt.Sprintf("%d", result.Test.Lessons),
			fmt.Sprintf("%d", result.Run.Seed),
			fmt.Sprintf("%d", result.Run.Workers),
			fmt.Sprintf("%d", result.Duration),
			fmt.Sprintf("%.1f", result.Memory),
			resultTypes[result.Result],
			string(result.Constraint),
			fmt.Sprintf("%.3f", result.Penalty),
			fmt.Sprintf("%d", result.Nodes),
			fmt.Sprintf("%d", result.Backtracks),
			fmt.Sprintf("%d", result.Iterations),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("cannot write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
