package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eduplanner/timetabling/pkg/config"
	"github.com/eduplanner/timetabling/pkg/export"
	"github.com/eduplanner/timetabling/pkg/logger"
	"github.com/eduplanner/timetabling/pkg/metrics"
	"github.com/eduplanner/timetabling/pkg/model"
)

const (
	exitGenerated  = 10
	exitInvalid    = 15
	exitInfeasible = 20
	exitFailure    = 1
)

var validFormats = []string{"document", "slots", "csv"}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "cannot load configuration: %v\n", err)
		return exitFailure
	}

	// Define arguments
	flags := flag.NewFlagSet("timetable", flag.ContinueOnError)
	flags.SetOutput(stderr)
	filePathPtr := flags.String("file", "", "Path to the input document")
	outFilePathPtr := flags.String("out", "", "Path to the file where the output will be written; if empty, it'll be written into the Standard Output")
	formatPtr := flags.String("format", "document", `Output format. Allowed values are:
- "document" (the input document with the generated schedule and run metadata),
- "slots" (the schedule records only) and
- "csv" (one row per schedule record, with display names)`)
	seedPtr := flags.Int64("seed", cfg.Solver.Seed, "Seed of the first search branch")
	workersPtr := flags.Int("workers", cfg.Solver.Workers, "Number of independent search branches")
	timeoutPtr := flags.Duration("timeout", cfg.Solver.Timeout, "Wall-clock budget of the whole run; 0 disables it")
	metricsPtr := flags.String("metrics", cfg.Metrics.File, "Path of a Prometheus textfile written after the run")
	verifyPtr := flags.Bool("verify", false, "Check the schedule stored in the input document instead of generating one")
	if err := flags.Parse(args); err != nil {
		return exitFailure
	}
	format := strings.ToLower(*formatPtr)

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "cannot build logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = log.Sync() }()

	// Validate arguments
	if !slices.Contains(validFormats, format) {
		log.Error("invalid output format", zap.String("format", format), zap.Strings("allowed", validFormats))
		return exitFailure
	} else if *filePathPtr == "" {
		log.Error("an input file must be specified")
		return exitFailure
	}

	// Extract input
	document, err := model.InputFromJson(*filePathPtr)
	if err != nil {
		log.Error("cannot parse input file", zap.String("file", *filePathPtr), zap.Error(err))
		return exitFailure
	}

	if *verifyPtr {
		return verify(document, log)
	}

	// Initialize engine
	options := cfg.SolverOptions()
	options.Seed = *seedPtr
	options.Workers = *workersPtr
	options.Timeout = *timeoutPtr
	timetabler := model.NewEmbeddedRoomTimetabler(options, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Build timetable
	start := time.Now()
	timetable, err := timetabler.Build(ctx, document.Input)
	elapsed := time.Since(start)

	recorder := metrics.NewRecorder()
	recorder.Observe(timetable, err, elapsed)
	if *metricsPtr != "" {
		if err := recorder.WriteToTextfile(*metricsPtr); err != nil {
			log.Warn("cannot write metrics textfile", zap.String("file", *metricsPtr), zap.Error(err))
		}
	}

	var internal *model.InternalValidationError
	var infeasible *model.InfeasibleScheduleError
	switch {
	case errors.As(err, &internal):
		for _, violation := range internal.Violations {
			log.Error("hard constraint violated", zap.String("constraint", string(violation.Constraint)), zap.String("detail", violation.Message))
		}
		return exitInvalid
	case errors.As(err, &infeasible):
		fmt.Fprintln(stderr, infeasible.Error())
		return exitInfeasible
	case err != nil:
		log.Error("an error occurred during timetable construction", zap.Error(err))
		return exitFailure
	}

	// Write the output into the outfile, or into the Standard Output when none is given
	out, closeOut, err := openOutput(*outFilePathPtr, stdout)
	if err != nil {
		log.Error("cannot open the output file", zap.String("file", *outFilePathPtr), zap.Error(err))
		return exitFailure
	}
	err = writeOutput(out, format, document.Input, timetable)
	if closeErr := closeOut(); err == nil {
		err = closeErr
	}
	if err != nil {
		log.Error("an error occurred while writing the output", zap.Error(err))
		return exitFailure
	}

	log.Info("timetable written",
		zap.String("run_id", timetable.RunID),
		zap.Float64("penalty", timetable.Penalty),
		zap.Bool("budget_exhausted", timetable.BudgetExhausted),
		zap.Duration("duration", elapsed),
	)
	return exitGenerated
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

// writeOutput encodes the timetable in the requested format; csv rows are streamed as they are produced
func writeOutput(out io.Writer, format string, input model.Input, timetable model.Timetable) error {
	var output []byte
	var err error
	switch format {
	case "csv":
		return export.NewCSVExporter().Write(out, export.ScheduleTable(input, export.Slots(timetable)))
	case "slots":
		output, err = export.JSON(export.Slots(timetable))
	default:
		output, err = export.Document(input, timetable, time.Now()).Encode()
	}
	if err != nil {
		return err
	}
	_, err = out.Write(output)
	return err
}

// verify checks the schedule stored in the document against every hard constraint
func verify(document model.Document, log *zap.Logger) int {
	if err := document.Validate(); err != nil {
		log.Error("invalid input document", zap.Error(err))
		return exitFailure
	}
	lessons, err := export.Lessons(document.Input, document.Schedule)
	if err != nil {
		log.Error("cannot read the stored schedule", zap.Error(err))
		return exitFailure
	}

	violations := model.Verify(document.Input, lessons)
	for _, violation := range violations {
		log.Error("hard constraint violated", zap.String("constraint", string(violation.Constraint)), zap.String("detail", violation.Message))
	}
	if len(violations) > 0 {
		return exitInvalid
	}
	log.Info("stored schedule satisfies every hard constraint", zap.Int("lessons", len(lessons)))
	return exitGenerated
}
