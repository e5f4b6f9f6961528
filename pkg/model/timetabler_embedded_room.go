package model

import (
	"cmp"
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// embeddedRoomTimetabler chooses rooms inside the search together with day, slot and teacher
type embeddedRoomTimetabler struct {
	options Options
	logger  *zap.Logger
}

func NewEmbeddedRoomTimetabler(options Options, logger *zap.Logger) Timetabler {
	if logger == nil {
		logger = zap.NewNop()
	}

	defaults := DefaultOptions()
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.MaxNodes < 0 {
		options.MaxNodes = 0
	}
	if options.AnnealIterations < 0 {
		options.AnnealIterations = 0
	}
	if options.TempHigh <= 0 {
		options.TempHigh = defaults.TempHigh
	}
	if options.TempLow <= 0 || options.TempLow > options.TempHigh {
		options.TempLow = min(defaults.TempLow, options.TempHigh)
	}
	if options.Weights == (Weights{}) {
		options.Weights = defaults.Weights
	}

	return &embeddedRoomTimetabler{
		options: options,
		logger:  logger,
	}
}

type branchResult struct {
	branch    int
	seed      int64
	timetable Timetable
	err       error
}

func (timetabler *embeddedRoomTimetabler) Build(ctx context.Context, input Input) (Timetable, error) {
	start := time.Now()
	runId := uuid.NewString()
	logger := timetabler.logger.With(zap.String("run_id", runId))

	//** Snapshot and validate input
	input = input.Clone()
	if err := input.Validate(); err != nil {
		return Timetable{}, err
	}

	//** Preprocess input
	instance, err := preprocessInput(input, timetabler.options.Weights)
	if err != nil {
		return Timetable{}, err
	}
	for _, groupGrid := range instance.grid.Groups {
		logger.Debug("group grid built",
			zap.String("group", groupGrid.Group),
			zap.Stringer("window", groupGrid.Window),
			zap.Int("teaching_slots", len(groupGrid.Teaching)),
			zap.Int("unused_minutes", groupGrid.Unused),
		)
	}
	logger.Info("generation started",
		zap.Int("occurrences", len(instance.occurrences)),
		zap.Int("groups", len(input.Groups)),
		zap.Int("teachers", len(input.Teachers)),
		zap.Int("periods", len(instance.periods)),
		zap.Int64("seed", timetabler.options.Seed),
		zap.Int("workers", timetabler.options.Workers),
	)

	//** Necessary conditions
	if infeasible := instance.checkFeasibility(); infeasible != nil {
		logger.Info("pre-check rejected the instance", zap.String("constraint", string(infeasible.Constraint)), zap.String("reason", infeasible.Reason))
		return Timetable{}, infeasible
	}
	logger.Debug("pre-checks passed")

	if timetabler.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timetabler.options.Timeout)
		defer cancel()
	}

	//** Run branches
	workers := timetabler.options.Workers
	resultsChannel := make(chan branchResult) // Channel to collect branch results

	// Execute branches on different goroutines; none of them shares mutable state
	for branch := range workers {
		go func(branch int) {
			resultsChannel <- timetabler.runBranch(ctx, instance, branch, logger)
		}(branch)
	}

	// Collect branch results
	results := make([]branchResult, workers)
	collected := 0
	for result := range resultsChannel {
		results[result.branch] = result

		// Check whether all branches have been collected to properly close the channel
		if collected++; collected == workers {
			close(resultsChannel)
		}
	}

	//** Merge
	var chosen *branchResult
	for index := range results {
		result := &results[index]
		var internal *InternalValidationError
		if errors.As(result.err, &internal) {
			logger.Error("engine produced an invalid schedule", zap.Int("branch", result.branch), zap.Error(result.err))
			return Timetable{}, result.err
		}
		if result.err != nil {
			continue
		}
		if chosen == nil || result.timetable.Penalty < chosen.timetable.Penalty {
			chosen = result
		}
	}
	if chosen == nil {
		logger.Info("no feasible schedule found", zap.Error(results[0].err), zap.Duration("duration", time.Since(start)))
		return Timetable{}, results[0].err
	}

	timetable := chosen.timetable
	timetable.RunID = runId
	logger.Info("generation finished",
		zap.Int("branch", chosen.branch),
		zap.Int64("seed", chosen.seed),
		zap.Float64("penalty", timetable.Penalty),
		zap.Int("lessons", len(timetable.Lessons)),
		zap.Duration("duration", time.Since(start)),
	)
	return timetable, nil
}

func (timetabler *embeddedRoomTimetabler) Verify(input Input, timetable Timetable) []Violation {
	return Verify(input, timetable.Lessons)
}

// runBranch searches for a feasible schedule and improves it, with its own state and random source
func (timetabler *embeddedRoomTimetabler) runBranch(ctx context.Context, instance *problem, branch int, logger *zap.Logger) branchResult {
	seed := timetabler.options.Seed + int64(branch)
	logger = logger.With(zap.Int("branch", branch), zap.Int64("branch_seed", seed))
	random := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	current := newState(instance)

	//** Construct
	search := newBacktracker(instance, current, random, timetabler.options.MaxNodes)
	if infeasible := search.run(ctx); infeasible != nil {
		if errors.Is(infeasible, ErrSearchBudgetExceeded) {
			logger.Warn("search budget exhausted before a feasible schedule was found", zap.Int("nodes", search.nodes), zap.Int("backtracks", search.backtracks), zap.Int("restarts", search.restarts))
		}
		return branchResult{branch: branch, seed: seed, err: infeasible}
	}
	logger.Info("feasible schedule found", zap.Int("nodes", search.nodes), zap.Int("backtracks", search.backtracks), zap.Int("restarts", search.restarts))

	//** Improve
	improver := newAnnealer(instance, current, random, timetabler.options)
	improved := improver.run(ctx)
	if improved.cancelled {
		logger.Warn("local search interrupted, keeping the best schedule so far", zap.Int("iterations", improved.iterations))
	}
	logger.Info("local search finished",
		zap.Float64("initial_penalty", improved.initial),
		zap.Float64("final_penalty", improved.breakdown.Total()),
		zap.Int("iterations", improved.iterations),
		zap.Int("moves", improver.performed),
		zap.Int("accepted", improver.accepted),
	)

	timetable := Timetable{
		Seed:            seed,
		Lessons:         instance.lessons(improved.best),
		Grid:            instance.grid,
		Penalty:         improved.breakdown.Total(),
		Breakdown:       improved.breakdown,
		Nodes:           search.nodes,
		Backtracks:      search.backtracks,
		Iterations:      improved.iterations,
		BudgetExhausted: improved.cancelled,
	}

	//** Validate independently
	if violations := Verify(instance.input, timetable.Lessons); len(violations) > 0 {
		return branchResult{branch: branch, seed: seed, err: &InternalValidationError{Violations: violations}}
	}
	return branchResult{branch: branch, seed: seed, timetable: timetable}
}

// lessons converts placements into lessons ordered by group, day and start time
func (instance *problem) lessons(placements []placement) []Lesson {
	lessons := make([]Lesson, 0, len(placements))
	groupOrder := make(map[string]int, len(instance.input.Groups))
	for index, group := range instance.input.Groups {
		groupOrder[group.Id] = index
	}

	for occurrence, target := range placements {
		if target.day < 0 {
			continue
		}
		pair := instance.pairs[instance.occurrences[occurrence].pair]
		lessons = append(lessons, Lesson{
			Group:    instance.input.Groups[pair.group].Id,
			Subject:  instance.input.Subjects[pair.subject].Id,
			Teacher:  instance.input.Teachers[target.teacher].Id,
			Room:     instance.input.Rooms[target.room].Id,
			Day:      target.day,
			Position: target.position,
			Interval: instance.grid.Groups[pair.group].TeachingSlot(target.position).Interval,
		})
	}

	slices.SortFunc(lessons, func(a, b Lesson) int {
		return cmp.Or(
			cmp.Compare(groupOrder[a.Group], groupOrder[b.Group]),
			cmp.Compare(a.Day, b.Day),
			cmp.Compare(a.Start, b.Start),
		)
	})
	return lessons
}
