// Package generator assembles complete synthetic learner-behavior datasets.
// The assembler is a synchronous, CPU-bound pure function of (params, seed):
// it performs no network or disk I/O, returns no partial results on fatal
// errors, and yields byte-identical output for identical inputs.
package generator

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/synthlearn/synthlearn/internal/attacks"
	"github.com/synthlearn/synthlearn/internal/privacy"
	"github.com/synthlearn/synthlearn/internal/profiles"
	"github.com/synthlearn/synthlearn/internal/simulation"
	"github.com/synthlearn/synthlearn/internal/validation"
	"github.com/synthlearn/synthlearn/pkg/constants"
	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

// Per-profile sub-seeds and the attack/validation streams are decorrelated
// from the root seed with a splitmix-style multiplier.
const (
	seedMixConstant  uint64 = 0x9E3779B97F4A7C15
	attackSeedSalt   int64  = 0x41545441434B53 // "ATTACKS"
	validateSeedSalt int64  = 0x56414C4944     // "VALID"
)

// Config tunes the assembler. The zero value is usable.
type Config struct {
	// AttackTrials is the number of trials per attack type; 0 means default.
	AttackTrials int `json:"attack_trials"`
	// Workers caps profile-level parallelism; 0 means GOMAXPROCS.
	Workers int `json:"workers"`
}

// Assembler drives the generation pipeline: sample profiles, simulate
// sessions, run the attack battery, validate, assemble.
type Assembler struct {
	logger *logrus.Logger
	config *Config
}

// NewAssembler creates an assembler.
func NewAssembler(config *Config, logger *logrus.Logger) *Assembler {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Assembler{logger: logger, config: config}
}

// Generate runs the full pipeline and returns the assembled dataset.
//
// When params.Seed is nil a seed is drawn from entropy; the run is then not
// reproducible and the returned dataset says so.
func (a *Assembler) Generate(ctx context.Context, params models.GenerationParams) (*models.Dataset, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	seed, reproducible, err := deriveSeed(params.Seed)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"student_count": params.StudentCount,
		"seed":          seed,
		"reproducible":  reproducible,
	}).Info("Starting dataset generation")

	budget, err := privacy.NewController(params.PrivacyParams, a.logger)
	if err != nil {
		return nil, err
	}

	sampler, err := profiles.NewSampler(params.PersonaDistribution, params.QualityParams, params.RealismConstraints, a.logger)
	if err != nil {
		return nil, err
	}

	dataset := &models.Dataset{
		Profiles:       []models.CognitiveProfile{},
		Sessions:       []models.LearningSession{},
		PrivacyAttacks: []models.PrivacyAttackRecord{},
		Seed:           seed,
		Reproducible:   reproducible,
	}

	if params.StudentCount > 0 {
		if err := a.runPipeline(ctx, params, seed, sampler, budget, dataset); err != nil {
			return nil, err
		}
	}

	attackRNG := rand.New(rand.NewSource(seed ^ attackSeedSalt))
	simulator := attacks.NewSimulator(a.config.AttackTrials, a.logger)
	dataset.PrivacyAttacks = simulator.Run(attackRNG, dataset)

	validateRNG := rand.New(rand.NewSource(seed ^ validateSeedSalt))
	validator := validation.NewValidator(a.logger)
	dataset.QualityMetrics = validator.Validate(validateRNG, dataset, params, sampler.Distribution(), budget)

	spentEps, spentDelta := budget.Spent()
	a.logger.WithFields(logrus.Fields{
		"profiles":      len(dataset.Profiles),
		"sessions":      len(dataset.Sessions),
		"attack_trials": len(dataset.PrivacyAttacks),
		"epsilon_spent": spentEps,
		"delta_spent":   spentDelta,
	}).Info("Completed dataset generation")

	return dataset, nil
}

// profileResult carries one worker's output, keyed by profile index so
// assembly order never depends on scheduling.
type profileResult struct {
	index    int
	profile  models.CognitiveProfile
	sessions []models.LearningSession
	err      error
}

// runPipeline samples all profiles and simulates their sessions in parallel.
// Each profile gets a deterministic sub-seed and a fixed sub-budget carved
// from the root ledger up front, so neither worker count nor scheduling
// affects any profile's output or the global privacy invariant.
func (a *Assembler) runPipeline(
	ctx context.Context,
	params models.GenerationParams,
	seed int64,
	sampler *profiles.Sampler,
	budget *privacy.Controller,
	dataset *models.Dataset,
) error {
	n := params.StudentCount

	subBudgets, err := budget.Partition(n, constants.BudgetShareSampling+constants.BudgetShareSimulation)
	if err != nil {
		return err
	}

	engine := simulation.NewEngine(params.QualityParams, params.RealismConstraints, a.logger)

	workers := a.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	indexes := make(chan int)
	results := make([]profileResult, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = a.generateProfile(params, seed, i, sampler, engine, subBudgets[i])
			}
		}()
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeGeneration, errors.CodeGenerationFailed,
			"generation cancelled")
	}

	// Fold sub-ledgers back into the root for the audit trail, in index order.
	for _, sub := range subBudgets {
		budget.Absorb(sub)
	}

	// Fatal errors abort the whole run with no partial dataset. The lowest
	// index wins so the reported error is deterministic.
	for i := range results {
		if results[i].err != nil {
			return results[i].err
		}
	}

	for i := range results {
		dataset.Profiles = append(dataset.Profiles, results[i].profile)
		dataset.Sessions = append(dataset.Sessions, results[i].sessions...)
	}
	return nil
}

func (a *Assembler) generateProfile(
	params models.GenerationParams,
	seed int64,
	index int,
	sampler *profiles.Sampler,
	engine *simulation.Engine,
	sub *privacy.Controller,
) profileResult {
	rng := rand.New(rand.NewSource(subSeed(seed, index)))

	profile, err := sampler.Sample(rng, sub)
	if err != nil {
		return profileResult{index: index, err: err}
	}

	sessions, err := engine.Simulate(rng, profile, params.TimeRange, sub)
	if err != nil {
		return profileResult{index: index, err: err}
	}

	return profileResult{index: index, profile: profile, sessions: sessions}
}

// subSeed derives the deterministic per-profile seed: the root seed XORed
// with a mixed profile index.
func subSeed(seed int64, index int) int64 {
	return seed ^ int64(uint64(index+1)*seedMixConstant)
}

// ValidateParams checks the request before any sampling begins. A failure
// here is fatal and nothing is generated.
func ValidateParams(params models.GenerationParams) error {
	if params.StudentCount < 0 {
		return errors.NewConfigurationError(errors.CodeInvalidStudentCount,
			fmt.Sprintf("student count must be non-negative, got %d", params.StudentCount))
	}

	if !params.TimeRange.End.After(params.TimeRange.Start) {
		return errors.NewConfigurationError(errors.CodeInvalidTimeRange,
			"time range end must be after start")
	}

	pp := params.PrivacyParams
	if pp.EpsilonBudget <= 0 {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacy,
			fmt.Sprintf("epsilon budget must be positive, got %g", pp.EpsilonBudget))
	}
	if pp.DeltaPrivacy <= 0 || pp.DeltaPrivacy >= 1 {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacy,
			fmt.Sprintf("delta must be in (0, 1), got %g", pp.DeltaPrivacy))
	}
	if pp.KAnonymity < 2 {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacy,
			fmt.Sprintf("k-anonymity must be at least 2, got %d", pp.KAnonymity))
	}

	qp := params.QualityParams
	if qp.NoiseLevelStd < 0 {
		return errors.NewConfigurationError(errors.CodeInvalidQuality,
			fmt.Sprintf("noise level std must be non-negative, got %g", qp.NoiseLevelStd))
	}
	if qp.MissingDataRate < 0 || qp.MissingDataRate > 1 {
		return errors.NewConfigurationError(errors.CodeInvalidQuality,
			fmt.Sprintf("missing data rate must be in [0, 1], got %g", qp.MissingDataRate))
	}
	if qp.OutlierRate < 0 || qp.OutlierRate > 1 {
		return errors.NewConfigurationError(errors.CodeInvalidQuality,
			fmt.Sprintf("outlier rate must be in [0, 1], got %g", qp.OutlierRate))
	}

	for p, w := range params.PersonaDistribution {
		if !p.Valid() {
			return errors.NewConfigurationError(errors.CodeUnknownPersona,
				fmt.Sprintf("persona %q is not catalogued", p))
		}
		if w < 0 {
			return errors.NewConfigurationError(errors.CodeInvalidDistribution,
				fmt.Sprintf("persona %q has negative weight %g", p, w))
		}
	}

	return nil
}

// deriveSeed returns the explicit seed, or one drawn from entropy when the
// request omits it. Entropy-seeded runs are flagged non-reproducible.
func deriveSeed(explicit *int64) (int64, bool, error) {
	if explicit != nil {
		return *explicit, true, nil
	}

	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, false, errors.WrapError(err, errors.ErrorTypeInternal,
			errors.CodeInternalError, "failed to draw entropy seed")
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), false, nil
}
