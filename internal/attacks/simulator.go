// Package attacks runs a fixed battery of heuristic re-identification attacks
// against an assembled dataset. The battery is an empirical best-effort risk
// estimator: it bounds nothing and proves nothing, it only measures how well
// three plausible adversaries do against this particular output.
package attacks

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/synthlearn/synthlearn/pkg/constants"
	"github.com/synthlearn/synthlearn/pkg/models"
)

// Simulator executes the attack battery.
type Simulator struct {
	logger *logrus.Logger
	trials int
}

// NewSimulator creates a simulator running `trials` independent trials per
// attack type. Non-positive trials falls back to the default.
func NewSimulator(trials int, logger *logrus.Logger) *Simulator {
	if logger == nil {
		logger = logrus.New()
	}
	if trials <= 0 {
		trials = constants.DefaultAttackTrials
	}
	return &Simulator{logger: logger, trials: trials}
}

// studentStats is the adversary's view of one student: session statistics
// only, no direct profile attributes.
type studentStats struct {
	studentID    string
	persona      models.Persona // ground truth, used only to grade trials
	demographics models.Demographics
	sessionCount int
	meanAccuracy float64
	meanDuration float64 // hours
	meanEngage   float64
	engagements  []float64 // in temporal order
}

// Run executes every attack in the fixed battery order and returns one record
// per trial.
func (s *Simulator) Run(rng *rand.Rand, dataset *models.Dataset) []models.PrivacyAttackRecord {
	stats := buildStats(dataset)
	if len(stats) == 0 {
		return []models.PrivacyAttackRecord{}
	}

	s.logger.WithFields(logrus.Fields{
		"students": len(stats),
		"trials":   s.trials,
	}).Info("Running privacy attack battery")

	records := make([]models.PrivacyAttackRecord, 0, 3*s.trials)
	for _, attack := range models.AllAttackTypes() {
		for trial := 0; trial < s.trials; trial++ {
			var rec models.PrivacyAttackRecord
			switch attack {
			case models.AttackPersonaFingerprint:
				rec = s.personaFingerprint(rng, stats)
			case models.AttackTemporalLinkage:
				rec = s.temporalLinkage(rng, stats)
			case models.AttackDemographicOverlay:
				rec = s.demographicOverlay(rng, stats)
			}
			records = append(records, rec)
		}
	}
	return records
}

func buildStats(dataset *models.Dataset) []studentStats {
	byStudent := make(map[string]*studentStats, len(dataset.Profiles))
	order := make([]string, 0, len(dataset.Profiles))
	for _, p := range dataset.Profiles {
		byStudent[p.StudentID] = &studentStats{
			studentID:    p.StudentID,
			persona:      p.Persona,
			demographics: p.Demographics,
		}
		order = append(order, p.StudentID)
	}

	for _, sess := range dataset.Sessions {
		st, ok := byStudent[sess.StudentID]
		if !ok {
			continue
		}
		st.sessionCount++
		st.meanAccuracy += sess.Accuracy()
		st.meanDuration += sess.Duration.Hours()
		st.meanEngage += sess.EngagementScore
		st.engagements = append(st.engagements, sess.EngagementScore)
	}

	out := make([]studentStats, 0, len(order))
	for _, id := range order {
		st := byStudent[id]
		if st.sessionCount > 0 {
			n := float64(st.sessionCount)
			st.meanAccuracy /= n
			st.meanDuration /= n
			st.meanEngage /= n
		}
		out = append(out, *st)
	}
	return out
}

// personaFingerprint tries to recover a student's persona from session
// statistics alone, by nearest persona centroid in (accuracy, duration,
// engagement) space.
func (s *Simulator) personaFingerprint(rng *rand.Rand, stats []studentStats) models.PrivacyAttackRecord {
	target := stats[rng.Intn(len(stats))]

	type centroid struct {
		acc, dur, eng float64
		n             int
	}
	centroids := make(map[models.Persona]*centroid)
	for _, st := range stats {
		if st.sessionCount == 0 {
			continue
		}
		c, ok := centroids[st.persona]
		if !ok {
			c = &centroid{}
			centroids[st.persona] = c
		}
		c.acc += st.meanAccuracy
		c.dur += st.meanDuration
		c.eng += st.meanEngage
		c.n++
	}

	best, second := math.Inf(1), math.Inf(1)
	var guess models.Persona
	for _, p := range models.AllPersonas() {
		c, ok := centroids[p]
		if !ok || c.n == 0 {
			continue
		}
		n := float64(c.n)
		d := dist3(target.meanAccuracy, target.meanDuration, target.meanEngage,
			c.acc/n, c.dur/n, c.eng/n)
		if d < best {
			second = best
			best = d
			guess = p
		} else if d < second {
			second = d
		}
	}

	confidence := 0.5
	if second > 0 && !math.IsInf(second, 1) {
		confidence = privacyClamp(1 - best/second)
	}

	return models.PrivacyAttackRecord{
		AttackType:      models.AttackPersonaFingerprint,
		TargetStudentID: target.studentID,
		Success:         guess == target.persona && target.sessionCount > 0,
		Confidence:      confidence,
	}
}

// temporalLinkage tries to match a student's early sessions to their late
// sessions using the engagement-persistence signature, mimicking linkage of
// records across days.
func (s *Simulator) temporalLinkage(rng *rand.Rand, stats []studentStats) models.PrivacyAttackRecord {
	// Need enough sessions on both halves to form a signature.
	var eligible []studentStats
	for _, st := range stats {
		if len(st.engagements) >= 6 {
			eligible = append(eligible, st)
		}
	}
	if len(eligible) < 2 {
		target := stats[rng.Intn(len(stats))]
		return models.PrivacyAttackRecord{
			AttackType:      models.AttackTemporalLinkage,
			TargetStudentID: target.studentID,
			Success:         false,
			Confidence:      0,
		}
	}

	target := eligible[rng.Intn(len(eligible))]
	half := len(target.engagements) / 2
	probe := signature(target.engagements[:half])

	best, second := math.Inf(1), math.Inf(1)
	var guessID string
	for _, st := range eligible {
		h := len(st.engagements) / 2
		cand := signature(st.engagements[h:])
		d := math.Abs(probe[0]-cand[0]) + math.Abs(probe[1]-cand[1])
		if d < best {
			second = best
			best = d
			guessID = st.studentID
		} else if d < second {
			second = d
		}
	}

	confidence := 0.0
	if second > 0 && !math.IsInf(second, 1) {
		confidence = privacyClamp(1 - best/second)
	}

	return models.PrivacyAttackRecord{
		AttackType:      models.AttackTemporalLinkage,
		TargetStudentID: target.studentID,
		Success:         guessID == target.studentID,
		Confidence:      confidence,
	}
}

// signature summarizes an engagement slice as (mean, lag-1 autocorrelation).
func signature(engagements []float64) [2]float64 {
	mean := stat.Mean(engagements, nil)
	if len(engagements) < 3 {
		return [2]float64{mean, 0}
	}
	lagged := engagements[:len(engagements)-1]
	current := engagements[1:]
	ac := stat.Correlation(lagged, current, nil)
	if math.IsNaN(ac) {
		ac = 0
	}
	return [2]float64{mean, ac}
}

// demographicOverlay cross-references demographics plus a behavior bucket
// against an auxiliary synthetic population. A trial succeeds when the
// target's equivalence class in the released data is a singleton; the
// k-anonymity floor applies only to released aggregates, so raw linkage
// is graded on class size alone.
func (s *Simulator) demographicOverlay(rng *rand.Rand, stats []studentStats) models.PrivacyAttackRecord {
	target := stats[rng.Intn(len(stats))]

	// Auxiliary population: the adversary's external knowledge of plausible
	// demographic/behavior combinations. Drawn fresh per trial.
	auxSize := constants.AuxiliaryPopulationFactor * len(stats)
	auxHits := 0
	for i := 0; i < auxSize; i++ {
		age := models.AgeGroups()[rng.Intn(len(models.AgeGroups()))]
		level := models.AcademicLevels()[rng.Intn(len(models.AcademicLevels()))]
		bucket := rng.Intn(3)
		if age == target.demographics.AgeGroup &&
			level == target.demographics.AcademicLevel &&
			bucket == accuracyBucket(target.meanAccuracy) {
			auxHits++
		}
	}

	classSize := 0
	for _, st := range stats {
		if st.demographics == target.demographics &&
			accuracyBucket(st.meanAccuracy) == accuracyBucket(target.meanAccuracy) {
			classSize++
		}
	}

	success := classSize == 1 && auxHits > 0
	confidence := 0.0
	if classSize > 0 {
		confidence = privacyClamp(1 / float64(classSize))
	}

	return models.PrivacyAttackRecord{
		AttackType:      models.AttackDemographicOverlay,
		TargetStudentID: target.studentID,
		Success:         success,
		Confidence:      confidence,
	}
}

// accuracyBucket coarsens mean accuracy into terciles.
func accuracyBucket(acc float64) int {
	switch {
	case acc < 0.45:
		return 0
	case acc < 0.7:
		return 1
	default:
		return 2
	}
}

// SuccessRates aggregates per-attack success rates from trial records.
func SuccessRates(records []models.PrivacyAttackRecord) map[models.AttackType]float64 {
	counts := make(map[models.AttackType]int)
	successes := make(map[models.AttackType]int)
	for _, r := range records {
		counts[r.AttackType]++
		if r.Success {
			successes[r.AttackType]++
		}
	}

	rates := make(map[models.AttackType]float64, len(counts))
	for _, at := range models.AllAttackTypes() {
		if counts[at] == 0 {
			continue
		}
		rates[at] = float64(successes[at]) / float64(counts[at])
	}
	return rates
}

// OverallRate is the aggregate success rate across all trials.
func OverallRate(records []models.PrivacyAttackRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var successes int
	for _, r := range records {
		if r.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(records))
}

func dist3(a1, a2, a3, b1, b2, b3 float64) float64 {
	// Duration in hours dominates unit-scale features without damping.
	d1 := a1 - b1
	d2 := (a2 - b2) / 2
	d3 := a3 - b3
	return math.Sqrt(d1*d1 + d2*d2 + d3*d3)
}

func privacyClamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
