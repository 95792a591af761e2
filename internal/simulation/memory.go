package simulation

import (
	"math"
	"time"

	"github.com/synthlearn/synthlearn/pkg/constants"
)

// conceptState tracks one student's spaced-repetition state for one concept.
// The update rule follows the SM-2 family: intervals grow after high-accuracy
// sessions and collapse after low-accuracy ones.
type conceptState struct {
	concept      string
	repetitions  int
	intervalDays int
	easiness     float64
	lastReview   time.Time
	nextReview   time.Time
}

func newConceptState(concept string, firstSeen time.Time) *conceptState {
	return &conceptState{
		concept:      concept,
		easiness:     constants.InitialEasinessFactor,
		intervalDays: constants.MinReviewInterval,
		lastReview:   firstSeen,
		nextReview:   firstSeen.AddDate(0, 0, constants.MinReviewInterval),
	}
}

// retention predicts recall at time now via the Ebbinghaus curve
// R(t) = m * exp(-t / S), where m is the student's decay-resistance
// multiplier and S the concept's current stability in days.
func (cs *conceptState) retention(now time.Time, memoryRetention float64) float64 {
	elapsedDays := now.Sub(cs.lastReview).Hours() / 24
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	return memoryRetention * math.Exp(-elapsedDays/cs.stability())
}

// stability returns the forgetting-curve time constant S in days. Repeated
// successful reviews harden the memory trace.
func (cs *conceptState) stability() float64 {
	s := constants.MemoryStabilityBaseDays * (1 + float64(cs.repetitions)) * (cs.easiness / constants.InitialEasinessFactor)
	if s < 0.5 {
		s = 0.5
	}
	return s
}

// review applies the SM-2 update for a session on this concept. accuracy is
// the realized session accuracy in [0, 1]; it maps onto the SM-2 quality
// grade q in [0, 5].
func (cs *conceptState) review(reviewedAt time.Time, accuracy float64) {
	q := accuracy * 5

	if q >= 3 {
		switch cs.repetitions {
		case 0:
			cs.intervalDays = 1
		case 1:
			cs.intervalDays = 6
		default:
			cs.intervalDays = int(math.Round(float64(cs.intervalDays) * cs.easiness))
		}
		cs.repetitions++
	} else {
		cs.repetitions = 0
		cs.intervalDays = constants.MinReviewInterval
	}

	cs.easiness += 0.1 - (5-q)*(0.08+(5-q)*0.02)
	if cs.easiness < constants.MinEasinessFactor {
		cs.easiness = constants.MinEasinessFactor
	}

	if cs.intervalDays < constants.MinReviewInterval {
		cs.intervalDays = constants.MinReviewInterval
	}
	if cs.intervalDays > constants.MaxReviewInterval {
		cs.intervalDays = constants.MaxReviewInterval
	}

	cs.lastReview = reviewedAt
	cs.nextReview = reviewedAt.AddDate(0, 0, cs.intervalDays)
}
