package models

import "time"

// SessionField identifies a LearningSession field that may be blanked by
// missing-data injection.
type SessionField string

const (
	FieldDuration   SessionField = "duration"
	FieldEngagement SessionField = "engagement_score"
	FieldConcepts   SessionField = "concepts_studied"
)

// LearningSession is one simulated study session. Sessions are generated in
// strict temporal order per student and never mutated after creation.
type LearningSession struct {
	SessionID         string         `json:"session_id"`
	StudentID         string         `json:"student_id"`
	StartTime         time.Time      `json:"start_time"`
	Duration          time.Duration  `json:"duration"`
	QuestionsAnswered int            `json:"questions_answered"`
	CorrectAnswers    int            `json:"correct_answers"`
	ConceptsStudied   []string       `json:"concepts_studied"`
	EngagementScore   float64        `json:"engagement_score"` // in [0, 1]
	IsOutlier         bool           `json:"is_outlier"`
	MissingFields     []SessionField `json:"missing_fields,omitempty"` // blanked fields; values are zeroed
}

// Accuracy returns the realized per-session accuracy, or 0 for an empty session.
func (s *LearningSession) Accuracy() float64 {
	if s.QuestionsAnswered == 0 {
		return 0
	}
	return float64(s.CorrectAnswers) / float64(s.QuestionsAnswered)
}

// HasMissing reports whether the given field was blanked by missing-data injection.
func (s *LearningSession) HasMissing(field SessionField) bool {
	for _, f := range s.MissingFields {
		if f == field {
			return true
		}
	}
	return false
}
