// Package export serializes generated datasets to flat files. It sits outside
// the generation core: exporters consume a finished Dataset and never feed
// anything back into it.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/synthlearn/synthlearn/pkg/models"
)

// CSVExporter writes profiles and sessions as CSV.
type CSVExporter struct{}

// Name returns the exporter name.
func (e *CSVExporter) Name() string {
	return "csv"
}

// ExportProfiles writes one row per cognitive profile.
func (e *CSVExporter) ExportProfiles(w io.Writer, profiles []models.CognitiveProfile) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"student_id", "persona", "age_group", "academic_level",
		"learning_velocity", "plateau_factor", "memory_retention",
		"confusion_tendency", "frustration_tolerance", "cognitive_load_capacity",
		"help_seeking_delay", "anxiety_sensitivity",
		"base_response_time_s", "complexity_multiplier", "preferred_session_min",
		"style_visual", "style_auditory", "style_kinesthetic", "style_reading_writing",
		"is_outlier",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write profile header: %w", err)
	}

	for _, p := range profiles {
		row := []string{
			p.StudentID,
			string(p.Persona),
			string(p.Demographics.AgeGroup),
			string(p.Demographics.AcademicLevel),
			formatFloat(p.LearningVelocity.BaseRate),
			formatFloat(p.LearningVelocity.PlateauFactor),
			formatFloat(p.MemoryRetention),
			formatFloat(p.StrugglePatterns.ConfusionTendency),
			formatFloat(p.StrugglePatterns.FrustrationTolerance),
			formatFloat(p.StrugglePatterns.CognitiveLoadCapacity),
			formatFloat(p.StrugglePatterns.HelpSeekingDelay),
			formatFloat(p.StrugglePatterns.AnxietySensitivity),
			formatFloat(p.InteractionTiming.BaseResponseTime.Seconds()),
			formatFloat(p.InteractionTiming.ComplexityMultiplier),
			formatFloat(p.InteractionTiming.PreferredSessionDuration.Minutes()),
			formatFloat(p.ComprehensionStyle.Visual),
			formatFloat(p.ComprehensionStyle.Auditory),
			formatFloat(p.ComprehensionStyle.Kinesthetic),
			formatFloat(p.ComprehensionStyle.ReadingWriting),
			strconv.FormatBool(p.IsOutlier),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write profile row: %w", err)
		}
	}
	return nil
}

// ExportSessions writes one row per learning session.
func (e *CSVExporter) ExportSessions(w io.Writer, sessions []models.LearningSession) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"session_id", "student_id", "start_time", "duration_min",
		"questions_answered", "correct_answers", "accuracy",
		"concepts_studied", "engagement_score", "is_outlier", "missing_fields",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write session header: %w", err)
	}

	for i := range sessions {
		s := &sessions[i]
		missing := make([]string, len(s.MissingFields))
		for j, f := range s.MissingFields {
			missing[j] = string(f)
		}
		row := []string{
			s.SessionID,
			s.StudentID,
			s.StartTime.Format(time.RFC3339),
			formatFloat(s.Duration.Minutes()),
			strconv.Itoa(s.QuestionsAnswered),
			strconv.Itoa(s.CorrectAnswers),
			formatFloat(s.Accuracy()),
			strings.Join(s.ConceptsStudied, "|"),
			formatFloat(s.EngagementScore),
			strconv.FormatBool(s.IsOutlier),
			strings.Join(missing, "|"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write session row: %w", err)
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
