package models

import "fmt"

// Persona is a named behavioral archetype used as the template for sampling a
// synthetic profile's attributes. The set is closed: every consumer switches
// exhaustively over these values, so an uncatalogued persona is rejected at
// the configuration boundary rather than surfacing mid-pipeline.
type Persona string

const (
	PersonaFastLearner       Persona = "fast_learner"
	PersonaSteadyAchiever    Persona = "steady_achiever"
	PersonaStrugglingStudent Persona = "struggling_student"
	PersonaAnxiousStudent    Persona = "anxious_student"
	PersonaDisengaged        Persona = "disengaged"
)

// AllPersonas returns every catalogued persona in a fixed order.
func AllPersonas() []Persona {
	return []Persona{
		PersonaFastLearner,
		PersonaSteadyAchiever,
		PersonaStrugglingStudent,
		PersonaAnxiousStudent,
		PersonaDisengaged,
	}
}

// Valid reports whether p is a catalogued persona.
func (p Persona) Valid() bool {
	switch p {
	case PersonaFastLearner, PersonaSteadyAchiever, PersonaStrugglingStudent,
		PersonaAnxiousStudent, PersonaDisengaged:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (p Persona) String() string {
	return string(p)
}

// ParsePersona converts a raw string into a Persona.
func ParsePersona(s string) (Persona, error) {
	p := Persona(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown persona %q", s)
	}
	return p, nil
}

// AgeGroup buckets a synthetic student's age.
type AgeGroup string

const (
	AgeGroupChild      AgeGroup = "child"
	AgeGroupAdolescent AgeGroup = "adolescent"
	AgeGroupYoungAdult AgeGroup = "young_adult"
	AgeGroupAdult      AgeGroup = "adult"
)

// AcademicLevel buckets a synthetic student's academic standing.
type AcademicLevel string

const (
	AcademicLevelPrimary       AcademicLevel = "primary"
	AcademicLevelSecondary     AcademicLevel = "secondary"
	AcademicLevelUndergraduate AcademicLevel = "undergraduate"
	AcademicLevelGraduate      AcademicLevel = "graduate"
)

// AgeGroups returns every age group in a fixed order.
func AgeGroups() []AgeGroup {
	return []AgeGroup{AgeGroupChild, AgeGroupAdolescent, AgeGroupYoungAdult, AgeGroupAdult}
}

// AcademicLevels returns every academic level in a fixed order.
func AcademicLevels() []AcademicLevel {
	return []AcademicLevel{
		AcademicLevelPrimary,
		AcademicLevelSecondary,
		AcademicLevelUndergraduate,
		AcademicLevelGraduate,
	}
}
