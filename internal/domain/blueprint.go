package domain

import "errors"

// Blueprint-specific validation errors
var (
	// ErrBlueprintCourseIDEmpty is returned when a blueprint's course ID is empty.
	ErrBlueprintCourseIDEmpty = errors.New("blueprint course ID cannot be empty")

	// ErrBlueprintNoWeights is returned when a blueprint has no domain weights.
	ErrBlueprintNoWeights = errors.New("blueprint must weight at least one domain")
)

// ExamBlueprint maps each exam domain to its target share of a composed
// session, mirroring the certification body's published content outline.
// Weights are fractions (0-1) and must sum to 1 within a small epsilon;
// blueprint.Validate enforces that against the loaded item bank.
type ExamBlueprint struct {
	CourseID string             `json:"course_id"`
	Weights  map[string]float64 `json:"weights"`
}

// Validate checks the blueprint's basic shape. Weight-sum and unknown-domain
// checks need the item bank and live in the blueprint package.
func (b *ExamBlueprint) Validate() error {
	if b.CourseID == "" {
		return ErrBlueprintCourseIDEmpty
	}

	if len(b.Weights) == 0 {
		return ErrBlueprintNoWeights
	}

	return nil
}

// DifficultyMix maps each difficulty to its target share within a domain's
// allocation (e.g. 0.3/0.5/0.2 easy/medium/hard). The same apportionment
// rules as blueprint weights apply.
type DifficultyMix map[Difficulty]float64

// DefaultDifficultyMix is used when a compose request does not override the
// course preset and the preset carries no mix of its own.
func DefaultDifficultyMix() DifficultyMix {
	return DifficultyMix{
		DifficultyEasy:   0.3,
		DifficultyMedium: 0.5,
		DifficultyHard:   0.2,
	}
}
