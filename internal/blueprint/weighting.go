// Package blueprint validates exam blueprints against the loaded item bank.
package blueprint

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/itembank"
)

// DefaultEpsilon is the tolerated deviation of a blueprint's weight sum from
// 1.0. Authored percentages are often rounded (e.g. three domains at 33%),
// so an exact-sum requirement would reject legitimate content.
const DefaultEpsilon = 0.005

// InvalidBlueprintError reports every way a blueprint fails validation, not
// just the first, so content owners can fix a bad blueprint in one pass.
type InvalidBlueprintError struct {
	CourseID       string
	NegativeWeight []string // domains with weight < 0
	UnknownDomains []string // domains the item bank has no items for
	WeightSum      float64  // actual sum of weights
	SumDeviation   float64  // |WeightSum - 1.0|, 0 when within epsilon
}

// Error implements the error interface for InvalidBlueprintError.
func (e *InvalidBlueprintError) Error() string {
	var parts []string
	if len(e.NegativeWeight) > 0 {
		parts = append(parts, fmt.Sprintf("negative weights for %v", e.NegativeWeight))
	}
	if len(e.UnknownDomains) > 0 {
		parts = append(parts, fmt.Sprintf("unknown domains %v", e.UnknownDomains))
	}
	if e.SumDeviation > 0 {
		parts = append(parts, fmt.Sprintf("weights sum to %.4f, not 1.0", e.WeightSum))
	}
	return fmt.Sprintf("invalid blueprint for course %q: %s", e.CourseID, strings.Join(parts, "; "))
}

// Validate checks a blueprint against the bank with the given epsilon.
// A blueprint is invalid if any weight is negative, any weighted domain is
// unknown to the item bank, or the weight sum deviates from 1.0 by more
// than epsilon. Returns nil on success or an *InvalidBlueprintError
// describing every violation.
func Validate(bp *domain.ExamBlueprint, bank *itembank.Bank, epsilon float64) error {
	if err := bp.Validate(); err != nil {
		return err
	}

	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	known := make(map[string]struct{})
	if domains, err := bank.Domains(bp.CourseID); err == nil {
		for _, d := range domains {
			known[d] = struct{}{}
		}
	}

	violation := &InvalidBlueprintError{CourseID: bp.CourseID}

	sum := 0.0
	for dom, weight := range bp.Weights {
		sum += weight
		if weight < 0 {
			violation.NegativeWeight = append(violation.NegativeWeight, dom)
		}
		if _, ok := known[dom]; !ok {
			violation.UnknownDomains = append(violation.UnknownDomains, dom)
		}
	}
	violation.WeightSum = sum

	if dev := math.Abs(sum - 1.0); dev > epsilon {
		violation.SumDeviation = dev
	}

	if len(violation.NegativeWeight) > 0 || len(violation.UnknownDomains) > 0 ||
		violation.SumDeviation > 0 {
		// Deterministic ordering for error messages and tests
		sort.Strings(violation.NegativeWeight)
		sort.Strings(violation.UnknownDomains)
		return violation
	}

	return nil
}

// ValidateMix applies the same rules to a difficulty mix: no negative
// shares and a sum of 1.0 within epsilon.
func ValidateMix(mix domain.DifficultyMix, epsilon float64) error {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	sum := 0.0
	for difficulty, share := range mix {
		if _, err := domain.ParseDifficulty(string(difficulty)); err != nil {
			return err
		}
		if share < 0 {
			return fmt.Errorf("difficulty mix share for %q cannot be negative", difficulty)
		}
		sum += share
	}

	if math.Abs(sum-1.0) > epsilon {
		return fmt.Errorf("difficulty mix shares sum to %.4f, not 1.0", sum)
	}

	return nil
}
