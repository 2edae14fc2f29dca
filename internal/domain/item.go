package domain

import (
	"errors"
	"fmt"
)

// Item-specific validation errors
var (
	// ErrItemIDEmpty is returned when an item ID is empty.
	ErrItemIDEmpty = errors.New("item ID cannot be empty")

	// ErrItemCourseIDEmpty is returned when an item's course ID is empty.
	ErrItemCourseIDEmpty = errors.New("item course ID cannot be empty")

	// ErrItemDomainEmpty is returned when an item's domain is empty.
	ErrItemDomainEmpty = errors.New("item domain cannot be empty")

	// ErrItemTooFewOptions is returned when an item has fewer than two options.
	ErrItemTooFewOptions = errors.New("item must have at least two options")

	// ErrItemCorrectIndexOutOfRange is returned when the correct option index
	// does not point at one of the item's options.
	ErrItemCorrectIndexOutOfRange = errors.New("item correct option index out of range")

	// ErrInvalidDifficulty is returned when a difficulty value is not one of
	// easy, medium, or hard.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// Difficulty classifies how hard an item is. It is part of the authored
// content and drives the per-domain difficulty mix during composition.
type Difficulty string

// Possible difficulty values
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every valid difficulty in mix order (easy, medium, hard).
// Apportionment iterates this slice so allocation order is deterministic.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty converts a string into a Difficulty, returning
// ErrInvalidDifficulty for anything outside the closed set.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
}

// Item is a single-correct-answer multiple choice question from the authored
// content catalog. Items are loaded once at startup and never mutated; the
// bank hands out shared pointers, so nothing downstream may write to one.
type Item struct {
	ID                 string     `json:"id"`
	CourseID           string     `json:"course_id"`
	Domain             string     `json:"domain"`
	BlueprintArea      string     `json:"blueprint_area"`
	Difficulty         Difficulty `json:"difficulty"`
	SkillLevel         string     `json:"skill_level"`
	Topic              string     `json:"topic"`
	Subtopic           string     `json:"subtopic,omitempty"`
	Question           string     `json:"question"`
	Options            []string   `json:"options"`
	CorrectOptionIndex int        `json:"correct_option_index"`
	Explanation        string     `json:"explanation"`
}

// Validate checks if the Item has valid data.
// Returns an error if any field fails validation.
func (i *Item) Validate() error {
	if i.ID == "" {
		return ErrItemIDEmpty
	}

	if i.CourseID == "" {
		return fmt.Errorf("%w (item %s)", ErrItemCourseIDEmpty, i.ID)
	}

	if i.Domain == "" {
		return fmt.Errorf("%w (item %s)", ErrItemDomainEmpty, i.ID)
	}

	if _, err := ParseDifficulty(string(i.Difficulty)); err != nil {
		return fmt.Errorf("item %s: %w", i.ID, err)
	}

	if len(i.Options) < 2 {
		return fmt.Errorf("%w (item %s has %d)", ErrItemTooFewOptions, i.ID, len(i.Options))
	}

	if i.CorrectOptionIndex < 0 || i.CorrectOptionIndex >= len(i.Options) {
		return fmt.Errorf("%w (item %s: index %d, %d options)",
			ErrItemCorrectIndexOutOfRange, i.ID, i.CorrectOptionIndex, len(i.Options))
	}

	return nil
}

// IsCorrect reports whether the given option index is the item's correct answer.
func (i *Item) IsCorrect(selectedOptionIndex int) bool {
	return selectedOptionIndex == i.CorrectOptionIndex
}
