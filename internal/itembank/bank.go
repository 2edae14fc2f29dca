// Package itembank holds the immutable in-memory catalog of exam items.
//
// The bank is built once at startup from the authored course content files
// and never mutated afterwards, so it is safe for unlimited concurrent reads
// without synchronization. It is passed by reference into composer calls
// rather than living as a module-level singleton, keeping composition pure
// and testable.
package itembank

import (
	"errors"
	"fmt"
	"sort"

	"github.com/examkit/practice-api/internal/domain"
)

// Bank construction errors
var (
	// ErrDuplicateItemID is returned when two loaded items share an ID.
	ErrDuplicateItemID = errors.New("duplicate item ID")

	// ErrUnknownCourse is returned for queries against a course the bank
	// has no content for.
	ErrUnknownCourse = errors.New("unknown course")

	// ErrNoCourses is returned when a bank is built from no content at all.
	ErrNoCourses = errors.New("item bank requires at least one course")
)

// InsufficientPoolError reports that a (domain, difficulty) cell cannot
// supply the number of items a composition needs, even ignoring cooldown.
// It carries enough detail for content owners to act on the shortfall.
type InsufficientPoolError struct {
	CourseID   string
	Domain     string
	Difficulty domain.Difficulty
	Needed     int
	Available  int
}

// Error implements the error interface for InsufficientPoolError.
func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf(
		"insufficient item pool for course %q domain %q difficulty %q: need %d, have %d",
		e.CourseID, e.Domain, e.Difficulty, e.Needed, e.Available,
	)
}

// CoursePreset is the authored default blueprint and difficulty mix for a
// course, used when a compose request does not supply its own.
type CoursePreset struct {
	Blueprint     *domain.ExamBlueprint
	DifficultyMix domain.DifficultyMix
}

// cellKey addresses one (domain, difficulty) pool within a course.
type cellKey struct {
	domain     string
	difficulty domain.Difficulty
}

// courseIndex holds the per-course item indexes.
type courseIndex struct {
	domains  []string // sorted for deterministic iteration
	byDomain map[string][]*domain.Item
	byCell   map[cellKey][]*domain.Item
	preset   *CoursePreset
}

// Bank is the read-only catalog. All slices returned by query methods are
// copies; callers may reorder them freely without affecting the bank.
type Bank struct {
	items   map[string]*domain.Item
	courses map[string]*courseIndex
}

// New builds a Bank from loaded course content. Every item is validated and
// item IDs must be unique across the whole bank.
func New(courses []*CourseContent) (*Bank, error) {
	if len(courses) == 0 {
		return nil, ErrNoCourses
	}

	bank := &Bank{
		items:   make(map[string]*domain.Item),
		courses: make(map[string]*courseIndex),
	}

	for _, course := range courses {
		idx := &courseIndex{
			byDomain: make(map[string][]*domain.Item),
			byCell:   make(map[cellKey][]*domain.Item),
			preset:   course.preset(),
		}

		for i := range course.Items {
			item := &course.Items[i]
			if err := item.Validate(); err != nil {
				return nil, fmt.Errorf("course %q: %w", course.CourseID, err)
			}
			if _, exists := bank.items[item.ID]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateItemID, item.ID)
			}

			bank.items[item.ID] = item
			idx.byDomain[item.Domain] = append(idx.byDomain[item.Domain], item)
			key := cellKey{domain: item.Domain, difficulty: item.Difficulty}
			idx.byCell[key] = append(idx.byCell[key], item)
		}

		idx.domains = make([]string, 0, len(idx.byDomain))
		for d := range idx.byDomain {
			idx.domains = append(idx.domains, d)
		}
		sort.Strings(idx.domains)

		bank.courses[course.CourseID] = idx
	}

	return bank, nil
}

// Courses returns the IDs of all loaded courses, sorted.
func (b *Bank) Courses() []string {
	ids := make([]string, 0, len(b.courses))
	for id := range b.courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCourse reports whether the bank holds content for the course.
func (b *Bank) HasCourse(courseID string) bool {
	_, ok := b.courses[courseID]
	return ok
}

// Domains returns the sorted domain codes of a course, or ErrUnknownCourse.
func (b *Bank) Domains(courseID string) ([]string, error) {
	idx, ok := b.courses[courseID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCourse, courseID)
	}
	out := make([]string, len(idx.domains))
	copy(out, idx.domains)
	return out, nil
}

// Get returns the item with the given ID, or nil when unknown.
func (b *Bank) Get(itemID string) *domain.Item {
	return b.items[itemID]
}

// ByDomain returns all items of a course domain.
func (b *Bank) ByDomain(courseID, dom string) []*domain.Item {
	idx, ok := b.courses[courseID]
	if !ok {
		return nil
	}
	return copyItems(idx.byDomain[dom])
}

// ByDifficulty returns the items in one (domain, difficulty) cell.
// An empty result is not an error here; callers that need a minimum count
// turn a shortfall into an InsufficientPoolError with the context they have.
func (b *Bank) ByDifficulty(courseID, dom string, difficulty domain.Difficulty) []*domain.Item {
	idx, ok := b.courses[courseID]
	if !ok {
		return nil
	}
	return copyItems(idx.byCell[cellKey{domain: dom, difficulty: difficulty}])
}

// Preset returns the course's authored blueprint/difficulty-mix defaults,
// or false when the course carries none.
func (b *Bank) Preset(courseID string) (*CoursePreset, bool) {
	idx, ok := b.courses[courseID]
	if !ok || idx.preset == nil {
		return nil, false
	}
	return idx.preset, true
}

// Excluding filters items whose IDs appear in the excluded set. The input
// slice is not modified.
func Excluding(items []*domain.Item, excluded map[string]struct{}) []*domain.Item {
	if len(excluded) == 0 {
		return copyItems(items)
	}
	out := make([]*domain.Item, 0, len(items))
	for _, item := range items {
		if _, skip := excluded[item.ID]; !skip {
			out = append(out, item)
		}
	}
	return out
}

func copyItems(items []*domain.Item) []*domain.Item {
	if items == nil {
		return nil
	}
	out := make([]*domain.Item, len(items))
	copy(out, items)
	return out
}
