package itembank

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/examkit/practice-api/internal/domain"
)

// CourseContent is the on-disk shape of one authored course file: the item
// catalog plus the course's default blueprint and difficulty mix. The struct
// is closed on purpose - unknown content shapes should fail loudly at load
// time, not flow through as loosely-typed records.
type CourseContent struct {
	CourseID      string             `json:"course_id"`
	Blueprint     map[string]float64 `json:"blueprint,omitempty"`
	DifficultyMix map[string]float64 `json:"difficulty_mix,omitempty"`
	Items         []domain.Item      `json:"items"`
}

// preset converts the authored defaults into a CoursePreset, or nil when the
// file carries no blueprint.
func (c *CourseContent) preset() *CoursePreset {
	if len(c.Blueprint) == 0 {
		return nil
	}

	preset := &CoursePreset{
		Blueprint: &domain.ExamBlueprint{
			CourseID: c.CourseID,
			Weights:  c.Blueprint,
		},
		DifficultyMix: domain.DefaultDifficultyMix(),
	}

	if len(c.DifficultyMix) > 0 {
		mix := make(domain.DifficultyMix, len(c.DifficultyMix))
		for k, v := range c.DifficultyMix {
			mix[domain.Difficulty(k)] = v
		}
		preset.DifficultyMix = mix
	}

	return preset
}

// LoadDir reads every *.json course file in dir and returns the decoded
// content. Files are processed in lexical order so load errors are
// reproducible.
func LoadDir(dir string) ([]*CourseContent, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read content directory %q: %w", dir, err)
	}

	var courses []*CourseContent
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		course, err := loadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}

	if len(courses) == 0 {
		return nil, fmt.Errorf("%w: no course files in %q", ErrNoCourses, dir)
	}

	return courses, nil
}

// loadFile decodes and sanity-checks a single course file. Item-level
// validation happens in New so it applies to every construction path.
func loadFile(path string) (*CourseContent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open course file %q: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var course CourseContent
	if err := dec.Decode(&course); err != nil {
		return nil, fmt.Errorf("failed to decode course file %q: %w", path, err)
	}

	if course.CourseID == "" {
		return nil, fmt.Errorf("course file %q: %w", path, domain.ErrBlueprintCourseIDEmpty)
	}

	// Items inherit the file's course ID when they omit their own.
	for i := range course.Items {
		if course.Items[i].CourseID == "" {
			course.Items[i].CourseID = course.CourseID
		}
	}

	return &course, nil
}
