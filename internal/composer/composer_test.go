package composer

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/itembank"
	"github.com/examkit/practice-api/internal/store"
)

// fakeExposureStore serves a fixed recently-seen set.
type fakeExposureStore struct {
	seen map[string]struct{}
}

func (f *fakeExposureStore) Record(ctx context.Context, exposures []store.ItemExposure) error {
	return nil
}

func (f *fakeExposureStore) RecentlySeen(
	ctx context.Context,
	learnerID uuid.UUID,
	since time.Time,
) (map[string]struct{}, error) {
	return f.seen, nil
}

func (f *fakeExposureStore) WithTx(tx *sql.Tx) store.ExposureStore { return f }

// composerBank builds a bank with `perCell` items in every (domain,
// difficulty) cell of the given domains.
func composerBank(t *testing.T, domains []string, perCell int) *itembank.Bank {
	t.Helper()

	var items []domain.Item
	for _, dom := range domains {
		for _, difficulty := range domain.Difficulties {
			for i := 0; i < perCell; i++ {
				items = append(items, domain.Item{
					ID:                 fmt.Sprintf("%s-%s-%d", dom, difficulty, i),
					CourseID:           "cisa",
					Domain:             dom,
					BlueprintArea:      dom,
					Difficulty:         difficulty,
					SkillLevel:         "knowledge",
					Topic:              "topic-" + dom,
					Question:           "q?",
					Options:            []string{"a", "b", "c", "d"},
					CorrectOptionIndex: 0,
					Explanation:        "because",
				})
			}
		}
	}

	bank, err := itembank.New([]*itembank.CourseContent{{CourseID: "cisa", Items: items}})
	require.NoError(t, err)
	return bank
}

func TestCompose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	learnerID := uuid.New()

	evenBlueprint := &domain.ExamBlueprint{
		CourseID: "cisa",
		Weights:  map[string]float64{"D1": 0.5, "D2": 0.5},
	}

	t.Run("fills the requested size without duplicates", func(t *testing.T) {
		t.Parallel()
		bank := composerBank(t, []string{"D1", "D2"}, 10)
		c := NewWithSeed(bank, &fakeExposureStore{}, nil, 7)

		session, err := c.Compose(ctx, Request{
			LearnerID:  learnerID,
			CourseID:   "cisa",
			TotalItems: 20,
			Blueprint:  evenBlueprint,
		})
		require.NoError(t, err)

		assert.Len(t, session.ItemIDs, 20)
		assert.False(t, session.Degraded)
		assert.Equal(t, domain.SessionStateCreated, session.State)

		seen := make(map[string]struct{})
		perDomain := make(map[string]int)
		for _, id := range session.ItemIDs {
			_, dup := seen[id]
			assert.False(t, dup, "duplicate item %s", id)
			seen[id] = struct{}{}
			perDomain[bank.Get(id).Domain]++
		}
		assert.Equal(t, map[string]int{"D1": 10, "D2": 10}, perDomain)
	})

	t.Run("difficulty mix is honored per domain", func(t *testing.T) {
		t.Parallel()
		bank := composerBank(t, []string{"D1"}, 10)
		c := NewWithSeed(bank, &fakeExposureStore{}, nil, 7)

		session, err := c.Compose(ctx, Request{
			LearnerID:  learnerID,
			CourseID:   "cisa",
			TotalItems: 10,
			Blueprint: &domain.ExamBlueprint{
				CourseID: "cisa",
				Weights:  map[string]float64{"D1": 1.0},
			},
			DifficultyMix: domain.DefaultDifficultyMix(),
		})
		require.NoError(t, err)

		perDifficulty := make(map[domain.Difficulty]int)
		for _, id := range session.ItemIDs {
			perDifficulty[bank.Get(id).Difficulty]++
		}
		assert.Equal(t, 3, perDifficulty[domain.DifficultyEasy])
		assert.Equal(t, 5, perDifficulty[domain.DifficultyMedium])
		assert.Equal(t, 2, perDifficulty[domain.DifficultyHard])
	})

	t.Run("seeded composition is deterministic", func(t *testing.T) {
		t.Parallel()
		bank := composerBank(t, []string{"D1", "D2"}, 10)
		req := Request{
			LearnerID:  learnerID,
			CourseID:   "cisa",
			TotalItems: 12,
			Blueprint:  evenBlueprint,
		}

		first, err := NewWithSeed(bank, &fakeExposureStore{}, nil, 99).Compose(ctx, req)
		require.NoError(t, err)
		second, err := NewWithSeed(bank, &fakeExposureStore{}, nil, 99).Compose(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first.ItemIDs, second.ItemIDs)
	})

	t.Run("short full pool fails with cell detail", func(t *testing.T) {
		t.Parallel()
		bank := composerBank(t, []string{"D1", "D2"}, 2)
		c := NewWithSeed(bank, &fakeExposureStore{}, nil, 7)

		_, err := c.Compose(ctx, Request{
			LearnerID:  learnerID,
			CourseID:   "cisa",
			TotalItems: 20, // needs 5 medium per domain, only 2 exist
			Blueprint:  evenBlueprint,
		})

		var pool *itembank.InsufficientPoolError
		require.ErrorAs(t, err, &pool)
		assert.Equal(t, "D1", pool.Domain)
		assert.Equal(t, 2, pool.Available)
		assert.Greater(t, pool.Needed, pool.Available)
	})

	t.Run("cooldown exhaustion degrades instead of failing", func(t *testing.T) {
		t.Parallel()
		bank := composerBank(t, []string{"D1"}, 2)

		// Every easy D1 item was recently seen.
		seen := map[string]struct{}{
			"D1-easy-0": {},
			"D1-easy-1": {},
		}
		c := NewWithSeed(bank, &fakeExposureStore{seen: seen}, nil, 7)

		session, err := c.Compose(ctx, Request{
			LearnerID:  learnerID,
			CourseID:   "cisa",
			TotalItems: 4,
			Blueprint: &domain.ExamBlueprint{
				CourseID: "cisa",
				Weights:  map[string]float64{"D1": 1.0},
			},
			DifficultyMix: domain.DifficultyMix{
				domain.DifficultyEasy:   0.5,
				domain.DifficultyMedium: 0.5,
				domain.DifficultyHard:   0,
			},
			CooldownWindow: 7 * 24 * time.Hour,
		})
		require.NoError(t, err)

		assert.True(t, session.Degraded)
		require.Len(t, session.DegradedCells, 1)
		cell := session.DegradedCells[0]
		assert.Equal(t, "D1", cell.Domain)
		assert.Equal(t, domain.DifficultyEasy, cell.Difficulty)
		assert.Equal(t, 2, cell.Needed)
		assert.Equal(t, 0, cell.Available)
		assert.Len(t, session.ItemIDs, 4)
	})

	t.Run("invalid blueprint is rejected before sampling", func(t *testing.T) {
		t.Parallel()
		bank := composerBank(t, []string{"D1"}, 5)
		c := NewWithSeed(bank, &fakeExposureStore{}, nil, 7)

		_, err := c.Compose(ctx, Request{
			LearnerID:  learnerID,
			CourseID:   "cisa",
			TotalItems: 5,
			Blueprint: &domain.ExamBlueprint{
				CourseID: "cisa",
				Weights:  map[string]float64{"D1": 0.5, "NOPE": 0.5},
			},
		})
		assert.Error(t, err)
	})

	t.Run("missing blueprint without preset is rejected", func(t *testing.T) {
		t.Parallel()
		bank := composerBank(t, []string{"D1"}, 5)
		c := NewWithSeed(bank, &fakeExposureStore{}, nil, 7)

		_, err := c.Compose(ctx, Request{
			LearnerID:  learnerID,
			CourseID:   "cisa",
			TotalItems: 5,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown course is rejected", func(t *testing.T) {
		t.Parallel()
		bank := composerBank(t, []string{"D1"}, 5)
		c := NewWithSeed(bank, &fakeExposureStore{}, nil, 7)

		_, err := c.Compose(ctx, Request{
			LearnerID:  learnerID,
			CourseID:   "cpa",
			TotalItems: 5,
		})
		assert.ErrorIs(t, err, itembank.ErrUnknownCourse)
	})
}
