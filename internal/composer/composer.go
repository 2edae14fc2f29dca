package composer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/blueprint"
	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/itembank"
	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/store"
)

// Request carries everything a composition needs. Blueprint and
// DifficultyMix may be nil, in which case the course preset (and the global
// default mix) apply.
type Request struct {
	LearnerID      uuid.UUID
	CourseID       string
	TotalItems     int
	Blueprint      *domain.ExamBlueprint
	DifficultyMix  domain.DifficultyMix
	CooldownWindow time.Duration
	Epsilon        float64
}

// Composer selects items satisfying blueprint and difficulty-mix constraints
// without duplicates. It is a pure computation over the immutable item bank
// once the learner's recently-seen set has been read; no I/O happens
// mid-sampling.
type Composer struct {
	bank      *itembank.Bank
	exposures store.ExposureStore
	logger    *slog.Logger

	// seedFn produces the shuffle seed per composition. Production uses the
	// clock; tests inject a fixed seed for determinism.
	mu     sync.Mutex
	seedFn func() int64
}

// New creates a Composer with time-seeded shuffling.
func New(bank *itembank.Bank, exposures store.ExposureStore, log *slog.Logger) *Composer {
	if bank == nil {
		panic("bank cannot be nil")
	}
	if exposures == nil {
		panic("exposures cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Composer{
		bank:      bank,
		exposures: exposures,
		logger:    log.With(slog.String("component", "composer")),
		seedFn:    func() int64 { return time.Now().UnixNano() },
	}
}

// NewWithSeed creates a Composer whose shuffles all derive from the given
// seed. Intended for tests that need reproducible item orders.
func NewWithSeed(bank *itembank.Bank, exposures store.ExposureStore, log *slog.Logger, seed int64) *Composer {
	c := New(bank, exposures, log)
	c.seedFn = func() int64 { return seed }
	return c
}

// Compose builds an ExamSession per the two-level apportionment algorithm:
// blueprint weights to per-domain counts, difficulty mix to per-cell counts
// within each domain, then cooldown-aware sampling without replacement.
//
// Cells whose cooldown-filtered pool is too small fall back to the full pool
// and are reported in the session's DegradedCells; cells whose full pool is
// too small fail the whole composition with *itembank.InsufficientPoolError.
func (c *Composer) Compose(ctx context.Context, req Request) (*domain.ExamSession, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if req.TotalItems <= 0 {
		return nil, fmt.Errorf("%w: total items must be positive", domain.ErrValidation)
	}
	if !c.bank.HasCourse(req.CourseID) {
		return nil, fmt.Errorf("%w: %s", itembank.ErrUnknownCourse, req.CourseID)
	}

	bp, mix, err := c.resolveConstraints(req)
	if err != nil {
		return nil, err
	}

	// The exposure read is the only I/O; everything after is pure.
	recent, err := c.recentlySeen(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent exposures: %w", err)
	}

	domainCounts := ApportionDomains(bp.Weights, req.TotalItems)

	rng := c.newRand()

	var picked []*domain.Item
	var degraded []domain.DegradedCell

	// Iterate domains in sorted order so failures are deterministic.
	domains := make([]string, 0, len(domainCounts))
	for d := range domainCounts {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, dom := range domains {
		cellCounts := ApportionMix(mix, domainCounts[dom])

		for _, difficulty := range domain.Difficulties {
			needed := cellCounts[difficulty]
			if needed == 0 {
				continue
			}

			pool := c.bank.ByDifficulty(req.CourseID, dom, difficulty)
			if len(pool) < needed {
				return nil, &itembank.InsufficientPoolError{
					CourseID:   req.CourseID,
					Domain:     dom,
					Difficulty: difficulty,
					Needed:     needed,
					Available:  len(pool),
				}
			}

			filtered := itembank.Excluding(pool, recent)
			if len(filtered) < needed {
				// Cooldown leaves too few fresh items: relax it for this
				// cell and report the degradation instead of hiding it.
				degraded = append(degraded, domain.DegradedCell{
					Domain:     dom,
					Difficulty: difficulty,
					Needed:     needed,
					Available:  len(filtered),
				})
				filtered = pool
			}

			picked = append(picked, sampleWithoutReplacement(rng, filtered, needed)...)
		}
	}

	// Final shuffle so domain blocks don't appear in order.
	rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	itemIDs := make([]string, len(picked))
	for i, item := range picked {
		itemIDs[i] = item.ID
	}

	session, err := domain.NewExamSession(req.LearnerID, req.CourseID, itemIDs, degraded)
	if err != nil {
		return nil, err
	}

	if session.Degraded {
		log.Warn("composition degraded, cooldown relaxed",
			slog.String("learner_id", req.LearnerID.String()),
			slog.String("course_id", req.CourseID),
			slog.Int("degraded_cells", len(degraded)))
	}

	return session, nil
}

// resolveConstraints fills in the blueprint and mix from the course preset
// where the request omits them, then validates both.
func (c *Composer) resolveConstraints(req Request) (*domain.ExamBlueprint, domain.DifficultyMix, error) {
	bp := req.Blueprint
	mix := req.DifficultyMix

	if preset, ok := c.bank.Preset(req.CourseID); ok {
		if bp == nil {
			bp = preset.Blueprint
		}
		if mix == nil {
			mix = preset.DifficultyMix
		}
	}
	if bp == nil {
		return nil, nil, fmt.Errorf("%w: course %q has no preset and no blueprint was given",
			domain.ErrValidation, req.CourseID)
	}
	if mix == nil {
		mix = domain.DefaultDifficultyMix()
	}

	if err := blueprint.Validate(bp, c.bank, req.Epsilon); err != nil {
		return nil, nil, err
	}
	if err := blueprint.ValidateMix(mix, req.Epsilon); err != nil {
		return nil, nil, err
	}

	return bp, mix, nil
}

// recentlySeen reads the learner's cooldown exclusion set. A zero window
// disables the filter.
func (c *Composer) recentlySeen(ctx context.Context, req Request) (map[string]struct{}, error) {
	if req.CooldownWindow <= 0 {
		return nil, nil
	}
	since := time.Now().UTC().Add(-req.CooldownWindow)
	return c.exposures.RecentlySeen(ctx, req.LearnerID, since)
}

func (c *Composer) newRand() *rand.Rand {
	c.mu.Lock()
	seed := c.seedFn()
	c.mu.Unlock()
	return rand.New(rand.NewSource(seed))
}

// sampleWithoutReplacement picks n distinct items from pool. The pool slice
// is a copy owned by the caller, so shuffling it in place is safe.
func sampleWithoutReplacement(rng *rand.Rand, pool []*domain.Item, n int) []*domain.Item {
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:n]
}
