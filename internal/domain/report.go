package domain

import (
	"time"

	"github.com/google/uuid"
)

// MissedItem is one incorrectly answered item in a score report, carrying the
// authored explanation so the learner can study the gap.
type MissedItem struct {
	ItemID      string `json:"item_id"`
	Explanation string `json:"explanation"`
}

// DomainScore summarizes performance within one exam domain.
type DomainScore struct {
	Domain   string  `json:"domain"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Pct      float64 `json:"pct"`
}

// ScoreReport is the finalized result of an exam session. Once computed and
// stored it is immutable; repeated finalize calls return it unchanged.
//
// Skipped items (unanswered at finalization) are excluded from the answered
// counts and percentages but still count as exposure for cooldown purposes.
type ScoreReport struct {
	SessionID    uuid.UUID     `json:"session_id"`
	PerDomain    []DomainScore `json:"per_domain"`
	OverallPct   float64       `json:"overall_pct"`
	Pass         bool          `json:"pass"`
	PassCutoff   float64       `json:"pass_cutoff"`
	Missed       []MissedItem  `json:"missed"`
	SkippedItems []string      `json:"skipped_items,omitempty"`
	FinalizedAt  time.Time     `json:"finalized_at"`
}
