// Package composer builds practice-exam sessions that satisfy a course
// blueprint and difficulty mix without duplicate items.
package composer

import (
	"math"
	"sort"

	"github.com/examkit/practice-api/internal/domain"
)

// apportion converts fractional weights into integer counts that sum exactly
// to total, using the largest-remainder (Hamilton) method.
//
// keys fixes both the iteration order and the tie-break priority: when two
// keys have equal fractional remainders, the one earlier in keys receives a
// leftover item first. Callers pass alphabetically sorted domain codes (or
// the fixed easy/medium/hard order) so allocation is deterministic.
//
// Weights are normalized by their sum first, which absorbs the small epsilon
// deviation a validated blueprint is allowed to carry; after normalization
// the floors never overshoot and the remainder distribution is exact.
func apportion(keys []string, weights map[string]float64, total int) map[string]int {
	counts := make(map[string]int, len(keys))
	if total <= 0 || len(keys) == 0 {
		for _, k := range keys {
			counts[k] = 0
		}
		return counts
	}

	sum := 0.0
	for _, k := range keys {
		sum += weights[k]
	}
	if sum <= 0 {
		for _, k := range keys {
			counts[k] = 0
		}
		return counts
	}

	type share struct {
		key       string
		priority  int // index in keys, lower wins ties
		remainder float64
	}

	shares := make([]share, 0, len(keys))
	allocated := 0
	for i, k := range keys {
		exact := weights[k] / sum * float64(total)
		floor := int(math.Floor(exact))
		counts[k] = floor
		allocated += floor
		shares = append(shares, share{key: k, priority: i, remainder: exact - float64(floor)})
	}

	// Hand the unallocated items to the largest remainders, ties by priority.
	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].remainder != shares[j].remainder {
			return shares[i].remainder > shares[j].remainder
		}
		return shares[i].priority < shares[j].priority
	})

	for leftover := total - allocated; leftover > 0; {
		for _, s := range shares {
			if leftover == 0 {
				break
			}
			counts[s.key]++
			leftover--
		}
	}

	return counts
}

// ApportionDomains allocates totalItems across blueprint domains, ties
// broken alphabetically by domain code.
func ApportionDomains(weights map[string]float64, totalItems int) map[string]int {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return apportion(keys, weights, totalItems)
}

// ApportionMix allocates a domain's item count across difficulties, ties
// broken in the fixed easy, medium, hard order.
func ApportionMix(mix domain.DifficultyMix, count int) map[domain.Difficulty]int {
	keys := make([]string, 0, len(domain.Difficulties))
	weights := make(map[string]float64, len(domain.Difficulties))
	for _, d := range domain.Difficulties {
		keys = append(keys, string(d))
		weights[string(d)] = mix[d]
	}

	raw := apportion(keys, weights, count)
	out := make(map[domain.Difficulty]int, len(raw))
	for k, v := range raw {
		out[domain.Difficulty(k)] = v
	}
	return out
}
