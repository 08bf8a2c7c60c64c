// Package priority scores files for output ordering. Lower scores are
// emitted first.
package priority

import (
	"math"
	"sort"

	"srcchunk/pkg/history"
	"srcchunk/pkg/pattern"
)

// MaxBoost is the largest recency boost a file can receive.
const MaxBoost = 50

// Rule is a compiled priority rule.
type Rule struct {
	Matcher *pattern.Matcher
	Score   int
}

// Engine combines static rule scores with a precomputed recency table.
// It is safe for concurrent use.
type Engine struct {
	rules  []Rule
	boosts map[string]int
}

// NewEngine builds an engine. times may be nil when history is unavailable;
// the boost table is computed here, once.
func NewEngine(rules []Rule, times history.Times) *Engine {
	return &Engine{
		rules:  rules,
		boosts: BoostTable(times, MaxBoost),
	}
}

// PatternScore returns the highest score among rules matching path, or 0.
func (e *Engine) PatternScore(path string) int {
	best := 0
	for _, r := range e.rules {
		if r.Score > best && r.Matcher.MatchString(path) {
			best = r.Score
		}
	}
	return best
}

// Boost returns the recency boost for path, 0 if it has no history.
func (e *Engine) Boost(path string) int {
	return e.boosts[path]
}

// Score returns the final priority of path.
func (e *Engine) Score(path string) int {
	return e.PatternScore(path) + e.Boost(path)
}

// BoostTable ranks files by ascending commit time (ties broken by path) and
// scales the rank to [0, maxBoost]. With fewer than two files every boost is 0.
func BoostTable(times history.Times, maxBoost int) map[string]int {
	table := make(map[string]int, len(times))
	if len(times) < 2 {
		for p := range times {
			table[p] = 0
		}
		return table
	}

	paths := make([]string, 0, len(times))
	for p := range times {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		ti, tj := times[paths[i]], times[paths[j]]
		if ti != tj {
			return ti < tj
		}
		return paths[i] < paths[j]
	})

	last := float64(len(paths) - 1)
	for i, p := range paths {
		rank := float64(i) / last
		table[p] = int(math.Round(rank * float64(maxBoost)))
	}
	return table
}
