package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srcchunk/pkg/history"
	"srcchunk/pkg/pattern"
)

func rule(t *testing.T, p string, score int) Rule {
	t.Helper()
	m, err := pattern.Compile(p)
	require.NoError(t, err)
	return Rule{Matcher: m, Score: score}
}

func TestPatternScore_TakesMaximum(t *testing.T) {
	rules := []Rule{rule(t, `.*\.rs$`, 10), rule(t, "^src/", 5)}
	e := NewEngine(rules, nil)

	assert.Equal(t, 10, e.PatternScore("src/lib.rs"))
	assert.Equal(t, 5, e.PatternScore("src/main.go"))
	assert.Equal(t, 10, e.PatternScore("tests/it.rs"))
	assert.Equal(t, 0, e.PatternScore("README.md"))
}

func TestPatternScore_OrderIrrelevant(t *testing.T) {
	forward := NewEngine([]Rule{rule(t, "^src/", 5), rule(t, `.*\.rs$`, 10)}, nil)
	reverse := NewEngine([]Rule{rule(t, `.*\.rs$`, 10), rule(t, "^src/", 5)}, nil)

	for _, p := range []string{"src/lib.rs", "src/a.go", "b.rs", "c.txt"} {
		assert.Equal(t, forward.PatternScore(p), reverse.PatternScore(p), p)
	}
}

func TestBoostTable(t *testing.T) {
	t.Run("three files scale to max boost", func(t *testing.T) {
		table := BoostTable(history.Times{"A": 100, "B": 200, "C": 300}, 50)
		assert.Equal(t, map[string]int{"A": 0, "B": 25, "C": 50}, table)
	})

	t.Run("rounds to nearest", func(t *testing.T) {
		times := history.Times{"a": 1, "b": 2, "c": 3, "d": 4}
		table := BoostTable(times, 50)
		assert.Equal(t, 0, table["a"])
		assert.Equal(t, 17, table["b"])
		assert.Equal(t, 33, table["c"])
		assert.Equal(t, 50, table["d"])
	})

	t.Run("ties break by path", func(t *testing.T) {
		table := BoostTable(history.Times{"z": 5, "a": 5}, 50)
		assert.Equal(t, 0, table["a"])
		assert.Equal(t, 50, table["z"])
	})

	t.Run("single file has no boost", func(t *testing.T) {
		assert.Equal(t, map[string]int{"only": 0}, BoostTable(history.Times{"only": 9}, 50))
	})

	t.Run("no history", func(t *testing.T) {
		assert.Empty(t, BoostTable(nil, 50))
	})
}

func TestScore(t *testing.T) {
	times := history.Times{"old.go": 1, "mid.go": 2, "new.go": 3}
	e := NewEngine([]Rule{rule(t, `\.go$`, 100)}, times)

	assert.Equal(t, 100, e.Score("old.go"))
	assert.Equal(t, 125, e.Score("mid.go"))
	assert.Equal(t, 150, e.Score("new.go"))
	assert.Equal(t, 100, e.Score("untracked.go"))
	assert.Equal(t, 0, e.Score("notes.txt"))
}
