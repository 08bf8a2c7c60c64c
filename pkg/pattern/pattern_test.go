package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRegex(t *testing.T) {
	tests := []struct {
		glob string
		want string
	}{
		{"*.rs", `[^/]*\.rs`},
		{"src/**", `src/.*`},
		{"file?.txt", `file.\.txt`},
		{"[ab].go", `[ab]\.go`},
		{"*.{go,rs}", `[^/]*\.(go|rs)`},
		{"my_dir-1/x", `my_dir-1/x`},
		{"a+b", `a\+b`},
	}
	for _, tt := range tests {
		t.Run(tt.glob, func(t *testing.T) {
			assert.Equal(t, tt.want, ToRegex(tt.glob))
		})
	}
}

func TestCompile_GlobSeparators(t *testing.T) {
	single, err := Compile("src/*.rs")
	require.NoError(t, err)
	assert.True(t, single.MatchString("src/lib.rs"))
	assert.False(t, single.MatchString("src/sub/lib.rs"))

	double, err := Compile("src/**.rs")
	require.NoError(t, err)
	assert.True(t, double.MatchString("src/lib.rs"))
	assert.True(t, double.MatchString("src/sub/lib.rs"))
}

func TestCompile_RegexPassthrough(t *testing.T) {
	t.Run("leading caret", func(t *testing.T) {
		m, err := Compile("^src/")
		require.NoError(t, err)
		assert.Equal(t, "^src/", m.Regex.String())
		assert.True(t, m.MatchString("src/main.go"))
		assert.False(t, m.MatchString("lib/src/main.go"))
	})

	t.Run("trailing dollar", func(t *testing.T) {
		m, err := Compile(`.*\.rs$`)
		require.NoError(t, err)
		assert.True(t, m.MatchString("src/lib.rs"))
		assert.False(t, m.MatchString("src/lib.rs.bak"))
	})
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("[unclosed")
	assert.Error(t, err)

	_, err = Compile("^(open$")
	assert.Error(t, err)
}

func TestCompileAll(t *testing.T) {
	set, errs := CompileAll([]string{"*.log", "[bad", "^vendor/"})

	require.Len(t, errs, 1)
	assert.Contains(t, errs, 1)
	assert.Equal(t, 2, set.Len())

	assert.True(t, set.MatchesPath("debug.log"))
	assert.True(t, set.MatchesPath("logs/app.log"))
	assert.True(t, set.MatchesPath("vendor/pkg/a.go"))
	assert.False(t, set.MatchesPath("main.go"))

	m := set.Match("vendor/x")
	require.NotNil(t, m)
	assert.Equal(t, "^vendor/", m.Source)
}

func TestSet_Nil(t *testing.T) {
	var s *Set
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.MatchesPath("anything"))
}
