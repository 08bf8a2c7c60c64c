package serialize

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"srcchunk/pkg/chunk"
	"srcchunk/pkg/config"
	"srcchunk/pkg/history"
)

type fakeHistory struct {
	out []byte
	err error
}

func (f fakeHistory) Log(ctx context.Context, root string) ([]byte, error) {
	return f.out, f.err
}

func intPtr(v int) *int { return &v }

func listOutput(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(data)
	}
	return out
}

func TestExecute_PacksByPriority(t *testing.T) {
	root := t.TempDir()
	outDir := t.TempDir()
	writeFile(t, root, "a.txt", []byte("hello"))
	writeFile(t, root, "b.txt", []byte("world!!"))

	cfg := &config.Config{
		PriorityRules: []config.PriorityRule{{Pattern: "b.txt", Score: 1}},
		MaxSize:       intPtr(20),
		OutputDir:     outDir,
	}
	stats, err := Execute(context.Background(), root, cfg, Options{}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, map[string]string{
		"chunk-0.txt": "chunk 0\n>>>> a.txt\nhello\nchunk 0\n>>>> b.txt\nworld!!\n",
	}, listOutput(t, outDir))
}

func TestExecute_SplitsLargeFile(t *testing.T) {
	root := t.TempDir()
	outDir := t.TempDir()
	writeFile(t, root, "big.txt", []byte(strings.Repeat("y", 25)))

	cfg := &config.Config{MaxSize: intPtr(20), OutputDir: outDir}
	stats, err := Execute(context.Background(), root, cfg, Options{}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SplitFiles)
	assert.Equal(t, map[string]string{
		"chunk-0-part-0.txt": "chunk 0\n>>>> big.txt:part 0\n" + strings.Repeat("y", 20) + "\n",
		"chunk-0-part-1.txt": "chunk 0\n>>>> big.txt:part 1\nyyyyy\n",
	}, listOutput(t, outDir))
}

func TestExecute_DefaultOutputDirIsExcluded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("one"))

	_, err := Execute(context.Background(), root, &config.Config{}, Options{}, zap.NewNop())
	require.NoError(t, err)
	outDir := filepath.Join(root, config.DefaultOutputDirName)
	first := listOutput(t, outDir)
	require.Contains(t, first, "chunk-0.txt")

	// A second run must not pick up the chunks written by the first.
	_, err = Execute(context.Background(), root, &config.Config{}, Options{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, first, listOutput(t, outDir))
	assert.Equal(t, "chunk 0\n>>>> a.txt\none\n", first["chunk-0.txt"])
}

func TestExecute_Stream(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("hello"))
	writeFile(t, root, "sub/b.txt", []byte("world"))

	var buf bytes.Buffer
	cfg := &config.Config{Stream: true, MaxSize: intPtr(7)}
	stats, err := Execute(context.Background(), root, cfg, Options{Stdout: &buf}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, "chunk 0\n>>>> a.txt\nhello\nchunk 1\n>>>> sub/b.txt\nworld\n", buf.String())
	assert.NoDirExists(t, filepath.Join(root, config.DefaultOutputDirName))
}

func TestExecute_Deterministic(t *testing.T) {
	root := t.TempDir()
	for i, name := range []string{"z.go", "m/a.go", "m/b.go", "docs/readme.md", "c.txt"} {
		writeFile(t, root, name, []byte(strings.Repeat(string(rune('a'+i)), 4+i)))
	}
	cfg := func() *config.Config {
		return &config.Config{
			Stream:        true,
			MaxSize:       intPtr(10),
			Workers:       3,
			PriorityRules: []config.PriorityRule{{Pattern: "*.go", Score: 5}},
		}
	}

	var first, second bytes.Buffer
	_, err := Execute(context.Background(), root, cfg(), Options{Stdout: &first}, zap.NewNop())
	require.NoError(t, err)
	_, err = Execute(context.Background(), root, cfg(), Options{Stdout: &second}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
	assert.True(t, strings.HasPrefix(first.String(), "chunk 0\n>>>> c.txt\n"))
}

func TestExecute_InvalidConfigContinues(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", []byte("k"))
	writeFile(t, root, "drop.log", []byte("d"))

	var buf bytes.Buffer
	cfg := &config.Config{
		Stream:         true,
		IgnorePatterns: []string{"*.log", "^[unclosed"},
		PriorityRules:  []config.PriorityRule{{Pattern: "keep", Score: 5000}},
		MaxSize:        intPtr(0),
	}
	stats, err := Execute(context.Background(), root, cfg, Options{Stdout: &buf}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, "chunk 0\n>>>> keep.txt\nk\n", buf.String())
}

func TestExecute_HistoryBoost(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	writeFile(t, root, ".git/HEAD", []byte("ref: refs/heads/main\n"))
	writeFile(t, root, "a.txt", []byte("A"))
	writeFile(t, root, "b.txt", []byte("B"))

	m := history.CommitMarker
	runner := fakeHistory{out: []byte(m + "200\n\na.txt\n" + m + "100\n\nb.txt\n")}

	var buf bytes.Buffer
	cfg := &config.Config{Stream: true}
	_, err := Execute(context.Background(), root, cfg, Options{History: runner, Stdout: &buf}, zap.NewNop())
	require.NoError(t, err)
	// b.txt is older and gets no boost; a.txt is newest and sorts last.
	assert.Equal(t, "chunk 0\n>>>> b.txt\nB\nchunk 0\n>>>> a.txt\nA\n", buf.String())

	buf.Reset()
	cfg = &config.Config{Stream: true, NoHistory: true}
	_, err = Execute(context.Background(), root, cfg, Options{History: runner, Stdout: &buf}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "chunk 0\n>>>> a.txt\nA\nchunk 0\n>>>> b.txt\nB\n", buf.String())
}

func TestExecute_MalformedIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("[\n"))
	writeFile(t, root, "a.txt", []byte("a"))

	var buf bytes.Buffer
	_, err := Execute(context.Background(), root, &config.Config{Stream: true}, Options{Stdout: &buf}, zap.NewNop())
	require.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestExecute_MissingRoot(t *testing.T) {
	for _, stream := range []bool{true, false} {
		root := filepath.Join(t.TempDir(), "absent")
		cfg := &config.Config{Stream: stream}
		stats, err := Execute(context.Background(), root, cfg, Options{Stdout: &bytes.Buffer{}}, nil)
		assert.Error(t, err, "stream=%v", stream)
		assert.Equal(t, chunk.Stats{}, stats)
		assert.NoDirExists(t, root, "stream=%v", stream)
	}
}

func TestExecute_RootIsFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "file.txt", []byte("x"))

	_, err := Execute(context.Background(), file, &config.Config{}, Options{}, zap.NewNop())
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(dir, config.DefaultOutputDirName))
}

func TestExecute_SymlinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	target := t.TempDir()
	writeFile(t, target, "a.txt", []byte("hello"))
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(target, link))

	var buf bytes.Buffer
	stats, err := Execute(context.Background(), link, &config.Config{Stream: true}, Options{Stdout: &buf}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, "chunk 0\n>>>> a.txt\nhello\n", buf.String())

	// The default output directory lands in the link target and stays
	// excluded on the next run.
	_, err = Execute(context.Background(), link, &config.Config{}, Options{}, zap.NewNop())
	require.NoError(t, err)
	_, err = Execute(context.Background(), link, &config.Config{}, Options{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"chunk-0.txt": "chunk 0\n>>>> a.txt\nhello\n",
	}, listOutput(t, filepath.Join(target, config.DefaultOutputDirName)))
}

func TestExecute_SkipsBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "text.txt", []byte("text"))
	writeFile(t, root, "image.png", []byte("not really a png"))
	writeFile(t, root, "blob.raw", []byte{'a', 0, 'b'})
	writeFile(t, root, "data.custom", []byte("custom"))

	var buf bytes.Buffer
	cfg := &config.Config{Stream: true, BinaryExtensions: []string{"custom"}}
	stats, err := Execute(context.Background(), root, cfg, Options{Stdout: &buf}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, "chunk 0\n>>>> text.txt\ntext\n", buf.String())
}

func TestExecute_InvalidUTF8IsReplaced(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "latin1.txt", []byte{'c', 'a', 'f', 0xe9})

	var buf bytes.Buffer
	_, err := Execute(context.Background(), root, &config.Config{Stream: true}, Options{Stdout: &buf}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "chunk 0\n>>>> latin1.txt\ncaf\uFFFD\n", buf.String())
}

func TestExecute_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	_, err := Execute(ctx, root, &config.Config{Stream: true}, Options{Stdout: &buf}, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortEntries(t *testing.T) {
	entries := []chunk.Entry{
		{Path: "b", Priority: 1},
		{Path: "c", Priority: 0},
		{Path: "a", Priority: 1},
		{Path: "d", Priority: 0},
	}
	SortEntries(entries)

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, paths)
	assert.True(t, sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].Priority < entries[j].Priority
	}))
}
