// Package history reads last-commit times per file from version control.
//
// History is optional: every failure degrades to a nil Times so callers can
// treat "no history" and "broken history" the same way.
package history

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// maxLineSize bounds a single line of commit log output.
const maxLineSize = 1024 * 1024

// Times maps a root-relative, forward-slash path to its last commit Unix time.
type Times map[string]int64

// CommitMarker prefixes every timestamp line in commit log text. Paths can
// never contain a NUL byte, so a path made only of digits is not mistaken
// for a timestamp.
const CommitMarker = "\x00"

// Runner produces raw commit log text for a tree: a CommitMarker-prefixed
// timestamp line per commit followed by the paths it changed.
type Runner interface {
	Log(ctx context.Context, root string) ([]byte, error)
}

// GitRunner shells out to the git binary.
type GitRunner struct {
	// Binary is the git executable; "git" when empty.
	Binary string
}

// Log runs git log over root, excluding merges and renames so path identity
// stays stable across history.
func (g GitRunner) Log(ctx context.Context, root string) ([]byte, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-c", "core.quotepath=false",
		"log",
		"--format=%x00%ct",
		"--name-only",
		"--no-merges",
		"--no-renames",
		"--relative",
		"--", ".",
	)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "LC_ALL=en_US.UTF-8", "LANG=en_US.UTF-8")
	return cmd.Output()
}

// Load returns commit times for root, or nil when the tree has no repository
// metadata or the runner fails or produces nothing usable.
func Load(ctx context.Context, root string, runner Runner, logger *zap.Logger) Times {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		return nil
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		logger.Debug("No .git directory found, skipping history", zap.String("root", root))
		return nil
	}

	out, err := runner.Log(ctx, root)
	if err != nil {
		logger.Debug("History command failed, skipping history", zap.Error(err))
		return nil
	}

	times := ParseLog(out)
	if len(times) == 0 {
		logger.Debug("No commit times found, skipping history")
		return nil
	}
	logger.Debug("Loaded commit history", zap.Int("files", len(times)))
	return times
}

// ParseLog parses commit log text. Lines starting with CommitMarker set the
// current commit time; other non-empty lines are paths changed at that time.
// A path keeps the newest time it appears with. Paths seen before any
// timestamp are dropped. Output that cannot be scanned to the end, such as a
// line over the scanner limit, yields nil.
func ParseLog(out []byte) Times {
	times := make(Times)
	var current int64
	seenTimestamp := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		raw := scanner.Text()
		if rest, ok := strings.CutPrefix(raw, CommitMarker); ok {
			ts, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				seenTimestamp = false
				continue
			}
			current = ts
			seenTimestamp = true
			continue
		}
		line := sanitize(raw)
		if line == "" || !seenTimestamp {
			continue
		}
		path := filepath.ToSlash(line)
		if prev, ok := times[path]; !ok || current > prev {
			times[path] = current
		}
	}
	if err := scanner.Err(); err != nil {
		return nil
	}
	return times
}

// sanitize replaces invalid UTF-8 and drops non-printable characters.
func sanitize(line string) string {
	line = strings.ToValidUTF8(line, "")
	line = strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, line)
	return strings.TrimSpace(line)
}
