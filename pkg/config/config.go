// Package config reads and validates run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"srcchunk/pkg/chunk"
	"srcchunk/pkg/pattern"
	"srcchunk/pkg/priority"
)

// FileName is the configuration file searched for in a tree and its parents.
const FileName = "srcchunk.toml"

// DefaultOutputDirName is created under the root when no output directory is
// configured and output is not streamed.
const DefaultOutputDirName = "srcchunk-output"

// DefaultGitTimeout bounds the history lookup.
const DefaultGitTimeout = 30 * time.Second

// MaxScore is the upper bound for priority rule scores.
const MaxScore = 1000

// PriorityRule raises the priority of paths matching Pattern.
type PriorityRule struct {
	Pattern string `toml:"pattern"`
	Score   int    `toml:"score"`
}

// Config is the configuration as written in a file or assembled from flags.
type Config struct {
	IgnorePatterns   []string       `toml:"ignore_patterns"`
	PriorityRules    []PriorityRule `toml:"priority_rules"`
	BinaryExtensions []string       `toml:"binary_extensions"`
	MaxSize          *int           `toml:"max_size"`
	OutputDir        string         `toml:"output_dir"`
	Stream           bool           `toml:"stream"`
	TokenMode        bool           `toml:"token_mode"`
	Workers          int            `toml:"workers"`
	GitTimeout       string         `toml:"git_timeout"`
	NoHistory        bool           `toml:"no_history"`
}

// Run is a validated configuration with every pattern compiled. It is not
// modified after Validate returns.
type Run struct {
	Ignore           *pattern.Set
	PriorityRules    []priority.Rule
	BinaryExtensions []string
	MaxSize          int
	OutputDir        string
	Stream           bool
	TokenMode        bool
	Workers          int
	GitTimeout       time.Duration
	NoHistory        bool
}

// ValidationError is a recoverable problem with one configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Load parses a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("parsing config file %s at %d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}

// FindConfigFile walks up from start looking for FileName. A relative start
// is resolved against the working directory.
func FindConfigFile(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Merge overlays the non-zero fields of o onto c. Lists are appended.
func (c *Config) Merge(o Config) {
	c.IgnorePatterns = append(c.IgnorePatterns, o.IgnorePatterns...)
	c.PriorityRules = append(c.PriorityRules, o.PriorityRules...)
	c.BinaryExtensions = append(c.BinaryExtensions, o.BinaryExtensions...)
	if o.MaxSize != nil {
		size := *o.MaxSize
		c.MaxSize = &size
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	if o.GitTimeout != "" {
		c.GitTimeout = o.GitTimeout
	}
	c.Stream = c.Stream || o.Stream
	c.TokenMode = c.TokenMode || o.TokenMode
	c.NoHistory = c.NoHistory || o.NoHistory
}

// Validate compiles the configuration for a run over root. Problems are
// returned as diagnostics; the offending rule or pattern is left out of the
// Run and never matches. When not streaming, the output directory is created.
func (c *Config) Validate(root string) (*Run, []ValidationError) {
	var errs []ValidationError
	run := &Run{
		BinaryExtensions: append([]string(nil), c.BinaryExtensions...),
		MaxSize:          chunk.DefaultMaxSize,
		OutputDir:        c.OutputDir,
		Stream:           c.Stream,
		TokenMode:        c.TokenMode,
		Workers:          c.Workers,
		GitTimeout:       DefaultGitTimeout,
		NoHistory:        c.NoHistory,
	}

	for _, r := range c.PriorityRules {
		valid := true
		if r.Score < 0 || r.Score > MaxScore {
			errs = append(errs, ValidationError{
				Field:   "priority_rules",
				Message: fmt.Sprintf("Priority score %d must be between 0 and %d", r.Score, MaxScore),
			})
			valid = false
		}
		if r.Pattern == "" {
			errs = append(errs, ValidationError{
				Field:   "priority_rules",
				Message: "Priority rule must have a pattern",
			})
			continue
		}
		m, err := pattern.Compile(r.Pattern)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "priority_rules",
				Message: fmt.Sprintf("Invalid pattern '%s': %v", r.Pattern, err),
			})
			continue
		}
		if valid {
			run.PriorityRules = append(run.PriorityRules, priority.Rule{Matcher: m, Score: r.Score})
		}
	}

	set, patErrs := pattern.CompileAll(c.IgnorePatterns)
	for i, p := range c.IgnorePatterns {
		if err, ok := patErrs[i]; ok {
			errs = append(errs, ValidationError{
				Field:   "ignore_patterns",
				Message: fmt.Sprintf("Invalid pattern '%s': %v", p, err),
			})
		}
	}
	run.Ignore = set

	if c.MaxSize != nil {
		switch size := *c.MaxSize; {
		case size == 0:
			errs = append(errs, ValidationError{Field: "max_size", Message: "Max size cannot be 0"})
		case size < 0:
			errs = append(errs, ValidationError{Field: "max_size", Message: "Max size cannot be negative"})
		default:
			run.MaxSize = size
		}
	}

	if c.Workers < 0 {
		errs = append(errs, ValidationError{Field: "workers", Message: "Workers cannot be negative"})
		run.Workers = 0
	}

	if c.GitTimeout != "" {
		d, err := time.ParseDuration(c.GitTimeout)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{
				Field:   "git_timeout",
				Message: fmt.Sprintf("Invalid duration '%s': %v", c.GitTimeout, err),
			})
		case d <= 0:
			errs = append(errs, ValidationError{Field: "git_timeout", Message: "Git timeout must be positive"})
		default:
			run.GitTimeout = d
		}
	}

	if !run.Stream && run.OutputDir == "" {
		run.OutputDir = filepath.Join(root, DefaultOutputDirName)
	}
	if run.OutputDir != "" && !run.Stream {
		if info, err := os.Stat(run.OutputDir); err == nil && !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "output_dir",
				Message: fmt.Sprintf("Output path '%s' exists but is not a directory", run.OutputDir),
			})
		} else if err := os.MkdirAll(run.OutputDir, 0o755); err != nil {
			errs = append(errs, ValidationError{
				Field:   "output_dir",
				Message: fmt.Sprintf("Cannot create output directory '%s': %v", run.OutputDir, err),
			})
		}
	}

	return run, errs
}
