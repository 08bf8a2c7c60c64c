// File: pkg/serialize/execute.go
package serialize

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"srcchunk/pkg/chunk"
	"srcchunk/pkg/config"
	"srcchunk/pkg/history"
	"srcchunk/pkg/priority"
)

// Options carries collaborators that are not part of the configuration.
type Options struct {
	// History produces commit logs; nil disables recency boosts.
	History history.Runner
	// Stdout receives streamed chunks; os.Stdout when nil.
	Stdout io.Writer
}

// Execute validates cfg for root, reports diagnostics as warnings and runs
// Serialize with the result.
func Execute(ctx context.Context, root string, cfg *config.Config, opts Options, logger *zap.Logger) (chunk.Stats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	// Validation may create the output directory under root, so root has to
	// exist before it runs.
	absRoot, err := ResolveRoot(root)
	if err != nil {
		logger.Error("Invalid directory", zap.String("directory", root), zap.Error(err))
		return chunk.Stats{}, err
	}

	run, errs := cfg.Validate(absRoot)
	for _, e := range errs {
		logger.Warn("Invalid configuration", zap.String("field", e.Field), zap.String("message", e.Message))
	}
	return Serialize(ctx, absRoot, run, opts, logger)
}

// ResolveRoot returns the absolute path of root with symbolic links
// resolved. The root itself may be a link; links below it are never
// followed. An error is returned unless root is an existing directory.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}
	return resolved, nil
}

// Serialize collects the files under root, orders them by priority and path,
// and writes them as chunks to the output directory or the stream.
func Serialize(ctx context.Context, root string, run *config.Run, opts Options, logger *zap.Logger) (chunk.Stats, error) {
	startTime := time.Now()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("runID", uuid.NewString()))

	absRoot, err := ResolveRoot(root)
	if err != nil {
		logger.Error("Failed to resolve directory path", zap.Error(err))
		return chunk.Stats{}, err
	}
	logger.Info("Starting serialization", zap.String("directory", absRoot))

	outputDir := run.OutputDir
	if !run.Stream && outputDir == "" {
		outputDir = filepath.Join(absRoot, config.DefaultOutputDirName)
	}
	if run.Stream {
		outputDir = ""
	}

	filter, err := NewFilter(absRoot, run.Ignore, outputDir, logger)
	if err != nil {
		return chunk.Stats{}, err
	}

	entries, err := collectEntries(ctx, absRoot, filter, run, opts, logger)
	if err != nil {
		return chunk.Stats{}, err
	}
	SortEntries(entries)

	var sink chunk.Sink
	if run.Stream {
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		sink = chunk.NewStreamSink(out)
	} else {
		if err := ensureDirectory(outputDir, logger); err != nil {
			return chunk.Stats{}, fmt.Errorf("failed to create output directory: %w", err)
		}
		sink = chunk.NewDirSink(outputDir)
	}

	stats, err := chunk.NewWriter(run.MaxSize, run.TokenMode, sink, logger).Write(entries)
	if err != nil {
		logger.Error("Failed to write chunks", zap.Error(err))
		return stats, fmt.Errorf("failed to write chunks: %w", err)
	}

	unit := humanize.IBytes(uint64(stats.Size))
	if run.TokenMode {
		unit = humanize.Comma(int64(stats.Size)) + " tokens"
	}
	logger.Info("Serialization completed",
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
		zap.Int("splitFiles", stats.SplitFiles),
		zap.String("content", unit),
		zap.Bool("stream", run.Stream),
		zap.String("outputDir", outputDir),
		zap.Duration("elapsed", time.Since(startTime)))
	return stats, nil
}

// collectEntries walks the tree and loads history concurrently, then reads
// and scores every collected file.
func collectEntries(ctx context.Context, root string, filter *Filter, run *config.Run, opts Options, logger *zap.Logger) ([]chunk.Entry, error) {
	var (
		files []string
		times history.Times
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		files, err = CollectFiles(root, filter, logger)
		return err
	})
	if !run.NoHistory && opts.History != nil {
		g.Go(func() error {
			timeout := run.GitTimeout
			if timeout <= 0 {
				timeout = config.DefaultGitTimeout
			}
			hctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			times = history.Load(hctx, root, opts.History, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	engine := priority.NewEngine(run.PriorityRules, times)
	entries, err := ProcessFilesConcurrently(ctx, files, run.Workers, NewProcessor(root, run.BinaryExtensions, engine), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to process files: %w", err)
	}
	logger.Debug("Collected entries",
		zap.Int("candidates", len(files)),
		zap.Int("entries", len(entries)),
		zap.Bool("history", times != nil))
	return entries, nil
}

// ensureDirectory ensures a directory exists, creating it if necessary.
func ensureDirectory(path string, logger *zap.Logger) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		logger.Error("Failed to create directory", zap.String("path", path), zap.Error(err))
		return err
	}
	logger.Debug("Ensured directory exists", zap.String("path", path))
	return nil
}
