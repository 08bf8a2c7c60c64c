// File: pkg/serialize/traversal.go
package serialize

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"srcchunk/pkg/ignore"
	"srcchunk/pkg/pattern"
)

// metadataDir is the version-control directory that is never traversed.
const metadataDir = ".git"

// IgnoreParser defines the interface for matching paths against ignore files.
type IgnoreParser interface {
	Matches(path string, isDir bool) bool
}

// Filter decides which paths under a root are skipped.
type Filter struct {
	gitignore IgnoreParser
	patterns  *pattern.Set
	outputDir string // Root-relative output directory, empty when outside the root.
}

// NewFilter builds the filter for root. The root's ignore file must parse;
// a malformed one fails construction. outputDir, when it lies under root, is
// skipped so earlier chunks are never read back in.
func NewFilter(root string, patterns *pattern.Set, outputDir string, logger *zap.Logger) (*Filter, error) {
	gi, err := ignore.LoadIgnoreFiles(logger, filepath.Join(root, ignore.FileName))
	if err != nil {
		logger.Error("Failed to load ignore file", zap.String("root", root), zap.Error(err))
		return nil, fmt.Errorf("failed to load ignore patterns: %w", err)
	}

	f := &Filter{gitignore: gi, patterns: patterns}
	if outputDir != "" {
		f.outputDir = relativeOutputDir(root, outputDir)
	}
	return f, nil
}

// relativeOutputDir returns outputDir relative to root, or "" when it does
// not lie inside root.
func relativeOutputDir(root, outputDir string) string {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Skip reports whether the root-relative, forward-slash path is excluded,
// and why.
func (f *Filter) Skip(relPath string, isDir bool) (bool, string) {
	if relPath == metadataDir || strings.HasPrefix(relPath, metadataDir+"/") {
		return true, "vcs metadata"
	}
	if f.outputDir != "" && (relPath == f.outputDir || strings.HasPrefix(relPath, f.outputDir+"/")) {
		return true, "output directory"
	}
	if f.gitignore.Matches(relPath, isDir) {
		return true, "ignore file"
	}
	if m := f.patterns.Match(relPath); m != nil {
		return true, "ignore pattern " + m.Source
	}
	return false, ""
}

// CollectFiles walks root depth-first and returns the root-relative,
// forward-slash paths of regular files that pass the filter. Symbolic links
// are never followed. Errors on individual entries are logged and skipped.
func CollectFiles(root string, f *Filter, logger *zap.Logger) ([]string, error) {
	var files []string
	logger.Debug("Starting file traversal and collection", zap.String("root", root))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("Error accessing path during traversal", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			logger.Warn("Unable to determine relative path", zap.String("path", path), zap.Error(err))
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if skip, reason := f.Skip(relPath, d.IsDir()); skip {
			logger.Debug("Skipping path", zap.String("path", relPath), zap.String("reason", reason))
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		files = append(files, relPath)
		return nil
	})
	if err != nil {
		logger.Error("Error during file traversal", zap.Error(err))
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	logger.Debug("Completed file traversal and collection", zap.Int("files", len(files)))
	return files, nil
}
