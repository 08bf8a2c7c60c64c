package serialize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"srcchunk/pkg/chunk"
	"srcchunk/pkg/priority"
)

// Processor turns a collected path into an entry.
type Processor struct {
	root             string
	binaryExtensions []string
	engine           *priority.Engine
}

// NewProcessor returns a Processor reading files under root.
func NewProcessor(root string, binaryExtensions []string, engine *priority.Engine) *Processor {
	return &Processor{root: root, binaryExtensions: binaryExtensions, engine: engine}
}

// errBinary marks files that were skipped because they are binary.
var errBinary = errors.New("binary file")

// ProcessSingleFile reads, decodes and scores one root-relative file.
func (p *Processor) ProcessSingleFile(relPath string, logger *zap.Logger) (chunk.Entry, error) {
	fullPath := filepath.Join(p.root, filepath.FromSlash(relPath))

	isBinary, err := IsBinary(fullPath, p.binaryExtensions)
	if err != nil {
		return chunk.Entry{}, fmt.Errorf("error checking file %s: %w", relPath, err)
	}
	if isBinary {
		return chunk.Entry{}, errBinary
	}

	fileBytes, err := os.ReadFile(fullPath)
	if err != nil {
		return chunk.Entry{}, fmt.Errorf("error reading file %s: %w", relPath, err)
	}

	entry := chunk.Entry{
		Path:     relPath,
		Content:  strings.ToValidUTF8(string(fileBytes), "\uFFFD"),
		Priority: p.engine.Score(relPath),
	}
	logger.Debug("Processed file",
		zap.String("path", relPath),
		zap.Int("sizeBytes", len(fileBytes)),
		zap.Int("priority", entry.Priority))
	return entry, nil
}

// SortEntries orders entries by ascending priority, then path.
func SortEntries(entries []chunk.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority < entries[j].Priority
		}
		return entries[i].Path < entries[j].Path
	})
}
