// Package chunk packs ordered file entries into size-bounded chunks and
// emits them to a sink.
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DefaultMaxSize is the threshold used when none is configured.
const DefaultMaxSize = 10 * 1024 * 1024

// headerOverhead is the fixed per-file header cost added to the path length.
const headerOverhead = 10

// NoPart marks a chunk that holds whole files.
const NoPart = -1

// Entry is one file ready to be packed.
type Entry struct {
	Path     string
	Content  string
	Priority int
}

// Chunk is one packed unit of output.
type Chunk struct {
	Index    int
	Part     int // NoPart unless the chunk is a slice of a force-split file.
	Body     string
	Size     int // Measured content size in bytes or tokens.
	Overhead int // Header overhead of the files it holds.
	Files    int
}

// FileName returns the name the chunk is written under.
func (c Chunk) FileName() string {
	if c.Part == NoPart {
		return fmt.Sprintf("chunk-%d.txt", c.Index)
	}
	return fmt.Sprintf("chunk-%d-part-%d.txt", c.Index, c.Part)
}

// Sink receives finished chunks in index order.
type Sink interface {
	WriteChunk(c Chunk) error
}

// Stats summarizes a packing run.
type Stats struct {
	Chunks     int
	Files      int
	SplitFiles int
	Size       int
	Overhead   int
}

// Writer packs entries sequentially. It carries running state and must not
// be shared between goroutines.
type Writer struct {
	maxSize   int
	tokenMode bool
	sink      Sink
	logger    *zap.Logger

	buf      strings.Builder
	used     int
	overhead int
	files    int
	index    int
	stats    Stats
}

// NewWriter returns a Writer with the given threshold. A non-positive
// maxSize falls back to DefaultMaxSize.
func NewWriter(maxSize int, tokenMode bool, sink Sink, logger *zap.Logger) *Writer {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		maxSize:   maxSize,
		tokenMode: tokenMode,
		sink:      sink,
		logger:    logger,
	}
}

// Write packs entries in the order given and flushes every chunk to the sink.
// It returns the first sink error.
func (w *Writer) Write(entries []Entry) (Stats, error) {
	w.logger.Debug("Starting chunk packing",
		zap.Int("entries", len(entries)),
		zap.Int("maxSize", w.maxSize),
		zap.Bool("tokenMode", w.tokenMode))

	for _, e := range entries {
		if err := w.add(e); err != nil {
			return w.stats, err
		}
	}
	if err := w.flush(); err != nil {
		return w.stats, err
	}

	w.logger.Debug("Finished chunk packing",
		zap.Int("chunks", w.stats.Chunks),
		zap.Int("splitFiles", w.stats.SplitFiles))
	return w.stats, nil
}

func (w *Writer) add(e Entry) error {
	var tokens []string
	size := len(e.Content)
	if w.tokenMode {
		tokens = strings.Fields(e.Content)
		size = len(tokens)
	}
	overhead := headerOverhead + len(e.Path)
	w.stats.Files++

	if size >= w.maxSize {
		w.logger.Debug("File reaches chunk size, splitting",
			zap.String("path", e.Path),
			zap.Int("size", size))
		if err := w.flush(); err != nil {
			return err
		}
		w.stats.SplitFiles++
		var err error
		if w.tokenMode {
			err = w.splitTokens(e.Path, tokens, overhead)
		} else {
			err = w.splitBytes(e.Path, e.Content, overhead)
		}
		if err != nil {
			return err
		}
		// Every part of a split file shares one chunk index, giving
		// chunk-<i>-part-0.txt, chunk-<i>-part-1.txt and so on. The index
		// advances once, after the last part.
		w.index++
		return nil
	}

	if w.used+size > w.maxSize && w.buf.Len() > 0 {
		if err := w.flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(&w.buf, "chunk %d\n>>>> %s\n", w.index, e.Path)
	w.buf.WriteString(e.Content)
	w.buf.WriteByte('\n')
	w.used += size
	w.overhead += overhead
	w.files++
	return nil
}

func (w *Writer) splitBytes(path, content string, overhead int) error {
	part := 0
	for start := 0; start < len(content); part++ {
		end := sliceEnd(content, start, w.maxSize)
		if err := w.emitPart(path, part, content[start:end], end-start, overhead); err != nil {
			return err
		}
		start = end
	}
	return nil
}

func (w *Writer) splitTokens(path string, tokens []string, overhead int) error {
	part := 0
	for start := 0; start < len(tokens); part++ {
		end := min(start+w.maxSize, len(tokens))
		slice := strings.Join(tokens[start:end], " ")
		if err := w.emitPart(path, part, slice, end-start, overhead); err != nil {
			return err
		}
		start = end
	}
	return nil
}

func (w *Writer) emitPart(path string, part int, slice string, size, overhead int) error {
	body := fmt.Sprintf("chunk %d\n>>>> %s:part %d\n%s\n", w.index, path, part, slice)
	return w.emit(Chunk{
		Index:    w.index,
		Part:     part,
		Body:     body,
		Size:     size,
		Overhead: overhead,
		Files:    1,
	})
}

// flush emits the buffered whole files, if any, as one chunk.
func (w *Writer) flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	c := Chunk{
		Index:    w.index,
		Part:     NoPart,
		Body:     w.buf.String(),
		Size:     w.used,
		Overhead: w.overhead,
		Files:    w.files,
	}
	w.buf.Reset()
	w.used, w.overhead, w.files = 0, 0, 0
	if err := w.emit(c); err != nil {
		return err
	}
	w.index++
	return nil
}

func (w *Writer) emit(c Chunk) error {
	if err := w.sink.WriteChunk(c); err != nil {
		w.logger.Error("Failed to write chunk", zap.Int("index", c.Index), zap.Error(err))
		return fmt.Errorf("writing chunk %d: %w", c.Index, err)
	}
	w.logger.Debug("Wrote chunk",
		zap.Int("index", c.Index),
		zap.Int("part", c.Part),
		zap.Int("files", c.Files),
		zap.String("bytes", humanize.IBytes(uint64(len(c.Body)))))
	w.stats.Chunks++
	w.stats.Size += c.Size
	w.stats.Overhead += c.Overhead
	return nil
}

// sliceEnd returns the end of a byte slice of at most limit bytes starting at
// start, moved back to a rune boundary when one exists inside the slice.
func sliceEnd(s string, start, limit int) int {
	end := start + limit
	if end >= len(s) {
		return len(s)
	}
	for cut := end; cut > start; cut-- {
		if utf8.RuneStart(s[cut]) {
			return cut
		}
	}
	return end
}
