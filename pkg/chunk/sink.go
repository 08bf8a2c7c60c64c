package chunk

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// DirSink writes each chunk to its own file in Dir. Files are written to a
// temporary name in the same directory and renamed into place, so a chunk is
// either fully present or absent.
type DirSink struct {
	Dir      string
	PermFile os.FileMode
	PermDir  os.FileMode
}

// NewDirSink returns a DirSink with default permissions.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir, PermFile: 0o644, PermDir: 0o755}
}

// WriteChunk implements Sink.
func (s *DirSink) WriteChunk(c Chunk) error {
	if err := os.MkdirAll(s.Dir, s.PermDir); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return writeAtomic(filepath.Join(s.Dir, c.FileName()), []byte(c.Body), s.PermFile)
}

func writeAtomic(dest string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-chunk-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, perm)

	bw := bufio.NewWriterSize(tmp, 64*1024)
	if _, err := bw.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// StreamSink writes chunk bodies to W, one Write call per chunk.
type StreamSink struct {
	mu sync.Mutex
	W  io.Writer
}

// NewStreamSink returns a sink writing to w.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{W: w}
}

// WriteChunk implements Sink.
func (s *StreamSink) WriteChunk(c Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.W, c.Body)
	return err
}

// MemorySink collects chunks in memory.
type MemorySink struct {
	Chunks []Chunk
}

// WriteChunk implements Sink.
func (s *MemorySink) WriteChunk(c Chunk) error {
	s.Chunks = append(s.Chunks, c)
	return nil
}
