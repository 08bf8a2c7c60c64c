// File: pkg/serialize/worker.go
package serialize

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"srcchunk/pkg/chunk"
)

// ProcessFilesConcurrently processes files using a worker pool and returns
// the resulting entries in no particular order. Binary and unreadable files
// are left out.
func ProcessFilesConcurrently(ctx context.Context, files []string, maxWorkers int, p *Processor, logger *zap.Logger) ([]chunk.Entry, error) {
	jobs := make(chan string, len(files))
	results := make(chan chunk.Entry, len(files))
	var wg sync.WaitGroup

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
		logger.Debug("Adjusted worker count", zap.Int("workers", maxWorkers))
	}

	logger.Debug("Initializing worker pool", zap.Int("workers", maxWorkers))
	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go worker(ctx, jobs, results, p, &wg, logger.With(zap.Int("workerID", w)))
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	entries := make([]chunk.Entry, 0, len(files))
	for entry := range results {
		entries = append(entries, entry)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Debug("All files processed", zap.Int("processedFiles", len(entries)))
	return entries, nil
}

// worker is a goroutine that processes files from the jobs channel.
func worker(ctx context.Context, jobs <-chan string, results chan<- chunk.Entry, p *Processor, wg *sync.WaitGroup, logger *zap.Logger) {
	defer wg.Done()

	for file := range jobs {
		if ctx.Err() != nil {
			continue
		}
		entry, err := p.ProcessSingleFile(file, logger)
		if err != nil {
			if errors.Is(err, errBinary) {
				logger.Debug("Skipping binary file", zap.String("path", file))
			} else {
				logger.Debug("Skipping unreadable file", zap.String("path", file), zap.Error(err))
			}
			continue
		}
		results <- entry
	}
}
