package usecase

import (
	"context"
	"sync"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
)

// BatchResult is the outcome for one symbol of a batch scan.
type BatchResult struct {
	Symbol  string              `json:"symbol"`
	Summary *models.ScanSummary `json:"summary,omitempty"`
	Err     error               `json:"-"`
}

// BatchScanner scans many symbols on a bounded pool of workers.
type BatchScanner struct {
	scans   *ScanUseCase
	workers int
}

func NewBatchScanner(scans *ScanUseCase, workers int) *BatchScanner {
	if workers < 1 {
		workers = 1
	}
	return &BatchScanner{scans: scans, workers: workers}
}

// ScanAll scans every symbol and returns results in input order. A failed
// symbol carries its error and does not stop the others.
func (b *BatchScanner) ScanAll(ctx context.Context, symbols []string, tf domrepo.Timeframe, limit int) []BatchResult {
	results := make([]BatchResult, len(symbols))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < b.workers && w < len(symbols); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sum, err := b.scans.Scan(ctx, ScanParams{Symbol: symbols[i], TF: tf, Limit: limit})
				results[i] = BatchResult{Symbol: symbols[i], Summary: sum, Err: err}
			}
		}()
	}

	for i := range symbols {
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = BatchResult{Symbol: symbols[i], Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()
	return results
}
