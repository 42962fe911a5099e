package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	"PatternPull/pkg/queue"
	"PatternPull/pkg/util"
)

// ScanJobType is the queue message type for a single-symbol scan.
const ScanJobType = "scan.symbol"

// ScanJob runs queued scans.
type ScanJob struct {
	scans *ScanUseCase
}

func NewScanJob(scans *ScanUseCase) *ScanJob {
	return &ScanJob{scans: scans}
}

func (j *ScanJob) Name() string { return "scan" }

func (j *ScanJob) Type() string { return ScanJobType }

func (j *ScanJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[models.ScanJobPayload](payload)
	if err != nil {
		return err
	}
	_, err = j.scans.Scan(ctx, ScanParams{
		Symbol:  p.Symbol,
		TF:      domrepo.NormalizeTimeframe(p.TF),
		Limit:   p.Limit,
		Refresh: true,
	})
	if err != nil {
		return fmt.Errorf("scan job %s: %w", p.Symbol, err)
	}
	return nil
}

// EnqueueScans queues one job per symbol and returns the job ids in order.
func EnqueueScans(ctx context.Context, pub queue.Publisher, req models.ScanJobRequest) ([]string, error) {
	ids := make([]string, 0, len(req.Symbols))
	tf := string(domrepo.NormalizeTimeframe(req.TF))
	for _, sym := range req.Symbols {
		sym = util.NormalizeSymbol(sym)
		id, err := pub.Enqueue(ctx, ScanJobType, models.ScanJobPayload{Symbol: sym, TF: tf, Limit: req.Limit})
		if err != nil {
			return ids, fmt.Errorf("enqueue %s: %w", sym, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var _ queue.Job = (*ScanJob)(nil)
