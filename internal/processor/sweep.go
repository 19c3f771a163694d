package processor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SweepResult summarizes one batch recomputation pass.
type SweepResult struct {
	EntitiesFound int           `json:"entities_found"`
	Evaluated     int           `json:"evaluated"`
	Skipped       int           `json:"skipped"`
	Triggered     int           `json:"triggered"`
	Suppressed    int           `json:"suppressed"`
	Errors        []string      `json:"errors,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// RunSweep recomputes every entity due for recalculation, fanning the batch
// out over a bounded worker pool. Cancellation is honoured between
// entities; a single entity's evaluation always runs to completion.
func (p *Processor) RunSweep(ctx context.Context) SweepResult {
	start := time.Now()
	var result SweepResult

	due, err := p.store.EntitiesDueForRecalc(ctx, p.recalcInterval, p.sweepBatchSize)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		return result
	}

	result.EntitiesFound = len(due)
	if len(due) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	workers := p.sweepWorkers
	if workers > len(due) {
		workers = len(due)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	work := make(chan uuid.UUID)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entityID := range work {
				outcome, err := p.EvaluateEntity(ctx, entityID, false)

				mu.Lock()
				switch {
				case err != nil:
					result.Errors = append(result.Errors, err.Error())
					p.logger.Error("sweep evaluation failed", "entity_id", entityID, "error", err)
				case outcome.Skipped:
					result.Skipped++
				default:
					result.Evaluated++
					if outcome.Trigger.ShouldTrigger {
						if outcome.Suppressed {
							result.Suppressed++
						} else {
							result.Triggered++
						}
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, entityID := range due {
		select {
		case work <- entityID:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	result.Duration = time.Since(start)
	return result
}

// StartSweepWorker runs the recalculation sweep on an interval until ctx is
// cancelled. Intended to be called with `go`.
func (p *Processor) StartSweepWorker(ctx context.Context) {
	p.logger.Info("sweep worker started", "interval", p.sweepInterval)
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res := p.RunSweep(ctx)
			if res.EntitiesFound > 0 || len(res.Errors) > 0 {
				p.logger.Info("sweep finished",
					"found", res.EntitiesFound,
					"evaluated", res.Evaluated,
					"skipped", res.Skipped,
					"triggered", res.Triggered,
					"suppressed", res.Suppressed,
					"errors", len(res.Errors),
					"duration", res.Duration.Round(time.Millisecond),
				)
			}
		case <-ctx.Done():
			p.logger.Info("sweep worker stopped")
			return
		}
	}
}
