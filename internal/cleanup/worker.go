// Package cleanup implements the Cleanup Worker (C8): a scheduled, batched
// deletion pass over expired or cold mappings.
package cleanup

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/internal/obs"
)

// BatchDeleter is the subset of the Mapping Store the worker needs.
type BatchDeleter interface {
	DeleteBatch(ctx context.Context, accessCutoff, now time.Time, limit int) (int64, error)
}

// Worker runs one deletion pass per scheduled tick. Each batch opens its own
// short-lived write context; the worker sleeps between batches outside any
// open context to release connections back to the pool.
type Worker struct {
	store           BatchDeleter
	retention       time.Duration
	batchSize       int
	interBatchSleep time.Duration

	cron   *cron.Cron
	schedule string
}

func NewWorker(store BatchDeleter, retentionMonths, batchSize int, schedule string, interBatchSleep time.Duration) *Worker {
	return &Worker{
		store:           store,
		retention:       time.Duration(retentionMonths) * 30 * 24 * time.Hour,
		batchSize:       batchSize,
		interBatchSleep: interBatchSleep,
		cron:            cron.New(),
		schedule:        schedule,
	}
}

// Start schedules RunPass on the configured cron expression.
func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		w.RunPass(context.Background())
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	return nil
}

func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

// RunPass deletes eligible mappings in batches of batchSize until a batch
// returns fewer rows than requested. Errors abort the pass; they are logged
// and do not prevent the next scheduled pass.
func (w *Worker) RunPass(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.Add(-w.retention)

	total := int64(0)
	for {
		batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		deleted, err := w.store.DeleteBatch(batchCtx, cutoff, now, w.batchSize)
		cancel()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logrus.WithError(err).Error("cleanup: pass aborted")
			return
		}

		total += deleted
		obs.CleanupBatchesDeleted.WithLabelValues().Add(float64(deleted))

		if deleted < int64(w.batchSize) {
			break
		}

		time.Sleep(w.interBatchSleep)
	}

	logrus.WithField("deleted", total).Info("cleanup: pass complete")
}
