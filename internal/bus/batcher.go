package bus

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/internal/obs"
)

// RawEventWriter bulk-inserts a drained buffer of click events into the raw
// events table in a single write context.
type RawEventWriter interface {
	InsertBatch(ctx context.Context, events []ClickEvent) error
}

// Batcher is the only intra-service shared mutable state in the Stats
// service: an in-memory buffer protected by a single mutex, drained either
// when it reaches batchSize or every flushInterval, whichever comes first.
type Batcher struct {
	mu     sync.Mutex
	buffer []ClickEvent

	writer        RawEventWriter
	batchSize     int
	flushInterval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewBatcher(writer RawEventWriter, batchSize int, flushInterval time.Duration) *Batcher {
	return &Batcher{
		writer:        writer,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make([]ClickEvent, 0, batchSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start runs the interval-triggered flush loop until Stop is called.
func (b *Batcher) Start(ctx context.Context) {
	go func() {
		defer close(b.doneCh)
		ticker := time.NewTicker(b.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				b.Flush(ctx)
			case <-b.stopCh:
				b.Flush(ctx) // final flush on graceful shutdown
				return
			}
		}
	}()
}

// Stop signals the flush loop to drain and exit, waiting for it to finish.
func (b *Batcher) Stop() {
	close(b.stopCh)
	<-b.doneCh
}

// Append adds event to the buffer, triggering an immediate flush if the
// buffer has reached batchSize.
func (b *Batcher) Append(ctx context.Context, event ClickEvent) {
	b.mu.Lock()
	b.buffer = append(b.buffer, event)
	full := len(b.buffer) >= b.batchSize
	obs.BatcherBufferSize.Set(float64(len(b.buffer)))
	b.mu.Unlock()

	if full {
		b.Flush(ctx)
	}
}

// Flush atomically drains the buffer and bulk-inserts it. On failure the
// batch is logged for out-of-band recovery rather than re-buffered, so a
// persistently failing writer cannot grow the buffer without bound.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	drained := b.buffer
	b.buffer = make([]ClickEvent, 0, b.batchSize)
	obs.BatcherBufferSize.Set(0)
	b.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.writer.InsertBatch(flushCtx, drained); err != nil {
		logrus.WithError(err).WithField("batch_size", len(drained)).Error("bus: batch flush failed, events dropped")
	}
}
