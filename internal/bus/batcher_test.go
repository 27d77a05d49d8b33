package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]ClickEvent
}

func (f *fakeWriter) InsertBatch(ctx context.Context, events []ClickEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]ClickEvent, len(events))
	copy(cp, events)
	f.batches = append(f.batches, cp)
	return nil
}

func TestBatcherFlushesAtBatchSize(t *testing.T) {
	writer := &fakeWriter{}
	b := NewBatcher(writer, 3, time.Hour)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b.Append(ctx, ClickEvent{ShortCode: "abc"})
	}

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.batches, 1)
	assert.Len(t, writer.batches[0], 3)
}

func TestBatcherFinalFlushOnStop(t *testing.T) {
	writer := &fakeWriter{}
	b := NewBatcher(writer, 100, time.Hour)
	b.Start(context.Background())

	b.Append(context.Background(), ClickEvent{ShortCode: "xyz"})
	b.Stop()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.batches, 1)
	assert.Len(t, writer.batches[0], 1)
}

func TestSyntheticGeoResolverIsDeterministic(t *testing.T) {
	r := NewSyntheticGeoResolver()
	c1, city1 := r.Resolve("203.0.113.5")
	c2, city2 := r.Resolve("203.0.113.5")
	assert.Equal(t, c1, c2)
	assert.Equal(t, city1, city2)
}
