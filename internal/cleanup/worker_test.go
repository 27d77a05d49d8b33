package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeDeleter struct {
	remaining int64
	calls     int
}

func (f *fakeDeleter) DeleteBatch(ctx context.Context, accessCutoff, now time.Time, limit int) (int64, error) {
	f.calls++
	n := f.remaining
	if n > int64(limit) {
		n = int64(limit)
	}
	f.remaining -= n
	return n, nil
}

func TestRunPassStopsWhenBatchUndersized(t *testing.T) {
	deleter := &fakeDeleter{remaining: 250}
	w := NewWorker(deleter, 6, 100, "0 3 * * *", time.Millisecond)

	w.RunPass(context.Background())

	assert.Equal(t, 3, deleter.calls) // 100, 100, 50
	assert.Equal(t, int64(0), deleter.remaining)
}

func TestRunPassTerminatesOnEmptyStore(t *testing.T) {
	deleter := &fakeDeleter{remaining: 0}
	w := NewWorker(deleter, 6, 100, "0 3 * * *", time.Millisecond)

	w.RunPass(context.Background())

	assert.Equal(t, 1, deleter.calls)
}
