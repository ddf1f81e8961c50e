package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu      sync.Mutex
	order   map[string][]string
	inFlight map[string]*int32
	delay   time.Duration
	overlap atomic.Bool
}

func newRecordingRunner(delay time.Duration) *recordingRunner {
	return &recordingRunner{
		order:   make(map[string][]string),
		inFlight: make(map[string]*int32),
		delay:   delay,
	}
}

func (r *recordingRunner) Process(_ context.Context, job BuildJob) error {
	r.mu.Lock()
	ctr, ok := r.inFlight[job.DocID]
	if !ok {
		ctr = new(int32)
		r.inFlight[job.DocID] = ctr
	}
	r.mu.Unlock()

	if atomic.AddInt32(ctr, 1) > 1 {
		r.overlap.Store(true)
	}
	time.Sleep(r.delay)
	atomic.AddInt32(ctr, -1)

	r.mu.Lock()
	r.order[job.DocID] = append(r.order[job.DocID], job.Filename)
	r.mu.Unlock()
	return nil
}

func (r *recordingRunner) processed(docID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order[docID]))
	copy(out, r.order[docID])
	return out
}

func TestInlineDispatcher_SameDocRunsInOrder(t *testing.T) {
	runner := newRecordingRunner(2 * time.Millisecond)
	d, err := NewInlineDispatcher(runner, 4, 32)
	require.NoError(t, err)

	ctx := context.Background()
	names := []string{"v1.txt", "v2.txt", "v3.txt", "v4.txt", "v5.txt"}
	for _, n := range names {
		require.NoError(t, d.Dispatch(ctx, BuildJob{DocID: "doc-a", Filename: n, Path: "uploads/" + n}))
	}

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(closeCtx))

	assert.Equal(t, names, runner.processed("doc-a"))
	assert.False(t, runner.overlap.Load(), "jobs for the same doc must not run concurrently")
}

func TestInlineDispatcher_CloseDrainsQueue(t *testing.T) {
	runner := newRecordingRunner(time.Millisecond)
	d, err := NewInlineDispatcher(runner, 2, 32)
	require.NoError(t, err)

	ctx := context.Background()
	docs := []string{"d1", "d2", "d3", "d4", "d5", "d6"}
	for _, id := range docs {
		require.NoError(t, d.Dispatch(ctx, BuildJob{DocID: id, Filename: id + ".txt"}))
	}

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(closeCtx))

	total := 0
	for _, id := range docs {
		total += len(runner.processed(id))
	}
	assert.Equal(t, len(docs), total)
}

func TestInlineDispatcher_DispatchAfterClose(t *testing.T) {
	runner := newRecordingRunner(0)
	d, err := NewInlineDispatcher(runner, 1, 4)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Close(ctx))
	assert.Error(t, d.Dispatch(ctx, BuildJob{DocID: "late"}))
	assert.NoError(t, d.Close(ctx))
}

func TestInlineDispatcher_NilRunner(t *testing.T) {
	_, err := NewInlineDispatcher(nil, 2, 8)
	assert.Error(t, err)
}
