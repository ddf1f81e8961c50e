package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"ReqGraph/pkg/zlog"

	"go.uber.org/zap"
)

// InlineDispatcher 进程内工作池。任务按 doc_id 哈希到固定 worker，
// 同一文档的构建顺序执行，不同文档可并行。
type InlineDispatcher struct {
	runner  JobRunner
	queues  []chan BuildJob
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func NewInlineDispatcher(runner JobRunner, workers int, queueDepth int) (*InlineDispatcher, error) {
	if runner == nil {
		return nil, errors.New("job runner is nil")
	}
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &InlineDispatcher{
		runner:  runner,
		queues:  make([]chan BuildJob, workers),
		baseCtx: ctx,
		cancel:  cancel,
	}

	for i := range d.queues {
		d.queues[i] = make(chan BuildJob, queueDepth)
		d.wg.Add(1)
		go d.workerLoop(i)
	}
	return d, nil
}

func (d *InlineDispatcher) workerLoop(idx int) {
	defer d.wg.Done()
	for job := range d.queues[idx] {
		if err := d.runner.Process(d.baseCtx, job); err != nil {
			zlog.Warn("rag build worker process failed",
				zap.Int("worker", idx),
				zap.String("doc_id", job.DocID),
				zap.Error(err),
			)
		}
	}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, job BuildJob) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("dispatcher closed")
	}
	q := d.queues[d.pick(job.DocID)]
	d.mu.Unlock()

	select {
	case q <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *InlineDispatcher) pick(docID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(docID))
	return int(h.Sum32() % uint32(len(d.queues)))
}

// Close 停止接收新任务，等队列里的任务跑完或 ctx 超时
func (d *InlineDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}
