package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"ReqGraph/internal/modules/rag/infrastructure/mq"
	"ReqGraph/pkg/zlog"

	"go.uber.org/zap"
)

// BuildConsumerWorker 消费 kafka 构建事件并执行 BuildRunner。
// 解析失败或文档缺失直接丢弃，构建失败已在文档状态里记录，不重投。
type BuildConsumerWorker struct {
	consumer mq.Consumer
	runner   JobRunner
}

func NewBuildConsumerWorker(consumer mq.Consumer, runner JobRunner) *BuildConsumerWorker {
	return &BuildConsumerWorker{consumer: consumer, runner: runner}
}

func (w *BuildConsumerWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return errors.New("consumer is nil")
	}
	if w.runner == nil {
		return errors.New("runner is nil")
	}
	return w.consumer.Run(ctx, w)
}

func (w *BuildConsumerWorker) Handle(ctx context.Context, ev mq.Event) error {
	var job BuildJob
	if err := json.Unmarshal(ev.Payload, &job); err != nil {
		zlog.Warn("rag build consumer invalid payload", zap.String("key", ev.PartitionKey), zap.Error(err))
		return nil
	}
	if strings.TrimSpace(job.DocID) == "" {
		zlog.Warn("rag build consumer missing doc_id", zap.String("key", ev.PartitionKey))
		return nil
	}

	if err := w.runner.Process(ctx, job); err != nil {
		zlog.Warn("rag build consumer process failed",
			zap.String("doc_id", job.DocID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (w *BuildConsumerWorker) Close() error {
	if w == nil || w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}
