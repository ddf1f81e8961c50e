package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"ReqGraph/internal/modules/rag/infrastructure/mq"
)

// KafkaDispatcher 把构建任务作为事件发出，由 BuildConsumerWorker 消费。
// 分区 key 取 doc_id，同一文档的事件保证顺序。
type KafkaDispatcher struct {
	pub mq.Publisher
}

func NewKafkaDispatcher(pub mq.Publisher) (*KafkaDispatcher, error) {
	if pub == nil {
		return nil, errors.New("publisher is nil")
	}
	return &KafkaDispatcher{pub: pub}, nil
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, job BuildJob) error {
	if strings.TrimSpace(job.DocID) == "" {
		return errors.New("build job missing doc_id")
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	_, err = d.pub.Publish(ctx, mq.Event{
		PartitionKey: job.DocID,
		Payload:      payload,
		Attributes: map[string]string{
			"filename": job.Filename,
		},
	})
	return err
}

func (d *KafkaDispatcher) Close(ctx context.Context) error {
	if d == nil || d.pub == nil {
		return nil
	}
	return d.pub.Close()
}
