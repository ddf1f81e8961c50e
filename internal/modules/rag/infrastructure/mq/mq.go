package mq

import "context"

// Event 一条待投递的事件。
// PartitionKey 决定分区归属，同 key 的事件保证投递顺序；
// Attributes 随消息头透传，不参与分区。
type Event struct {
	PartitionKey string
	Payload      []byte
	Attributes   map[string]string
}

// Ack 发布确认，记录事件落到的分区与位点
type Ack struct {
	Partition int32
	Offset    int64
}

// Publisher 绑定到单一 topic 的事件发布端
type Publisher interface {
	Publish(ctx context.Context, ev Event) (Ack, error)
	Close() error
}

// Handler 消费回调。返回 error 表示处理失败，位点不提交。
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type Consumer interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}
