package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"ReqGraph/internal/modules/rag/infrastructure/mq"

	"github.com/IBM/sarama"
)

type PublisherConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

type saramaPublisher struct {
	p     sarama.SyncProducer
	topic string
}

func NewSaramaPublisher(cfg PublisherConfig) (mq.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, errors.New("kafka topic is empty")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 10
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	// Hash 分区器保证同一 PartitionKey 的事件有序
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.ClientID = strings.TrimSpace(cfg.ClientID)

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return &saramaPublisher{p: p, topic: topic}, nil
}

func (s *saramaPublisher) Publish(ctx context.Context, ev mq.Event) (mq.Ack, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return mq.Ack{}, ctx.Err()
		default:
		}
	}
	if strings.TrimSpace(ev.PartitionKey) == "" {
		return mq.Ack{}, errors.New("event partition key is empty")
	}

	m := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(ev.PartitionKey),
		Value: sarama.ByteEncoder(ev.Payload),
	}

	if len(ev.Attributes) > 0 {
		m.Headers = make([]sarama.RecordHeader, 0, len(ev.Attributes))
		for k, v := range ev.Attributes {
			kk := strings.TrimSpace(k)
			if kk == "" {
				continue
			}
			m.Headers = append(m.Headers, sarama.RecordHeader{
				Key:   []byte(kk),
				Value: []byte(v),
			})
		}
	}

	partition, offset, err := s.p.SendMessage(m)
	if err != nil {
		return mq.Ack{}, err
	}
	return mq.Ack{Partition: partition, Offset: offset}, nil
}

func (s *saramaPublisher) Close() error {
	if s == nil || s.p == nil {
		return nil
	}
	return s.p.Close()
}
