package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/legalhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

// RetrainJobMessage 重训任务消息
type RetrainJobMessage struct {
	UserID      string    `json:"user_id"`
	DatasetKey  string    `json:"dataset_key"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Producer 重训任务生产者
type Producer interface {
	PublishRetrainJob(msg RetrainJobMessage) error
	Close() error
}

type saramaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer 创建Kafka同步生产者
func NewProducer(brokers []string, topic string) (Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &saramaProducer{producer: producer, topic: topic}, nil
}

func (p *saramaProducer) PublishRetrainJob(msg RetrainJobMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal retrain job: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.UserID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to publish retrain job: %w", err)
	}

	logger.Info("Retrain job published",
		zap.String("user_id", msg.UserID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (p *saramaProducer) Close() error {
	return p.producer.Close()
}

// NoopProducer Kafka未启用时的空实现
type NoopProducer struct{}

func (NoopProducer) PublishRetrainJob(msg RetrainJobMessage) error { return nil }

func (NoopProducer) Close() error { return nil }
