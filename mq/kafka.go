package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaSink writes events to a topic, keyed by entity id so every event
// about one order lands on the same partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Net.DialTimeout = 30 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, topic), nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(_ context.Context, key string, data []byte) error {
	_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("send to topic %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
