package mq

import (
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	defaultBatchSize = 32 * 1024
	defaultLingerMs  = 5
)

// NewKafkaProducer 创建终态上报用的 Kafka 生产者。
// 上报量远小于行情类场景，保持幂等与多次重试优先于吞吐。
func NewKafkaProducer(brokers string) (*kafka.Producer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"client.id":         "gmx-solana-bundler",

		// 可靠性保障
		"acks":               "all",
		"enable.idempotence": true,

		// 超时与重试
		"delivery.timeout.ms":      30000,
		"request.timeout.ms":       30000,
		"message.send.max.retries": 3,
		"retry.backoff.ms":         100,

		// 批处理
		"batch.size": defaultBatchSize,
		"linger.ms":  defaultLingerMs,

		// 允许自动创建 topic
		"allow.auto.create.topics": true,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}
