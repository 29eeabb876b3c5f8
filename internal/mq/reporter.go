// Package mq 把交易终态发布到 Kafka，供下游（风控、对账、通知）消费。
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/gmsol-labs/gmx-solana/pkg/engine"
)

const defaultSendTimeout = 5 * time.Second

// OutcomeEvent 是发布到 Kafka 的终态消息体。
type OutcomeEvent struct {
	BundleID  string   `json:"bundle_id"`
	Seq       int      `json:"seq"`
	Status    string   `json:"status"`
	Signature string   `json:"signature,omitempty"`
	Error     string   `json:"error,omitempty"`
	Logs      []string `json:"logs,omitempty"`
	Timestamp int64    `json:"ts"` // Unix 秒
}

// KafkaReporter 是 engine.Reporter 的 Kafka 实现。
type KafkaReporter struct {
	producer *kafka.Producer
	topic    string
	timeout  time.Duration
}

// NewKafkaReporter 创建上报器。timeout 为 0 时使用默认值。
func NewKafkaReporter(producer *kafka.Producer, topic string, timeout time.Duration) *KafkaReporter {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &KafkaReporter{producer: producer, topic: topic, timeout: timeout}
}

// ReportOutcome 同步发送一条终态消息并等待 ack。
func (r *KafkaReporter) ReportOutcome(ctx context.Context, bundleID string, outcome engine.Outcome) error {
	event := OutcomeEvent{
		BundleID:  bundleID,
		Seq:       outcome.Seq,
		Status:    outcome.Status.String(),
		Signature: outcome.Signature,
		Logs:      outcome.Logs,
		Timestamp: time.Now().Unix(),
	}
	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = r.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &r.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(bundleID), // 同 bundle 的消息落同一分区，保持顺序
		Value: value,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("produce error: %w", err)
	}

	select {
	case e, ok := <-deliveryChan:
		if !ok {
			return fmt.Errorf("delivery channel closed unexpectedly")
		}
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("invalid message type: %T", e)
		}
		if msg.TopicPartition.Error != nil {
			return msg.TopicPartition.Error
		}
		return nil
	case <-time.After(r.timeout):
		go safeDrain(deliveryChan)
		return fmt.Errorf("delivery timeout (>%v)", r.timeout)
	case <-ctx.Done():
		go safeDrain(deliveryChan)
		return fmt.Errorf("ctx cancelled: %w", ctx.Err())
	}
}

// safeDrain 确保 deliveryChan 被 drain，避免 Kafka 回调阻塞。
func safeDrain(ch <-chan kafka.Event) {
	defer func() {
		_ = recover()
	}()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
	}
}
