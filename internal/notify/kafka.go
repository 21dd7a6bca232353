package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
)

// MessageWriter is the part of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReceiptSink publishes one receipt event per order, keyed by order id.
type KafkaReceiptSink struct {
	writer MessageWriter
	topic  string
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaReceiptSink(writer MessageWriter, topic string) *KafkaReceiptSink {
	return &KafkaReceiptSink{writer: writer, topic: topic}
}

func (s *KafkaReceiptSink) SendReceipt(ctx context.Context, order domain.Order, orderID string) error {
	const op = "notify.KafkaReceiptSink.SendReceipt"

	payload, err := json.Marshal(NewReceiptEvent(order, orderID))
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	msg := kafka.Message{
		Key:   []byte(orderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("order.receipt")},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug(ctx, "receipt published", logger.String("topic", s.topic), logger.String("order_id", orderID))
	return nil
}

func (s *KafkaReceiptSink) Close() error {
	return s.writer.Close()
}
