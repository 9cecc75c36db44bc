package events

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-registration"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of *kafka.Writer used by the publisher.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes events to a kafka topic keyed by account id, so
// events of one account stay ordered.
type KafkaPublisher struct {
	writer KafkaWriter
}

var _ registration.EventBus = (*KafkaPublisher)(nil)

func NewKafkaPublisher(writer KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Emit(ctx context.Context, evt registration.Event) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(evt.AccountID),
		Value: data,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(evt.Name)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to publish event to kafka")
	}
	return nil
}

// NewKafkaWriter returns a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}
