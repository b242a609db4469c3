package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/kafka"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter часть kafka-go Writer, которая нужна продюсеру
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type writerSender struct {
	writer messageWriter
	log    *logger.Logger
}

// NewWriterEventProducer создает продюсер событий на segmentio/kafka-go
func NewWriterEventProducer(brokers []string, log *logger.Logger) (kafka.Publisher, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka writer initialized", "brokers", brokers)
	return newWriterEventProducer(writer, log), nil
}

func newWriterEventProducer(w messageWriter, log *logger.Logger) kafka.Publisher {
	return &eventProducer{
		sender: &writerSender{writer: w, log: log},
		log:    log,
	}
}

func (s *writerSender) send(ctx context.Context, msg kafka.Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := s.writer.WriteMessages(writeCtx, kafkago.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: []kafkago.Header{{Key: kafka.HeaderEventType, Value: []byte(msg.Topic)}},
		Time:    time.Now(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	s.log.Debugw("Published event", "topic", msg.Topic, "key", string(msg.Key))
	return nil
}

func (s *writerSender) close() error {
	if err := s.writer.Close(); err != nil {
		s.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}
