package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/kafka"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/IBM/sarama"
)

// sender отправляет закодированное сообщение конкретным клиентом Kafka
type sender interface {
	send(ctx context.Context, msg kafka.Message) error
	close() error
}

// eventProducer реализует kafka.Publisher поверх sender
type eventProducer struct {
	sender sender
	log    *logger.Logger
}

// PublishOrderFulfilled публикует итог выполнения заказа
func (p *eventProducer) PublishOrderFulfilled(ctx context.Context, e kafka.OrderFulfilledEvent) error {
	return p.publish(ctx, kafka.TopicOrderFulfilled, e.OrderID, e)
}

// PublishSubscriptionActivated публикует событие об активации подписки
func (p *eventProducer) PublishSubscriptionActivated(ctx context.Context, e kafka.SubscriptionActivatedEvent) error {
	return p.publish(ctx, kafka.TopicSubscriptionActivated, e.CustomerID.String(), e)
}

// PublishAccountProvisioned публикует событие о создании учетной записи
func (p *eventProducer) PublishAccountProvisioned(ctx context.Context, e kafka.AccountProvisionedEvent) error {
	return p.publish(ctx, kafka.TopicAccountProvisioned, e.CustomerID.String(), e)
}

// PublishNotificationSent публикует событие об отправленном уведомлении
func (p *eventProducer) PublishNotificationSent(ctx context.Context, e kafka.NotificationSentEvent) error {
	return p.publish(ctx, kafka.TopicNotificationSent, e.SubscriptionID.String(), e)
}

func (p *eventProducer) publish(ctx context.Context, topic, key string, event any) error {
	msg, err := kafka.Encode(topic, key, event)
	if err != nil {
		return err
	}
	if err := p.sender.send(ctx, msg); err != nil {
		p.log.Errorw("Failed to publish event", "topic", topic, "key", key, "error", err)
		return err
	}
	return nil
}

// Close закрывает продюсер
func (p *eventProducer) Close() error {
	return p.sender.close()
}

type saramaSender struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaEventProducer создает продюсер событий поверх sarama.SyncProducer
func NewKafkaEventProducer(producer sarama.SyncProducer, log *logger.Logger) kafka.Publisher {
	return &eventProducer{
		sender: &saramaSender{producer: producer, log: log},
		log:    log,
	}
}

func (s *saramaSender) send(ctx context.Context, msg kafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Key:   sarama.ByteEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderEventType),
				Value: []byte(msg.Topic),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := s.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", msg.Topic, err)
	}

	s.log.Debugw("Published event", "topic", msg.Topic, "partition", partition, "offset", offset)
	return nil
}

func (s *saramaSender) close() error {
	return s.producer.Close()
}
