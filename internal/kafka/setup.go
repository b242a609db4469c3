package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
)

// RequiredTopics топики, которые сервис публикует
func RequiredTopics() []kafkaGo.TopicConfig {
	return []kafkaGo.TopicConfig{
		{Topic: TopicOrderFulfilled, NumPartitions: 3, ReplicationFactor: 1},
		{Topic: TopicSubscriptionActivated, NumPartitions: 3, ReplicationFactor: 1},
		{Topic: TopicAccountProvisioned, NumPartitions: 1, ReplicationFactor: 1},
		{Topic: TopicNotificationSent, NumPartitions: 1, ReplicationFactor: 1},
	}
}

// topicAdmin операции брокера, нужные для создания топиков
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafkaGo.Partition, error)
	CreateTopics(topics ...kafkaGo.TopicConfig) error
	Close() error
}

// dialAdmin подключается к контроллеру кластера: создавать топики может только он
var dialAdmin = func(ctx context.Context, broker string) (topicAdmin, error) {
	conn, err := kafkaGo.DialContext(ctx, "tcp", broker)
	if err != nil {
		return nil, err
	}
	controller, err := conn.Controller()
	_ = conn.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to find kafka controller: %w", err)
	}
	return kafkaGo.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
}

// EnsureTopics проверяет и создает необходимые топики Kafka
func EnsureTopics(ctx context.Context, brokers []string, log *logger.Logger) error {
	if len(brokers) == 0 || strings.TrimSpace(brokers[0]) == "" {
		return errors.New("kafka broker address is empty")
	}
	broker := strings.TrimSpace(brokers[0])
	if _, _, err := net.SplitHostPort(broker); err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := dialAdmin(connCtx, broker)
	if err != nil {
		log.Errorw("Failed to connect to Kafka broker for topic creation", "broker", broker, "error", err)
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	return ensureTopics(conn, RequiredTopics(), log)
}

func ensureTopics(conn topicAdmin, required []kafkaGo.TopicConfig, log *logger.Logger) error {
	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}

	existing := make(map[string]bool)
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	var toCreate []kafkaGo.TopicConfig
	for _, tc := range required {
		if !existing[tc.Topic] {
			toCreate = append(toCreate, tc)
		}
	}
	if len(toCreate) == 0 {
		log.Info("All required topics already exist")
		return nil
	}

	names := topicNames(toCreate)
	log.Infow("Creating Kafka topics", "topics", names)
	if err := conn.CreateTopics(toCreate...); err != nil {
		if errors.Is(err, kafkaGo.TopicAlreadyExists) {
			log.Warnw("One or more topics already existed during creation attempt", "topics", names)
			return nil
		}
		return fmt.Errorf("kafka create topics failed: %w", err)
	}
	return nil
}

func topicNames(configs []kafkaGo.TopicConfig) []string {
	names := make([]string, 0, len(configs))
	for _, tc := range configs {
		names = append(names, tc.Topic)
	}
	slices.Sort(names)
	return names
}
