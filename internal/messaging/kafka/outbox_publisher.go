package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

// OutboxTopicPublisher отправляет сообщения transactional outbox в Kafka.
// Основной topic задаётся при создании, события корзины уходят в отдельный
// topic по aggregate_type, чтобы consumer-ы заказов не разбирали чужие события.
type OutboxTopicPublisher struct {
	producer   *Producer
	orderTopic string
	cartTopic  string
}

// NewOutboxPublisher создаёт паблишер поверх Kafka-продюсера. Пустой topic
// заменяется на topic событий заказов.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer:   producer,
		orderTopic: topic,
		cartTopic:  TopicCartEvents,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	// Ключ партиционирования: события одного заказа (или корзины) должны
	// попадать в одну партицию и сохранять порядок.
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topicFor(event), key, envelope)
}

func (p *OutboxTopicPublisher) topicFor(event domain.OutboxMessage) string {
	if event.AggregateType == "cart" {
		return p.cartTopic
	}
	return p.orderTopic
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
