package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndSucceed()

	event := NewOrderEvent(
		EventTypeOrderCreated,
		"order-123",
		"retailer-1",
		"manufacturer-1",
		"new",
		map[string]interface{}{
			"total_price_minor": 10000,
		},
	)

	err := producer.PublishEvent(TopicOrderEvents, "order-123", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewOrderEvent(EventTypeOrderCreated, "order-123", "retailer-1", "manufacturer-1", "new", nil)

	err := producer.PublishEvent(TopicOrderEvents, "order-123", event)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishRaw(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndSucceed()

	err := producer.PublishRaw(TopicDeadLetterQueue, "order-123", []byte(`{"id":"order-123"}`), map[string]string{
		HeaderRetryCount:    "3",
		HeaderOriginalTopic: TopicOrderEvents,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	metadata := map[string]interface{}{
		"total_price_minor": 10000,
	}

	event := NewOrderEvent(EventTypeOrderAccepted, "order-123", "retailer-1", "manufacturer-1", "accepted", metadata)

	if event.EventType != EventTypeOrderAccepted {
		t.Errorf("expected event type %s, got %s", EventTypeOrderAccepted, event.EventType)
	}
	if event.OrderID != "order-123" {
		t.Errorf("expected order id order-123, got %s", event.OrderID)
	}
	if event.RetailerID != "retailer-1" || event.ManufacturerID != "manufacturer-1" {
		t.Errorf("unexpected parties: %s / %s", event.RetailerID, event.ManufacturerID)
	}
	if event.Status != "accepted" {
		t.Errorf("expected status accepted, got %s", event.Status)
	}
	if event.Metadata["total_price_minor"] != 10000 {
		t.Error("metadata not set correctly")
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewCartEvent(t *testing.T) {
	event := NewCartEvent(EventTypeCartItemAdded, "cart-1", "retailer-1", "product-1", 3)

	if event.EventType != EventTypeCartItemAdded {
		t.Errorf("expected event type %s, got %s", EventTypeCartItemAdded, event.EventType)
	}
	if event.CartID != "cart-1" || event.ProductID != "product-1" || event.Qty != 3 {
		t.Errorf("unexpected cart event: %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}
