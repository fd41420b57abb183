package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/messaging/kafka"
)

// initKafkaProducer поднимает Kafka producer для публикации событий заказов.
// Пустой список brokers означает запуск без Kafka: outbox-воркер продолжает
// помечать сообщения отправленными, просто никуда их не публикуя.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := parseBrokerList(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// parseBrokerList разбирает список brokers из env: запятые, пробелы и
// хвостовые разделители допустимы.
func parseBrokerList(brokers string) []string {
	var list []string
	for _, broker := range strings.Split(brokers, ",") {
		broker = strings.TrimSpace(broker)
		if broker != "" {
			list = append(list, broker)
		}
	}
	return list
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
