package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/lifecycle"
)

// createEngine собирает движок жизненного цикла заказов с Kafka или без,
// в зависимости от наличия producer.
func createEngine(
	deps runtimeDependencies,
	inventoryClient domain.InventoryClient,
	userDirectory domain.UserDirectory,
	producer *kafka.Producer,
	logger *log.Entry,
) *lifecycle.Engine {
	if producer != nil {
		return lifecycle.NewEngineWithKafka(
			deps.repo,
			deps.cartRepo,
			deps.outboxRepo,
			deps.timelineRepo,
			inventoryClient,
			userDirectory,
			producer,
			logger,
		)
	}

	return lifecycle.NewEngine(
		deps.repo,
		deps.cartRepo,
		deps.outboxRepo,
		deps.timelineRepo,
		inventoryClient,
		userDirectory,
		logger,
	)
}
