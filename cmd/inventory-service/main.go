// cmd/inventory-service/main.go
package main

import (
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"stockpile/internal/pkg/bootstrap"
	"stockpile/internal/pkg/logger"
	"stockpile/internal/pkg/mq"
	"stockpile/internal/pkg/redis"
	"stockpile/internal/service/inventory/application"
	"stockpile/internal/service/inventory/domain/port"
	"stockpile/internal/service/inventory/infrastructure"
	"stockpile/internal/service/inventory/infrastructure/adapter"
	"stockpile/internal/service/inventory/infrastructure/rule"
	"stockpile/internal/service/inventory/interfaces"
)

const (
	serviceName = "inventory-service"
	servicePort = 8082
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	// 1. 事务型存储：不超卖的正确性都压在这上面
	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	repo := infrastructure.NewGormReservationRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	// 2. 可选外围：可售量缓存、生命周期事件、预占策略
	var cache port.AvailabilityCache
	if cfg.Infra.Redis.Addr != "" {
		redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		cache = adapter.NewAvailabilityRedisAdapter(redisClient)
	}

	var events port.EventPublisher
	if len(cfg.Infra.Kafka.Brokers) > 0 && cfg.Infra.Kafka.Brokers[0] != "" {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.ReservationEventsTopic)
		events = adapter.NewEventKafkaAdapter(writer)
	}

	var policy port.ReservationPolicy
	if cfg.App.ReservationPolicy != "" {
		policy, err = rule.NewCELPolicyAdapter(cfg.App.ReservationPolicy)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("invalid reservation policy")
		}
	}

	// 3. 组装应用服务和 HTTP 接口，交给 bootstrap 统一启动
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			service := application.NewReservationService(
				repo,
				otel.Tracer(serviceName),
				cfg.App.ReservationTimeout(),
				cache,
				events,
				policy,
			)
			interfaces.NewInventoryHandler(service).RegisterRoutes(appCtx.Mux)
			interfaces.NewAvailabilityWSHandler(service).RegisterRoutes(appCtx.Mux)
		},
	})
}
