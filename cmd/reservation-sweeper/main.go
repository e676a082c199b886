// cmd/reservation-sweeper/main.go
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"stockpile/internal/pkg/bootstrap"
	"stockpile/internal/pkg/logger"
	"stockpile/internal/pkg/mq"
	"stockpile/internal/service/inventory/application"
	"stockpile/internal/service/inventory/domain/port"
	"stockpile/internal/service/inventory/infrastructure"
	"stockpile/internal/service/inventory/infrastructure/adapter"
	"stockpile/internal/tracing"
	"stockpile/internal/zookeeper"
)

const (
	serviceName = "reservation-sweeper"
	metricsAddr = ":8092"

	// 多副本部署时竞争的锁资源名
	sweepLockResource = "reservation-sweeper"
)

// Sweeper 周期性地执行过期清扫。
// 清扫本身是幂等的，锁只是避免多副本每个周期都空跑一次批量 UPDATE。
type Sweeper struct {
	service  *application.ReservationService
	interval time.Duration
	zkConn   *zookeeper.Conn // 可为 nil，未配置 ZooKeeper 时不加锁
}

// Run 启动清扫循环，直到 ctx 被取消。
func (s *Sweeper) Run(ctx context.Context) error {
	logger.Logger.Info().Msgf("sweep loop started, checking every %v", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(ctx)
		case <-ctx.Done():
			logger.Logger.Info().Msg("sweep loop stopped")
			return ctx.Err()
		}
	}
}

// sweepOnce 执行一轮清扫。失败只记日志，等下一个周期重试。
func (s *Sweeper) sweepOnce(ctx context.Context) {
	if s.zkConn != nil {
		lock, err := zookeeper.NewDistributedLock(s.zkConn, sweepLockResource)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("failed to create sweep lock, skipping this tick")
			return
		}
		if err := lock.Lock(); err != nil {
			logger.Logger.Error().Err(err).Msg("failed to acquire sweep lock, skipping this tick")
			return
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Logger.Error().Err(err).Msg("failed to release sweep lock")
			}
		}()
	}

	if _, err := s.service.ExpireSweep(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("expiration sweep failed, will retry on next tick")
	}
}

func main() {
	bootstrap.Init()
	logger.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	repo := infrastructure.NewGormReservationRepository(db)

	var events port.EventPublisher
	if len(cfg.Infra.Kafka.Brokers) > 0 && cfg.Infra.Kafka.Brokers[0] != "" {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.ReservationEventsTopic)
		events = adapter.NewEventKafkaAdapter(writer)
	}

	var zkConn *zookeeper.Conn
	if len(cfg.Infra.Zookeeper.Addrs) > 0 {
		zkConn, err = zookeeper.Connect(cfg.Infra.Zookeeper.Addrs, 10*time.Second)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		defer zkConn.Close()
	}

	// 清扫器不走结账路径，不需要缓存和策略
	service := application.NewReservationService(
		repo,
		otel.Tracer(serviceName),
		cfg.App.ReservationTimeout(),
		nil,
		events,
		nil,
	)

	sweeper := &Sweeper{
		service:  service,
		interval: cfg.App.SweepInterval(),
		zkConn:   zkConn,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: metricsAddr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Logger.Fatal().Err(err).Msg("sweeper exited with error")
	}
	logger.Logger.Info().Msg("reservation-sweeper gracefully shut down")
}
