// Package app 按配置组装全部组件，server 与 storectl 共用。
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/inventory"
	"storefront/internal/notify"
	"storefront/internal/observability"
	"storefront/internal/order"
	"storefront/internal/queue"
	"storefront/internal/store"
)

// App 进程内的全部依赖。
type App struct {
	Config  config.AppConfig
	Log     *zap.Logger
	Metrics *observability.Metrics

	DB    *gorm.DB
	Redis *rd.Client // 未配置时为 nil

	Catalog    *catalog.Registry
	Inventory  *inventory.Store
	Orders     *order.Service
	Dispatcher *notify.Dispatcher

	bus      *queue.Bus
	producer *queue.Producer
	consumer *queue.Consumer
	relay    *queue.Relay

	wg sync.WaitGroup
}

// New 打开数据库和 Redis，并按 EVENT_TRANSPORT 选择事件投递方式。
func New(ctx context.Context, cfg config.AppConfig, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{
		Config:  cfg,
		Log:     logger,
		Metrics: observability.NewMetrics(reg),
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if cfg.RedisAddr != "" {
		rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		switch {
		case err == nil:
			a.Redis = rdb
		case cfg.EventTransport == config.TransportKafka:
			_ = rdb.Close()
			_ = store.Close(db)
			return nil, fmt.Errorf("redis ping: %w", err)
		default:
			// 限流和通知去重可以降级
			logger.Warn("redis_unavailable_degraded", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = rdb.Close()
		}
	}

	a.Catalog = catalog.NewRegistry(db)
	a.Inventory = inventory.NewStore(db, logger, a.Metrics)

	var publisher queue.Publisher
	switch cfg.EventTransport {
	case config.TransportKafka:
		publisher = queue.NewStreamPublisher(a.Redis, cfg.OrderEventStream)
	default:
		a.bus = queue.NewBus(1024, logger)
		publisher = a.bus
	}

	a.Orders = order.NewService(order.Deps{
		DB:        db,
		Products:  a.Catalog,
		Allocator: a.Inventory,
		Items:     a.Inventory,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   a.Metrics,
	})

	mailer, err := notify.New(cfg.StoreName, cfg.SMTP, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	var guard notify.Guard
	if a.Redis != nil {
		guard = notify.NewRedisGuard(a.Redis, 7*24*time.Hour)
	}
	a.Dispatcher = notify.NewDispatcher(a.Orders, a.Catalog, mailer, guard, logger, a.Metrics)
	return a, nil
}

// Start 启动后台 worker。
// memory 模式总是启动进程内总线；kafka 模式只在 consume=true（server）时启动 relay 与消费者，
// storectl 只负责把事件写进 Redis Stream。
func (a *App) Start(ctx context.Context, consume bool) {
	if a.bus != nil {
		for _, t := range []queue.EventType{queue.EventOrderPaid, queue.EventOrderFulfilled, queue.EventOrderFailed} {
			a.bus.Subscribe(t, a.Dispatcher.Handle)
		}
		a.bus.Start(ctx)
		return
	}
	if !consume {
		return
	}

	cfg := a.Config
	a.producer = queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	a.relay = queue.NewRelay(a.Redis, a.producer, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer, a.Log)
	a.consumer = queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, a.Dispatcher.Handle, a.Log)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.relay.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.consumer.Run(ctx)
	}()
	a.Log.Info("order_event_pipeline_started",
		zap.String("stream", cfg.OrderEventStream),
		zap.String("topic", cfg.KafkaTopic),
	)
}

// Close 依次停止 worker 并释放资源；ctx 限制等待总线排空的时间。
// 调用前应先取消传给 Start 的 ctx。
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.bus != nil {
		a.bus.Stop(ctx)
	}
	if a.consumer != nil {
		errs = append(errs, a.consumer.Close())
	}
	a.wg.Wait()
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, store.Close(a.DB))
	}
	return errors.Join(errs...)
}
