package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/handler/api"
	"FinCast/internal/handler/ws"
	internalrepo "FinCast/internal/repository"
	svcmetrics "FinCast/internal/service/metrics"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/services/ensemble"
	"FinCast/internal/services/forecasters"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	"FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/queue"
	"FinCast/pkg/server"
	"FinCast/pkg/tracing"
)

const initTimeout = 10 * time.Second

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideTracing installs the global tracer provider.
func ProvideTracing(cfg *config.Config) (tracing.ShutdownFunc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	return tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Environment,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSeriesStore creates the ClickHouse series store and applies its schema.
func ProvideSeriesStore(ch *pkgch.Client, cfg *config.Config, log *logger.Logger) (repository.SeriesStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSeriesStore(ch, cfg.ClickHouse.ForecastTable, log.With(logger.String("component", "series_store")))

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := ch.InitSchema(ctx, store.Schema()); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideForecastPublisher wraps the producer for the result topic.
func ProvideForecastPublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaForecastPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.ResultTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log.With(logger.String("component", "kafka_consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedisClient connects to Redis, or returns nil when disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	client, err := cache.NewRedisClient(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return client, nil
}

// ProvideCache builds an in-process cache, layered over Redis when available.
func ProvideCache(cfg *config.Config, rdb *redis.Client) (cache.Service, error) {
	mem, err := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
		cache.WithMemoryDefaultTTL(cfg.Cache.DefaultTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("memory cache: %w", err)
	}
	if rdb == nil {
		return mem, nil
	}
	return cache.NewLayeredCache(mem, cache.NewRedisCache(rdb, cfg.Cache.Prefix), cfg.Cache.DefaultTTL), nil
}

// ProvideQueue builds the Redis training queue, or nil when disabled.
func ProvideQueue(cfg *config.Config, rdb *redis.Client, log *logger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rdb == nil {
		return nil
	}
	return queue.NewRedisQueue(log.With(logger.String("component", "queue")), rdb, queue.Config{
		Workers:    cfg.Queue.Workers,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	}, queue.WithKeyPrefix(cfg.Cache.Prefix+":queue:"+cfg.Queue.Name))
}

// ProvideRateLimiter builds the per-client HTTP rate limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

// ProvideModelFactory maps the ensemble config to the model line-up.
func ProvideModelFactory(cfg *config.Config) domsvc.ModelFactory {
	e := cfg.Ensemble
	remoteLimiter := ratelimit.New(e.Remote.RPS, e.Remote.Burst)
	return forecasters.NewFactory(forecasters.Settings{
		Models:         e.Models,
		SESAlpha:       e.SESAlpha,
		HoltAlpha:      e.HoltAlpha,
		HoltBeta:       e.HoltBeta,
		SMAPeriod:      e.SMAPeriod,
		EMAPeriod:      e.EMAPeriod,
		RemoteURL:      e.Remote.URL,
		RemoteTimeout:  e.Remote.Timeout,
		RemoteAttempts: e.Remote.Attempts,
	}, remoteLimiter)
}

// ProvideHub creates the websocket forecast hub.
func ProvideHub(log *logger.Logger) *ws.Hub {
	return ws.NewHub(log.With(logger.String("component", "ws_hub")), 32)
}

// ProvideForecaster assembles the per-key ensemble use case.
func ProvideForecaster(
	cfg *config.Config,
	factory domsvc.ModelFactory,
	m repository.Metrics,
	log *logger.Logger,
	store repository.SeriesStore,
	c cache.Service,
	q *queue.RedisQueue,
	kp *internalrepo.KafkaForecastPublisher,
	hub *ws.Hub,
) (*usecase.Forecaster, error) {
	e := cfg.Ensemble
	engineOpts := []ensemble.Option{
		ensemble.WithConfig(ensemble.Config{
			HoldoutFraction: e.HoldoutFraction,
			MinHoldoutSize:  e.MinHoldoutSize,
			Epsilon:         e.Epsilon,
			ModelTimeout:    e.ModelTimeout,
		}),
		ensemble.WithLogger(log.With(logger.String("component", "ensemble"))),
		ensemble.WithMetrics(m),
	}

	opts := []usecase.ForecasterOption{usecase.WithSeriesStore(store), usecase.WithCache(c)}
	if q != nil {
		opts = append(opts, usecase.WithQueue(q))
	}
	// typed nil pointers must not reach the publisher list as non-nil interfaces
	if kp != nil {
		opts = append(opts, usecase.WithPublishers(kp))
	}
	opts = append(opts, usecase.WithPublishers(hub))

	return usecase.NewForecaster(usecase.ForecasterConfig{
		SeriesLength:   cfg.Forecast.SeriesLength,
		Timeframe:      repository.NormalizeTimeframe(cfg.Forecast.Timeframe),
		CacheTTL:       cfg.Forecast.CacheTTL,
		RequestTimeout: cfg.Forecast.RequestTimeout,
		MaxKeys:        cfg.Forecast.MaxKeys,
		TrainLockTTL:   cfg.Forecast.TrainLockTTL,
	}, factory, engineOpts, m, log.With(logger.String("component", "forecaster")), opts...)
}

// ProvideKafkaForecastHandler serves forecast requests from the request topic.
func ProvideKafkaForecastHandler(f *usecase.Forecaster, m repository.Metrics, cfg *config.Config) *usecase.KafkaForecastHandler {
	return usecase.NewKafkaForecastHandler(cfg.Kafka.RequestTopic, f, m)
}

// ProvideTrainJob builds the queued training job.
func ProvideTrainJob(f *usecase.Forecaster, log *logger.Logger) *usecase.TrainJob {
	return usecase.NewTrainJob(f, log.With(logger.String("job", "train_symbol")))
}

// ProvideForecastHandler builds the HTTP API with dependency health checks.
func ProvideForecastHandler(log *logger.Logger, f *usecase.Forecaster, ch *pkgch.Client, rdb *redis.Client) *api.ForecastEchoHandler {
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return api.NewForecastEchoHandler(log.With(logger.String("component", "api")), f, checks)
}

// ProvideHTTPServer builds the echo server with every route handler.
func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, h *api.ForecastEchoHandler, hub *ws.Hub, lim *ratelimit.Limiter) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(log.With(logger.String("component", "http")), []xhttp.Handler{h, hub},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
		xhttp.WithRateLimiter(lim),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaForecastHandler,
	q *queue.RedisQueue,
	job *usecase.TrainJob,
	hub *ws.Hub,
	kp *internalrepo.KafkaForecastPublisher,
	ch *pkgch.Client,
	rdb *redis.Client,
	shutdownTracing tracing.ShutdownFunc,
) *server.App {
	opts := []server.Option{
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithTracingShutdown(shutdownTracing),
		server.WithCloser("ws_hub", hub),
	}
	if consumer != nil {
		consumer.RegisterHandler(kh)
		opts = append(opts, server.WithConsumer(consumer))
	}
	if q != nil {
		q.Register(job)
		opts = append(opts, server.WithQueue(q))
	}
	if kp != nil {
		opts = append(opts, server.WithCloser("kafka_producer", kp))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch))
	}
	if rdb != nil {
		opts = append(opts, server.WithCloser("redis", rdb))
	}
	return server.New(log, srv, opts...)
}
