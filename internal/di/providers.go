package di

import (
	"context"
	"fmt"
	"time"

	"OptPull/internal/adaptive"
	drepo "OptPull/internal/domain/repository"
	"OptPull/internal/handler/api"
	"OptPull/internal/pipeline"
	internalrepo "OptPull/internal/repository"
	"OptPull/internal/scheduler"
	"OptPull/internal/service/analytics"
	"OptPull/internal/service/broker"
	"OptPull/internal/service/expiry"
	"OptPull/internal/service/spotfeed"
	"OptPull/internal/service/strikes"
	"OptPull/internal/usecase"
	"OptPull/pkg/cache"
	pkgch "OptPull/pkg/clickhouse"
	"OptPull/pkg/config"
	pkgkafka "OptPull/pkg/kafka"
	applogger "OptPull/pkg/logger"
	"OptPull/pkg/metrics"
	"OptPull/pkg/server"
)

const optionTable = "option_quotes"

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// option quote schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ts DateTime,
			index_name LowCardinality(String),
			expiry Date,
			rule LowCardinality(String),
			symbol String,
			strike Float64,
			kind LowCardinality(String),
			ltp Float64,
			avg_price Float64,
			volume Int64,
			oi Int64,
			iv Float64,
			delta Float64,
			gamma Float64,
			theta Float64,
			vega Float64,
			salvaged UInt8,
			cycle Int64,
			strike_coverage Float64,
			field_coverage Float64
		) ENGINE=MergeTree ORDER BY (index_name, expiry, symbol, ts)`, db, optionTable),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvidePersister creates the ClickHouse option store.
func ProvidePersister(chClient *pkgch.Client, cfg *config.Config) drepo.Persister {
	return internalrepo.NewClickHouseOptionStore(chClient.DB(), cfg.ClickHouse.Database+"."+optionTable)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventSink creates the outcome publisher, or nil without a producer.
func ProvideEventSink(producer *pkgkafka.Producer, cfg *config.Config) drepo.EventSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaOutcomePublisher(producer, cfg.Kafka.OutcomeTopic)
}

// ProvideRedisCache creates the shared Redis cache, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("optpull"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideRuleSource creates the severity rule override source, or nil.
func ProvideRuleSource(redisCache *cache.RedisCache, cfg *config.Config) drepo.RuleSource {
	if redisCache == nil {
		return nil
	}
	return internalrepo.NewRedisRuleSource(redisCache, cfg.Redis.RulesKey)
}

// ProvideExpirySelector creates the calendar-rule expiry selector. Resolved
// dates are cached in a memory-over-Redis layered cache, or memory alone when
// Redis is disabled.
func ProvideExpirySelector(redisCache *cache.RedisCache) drepo.ExpirySelector {
	var c cache.Service
	if redisCache != nil {
		c = cache.NewLayeredCache(redisCache, cache.WithLayeredMemorySize(256))
	} else {
		c = cache.NewMemoryCache(cache.WithMemoryMaxSize(256))
	}
	return expiry.NewSelector(time.Thursday, c)
}

// ProvideSpotFeed creates the index spot feed client.
func ProvideSpotFeed(cfg *config.Config, log *applogger.Logger) *spotfeed.Client {
	indices := make([]string, 0, len(cfg.Indices))
	for _, idx := range cfg.EnabledIndices() {
		indices = append(indices, idx.Name)
	}
	return spotfeed.New(
		cfg.SpotFeed.APIKey,
		cfg.SpotFeed.WebSocketURL,
		indices,
		cfg.SpotFeed.ReconnectDelay,
		cfg.SpotFeed.PingInterval,
		log,
	)
}

// ProvideStrikeRegistry captures strike baselines from config.
func ProvideStrikeRegistry(cfg *config.Config) *strikes.Registry {
	return strikes.NewRegistry(cfg.EnabledIndices())
}

// ProvideScaleController creates the strike-depth controller, or nil when
// scaling is disabled.
func ProvideScaleController(cfg *config.Config, reg *strikes.Registry, m drepo.Metrics, log *applogger.Logger) *adaptive.ScaleController {
	if !cfg.StrikeScale.Enabled {
		return nil
	}
	return adaptive.NewScaleController(adaptive.ScaleConfig{
		Mode:           cfg.StrikeScale.Mode,
		BreachFraction: cfg.StrikeScale.BreachFraction,
		Reduction:      cfg.StrikeScale.Reduction,
		BreachStreak:   cfg.StrikeScale.BreachStreak,
		RestoreStreak:  cfg.StrikeScale.RestoreStreak,
		MinDepth:       cfg.StrikeScale.MinDepth,
	}, reg, m, log)
}

// ProvideStrikeService creates the strike universe service.
func ProvideStrikeService(cfg *config.Config, reg *strikes.Registry, spots *spotfeed.Client, scale *adaptive.ScaleController) *strikes.Service {
	var src strikes.ScaleSource
	if scale != nil {
		src = scale
	}
	return strikes.NewService(
		reg,
		spots,
		src,
		cfg.StrikeScale.Mode,
		cfg.StrikeScale.MinDepth,
		cfg.StrikeCache.MaxEntries,
		cfg.StrikeCache.TTL,
	)
}

// ProvideBroker creates the broker provider client.
func ProvideBroker(cfg *config.Config, log *applogger.Logger) drepo.Provider {
	return broker.NewClient(cfg, log)
}

// ProvideEstimator creates the IV/greeks estimator, or nil when no service is
// configured.
func ProvideEstimator(cfg *config.Config) analytics.Estimator {
	est := analytics.NewHTTPEstimator(cfg)
	if est == nil {
		return nil
	}
	return est
}

// ProvidePipeline creates the per-unit phase pipeline.
func ProvidePipeline(
	cfg *config.Config,
	provider drepo.Provider,
	selector drepo.ExpirySelector,
	persister drepo.Persister,
	spots *spotfeed.Client,
	strikeSvc *strikes.Service,
	estimator analytics.Estimator,
	m drepo.Metrics,
	log *applogger.Logger,
) *pipeline.Pipeline {
	return pipeline.New(cfg, provider, selector, persister, spots, strikeSvc, estimator, m, log)
}

// ProvideGuard creates the cardinality guard.
func ProvideGuard(cfg *config.Config, m drepo.Metrics, log *applogger.Logger) *adaptive.Guard {
	return adaptive.NewGuard(adaptive.GuardConfig{
		MaxSeries:        cfg.Cardinality.MaxSeries,
		ReenableFraction: cfg.Cardinality.ReenableFraction,
		MinDisable:       cfg.Cardinality.MinDisableSeconds,
	}, m, log)
}

// ProvideMemoryProbe creates the heap pressure probe.
func ProvideMemoryProbe(cfg *config.Config) *adaptive.MemoryProbe {
	return adaptive.NewMemoryProbe(cfg.Adaptive.MemoryTier1MB, cfg.Adaptive.MemoryTier2MB)
}

// ProvideSignals creates the scheduler signal source.
func ProvideSignals(guard *adaptive.Guard, mem *adaptive.MemoryProbe) *adaptive.CycleSignals {
	return adaptive.NewCycleSignals(guard, mem)
}

// ProvideClassifier creates the severity classifier.
func ProvideClassifier(cfg *config.Config, src drepo.RuleSource, m drepo.Metrics, log *applogger.Logger) *adaptive.Classifier {
	return adaptive.NewClassifier(adaptive.SeverityConfig{
		MinStreak:     cfg.Severity.MinStreak,
		DecayCycles:   cfg.Severity.DecayCycles,
		TrendWindow:   cfg.Severity.TrendWindow,
		CriticalRatio: cfg.Severity.CriticalRatio,
		WarnRatio:     cfg.Severity.WarnRatio,
	}, src, m, log)
}

// ProvideDetailController creates the detail-mode controller.
func ProvideDetailController(cfg *config.Config, m drepo.Metrics, log *applogger.Logger) *adaptive.DetailController {
	indices := make([]string, 0, len(cfg.Indices))
	for _, idx := range cfg.EnabledIndices() {
		indices = append(indices, idx.Name)
	}
	return adaptive.NewDetailController(adaptive.DetailConfig{
		MaxDetailMode:   cfg.Adaptive.MaxDetailMode,
		MinDetailMode:   cfg.Adaptive.MinDetailMode,
		BreachStreak:    cfg.Adaptive.BreachStreak,
		PromoteCooldown: cfg.Adaptive.PromoteCooldown,
		RecoveryCycles:  cfg.Adaptive.RecoveryCycles,
		MinHealthCycles: cfg.Adaptive.MinHealthCycles,
	}, indices, m, log)
}

// ProvideRunner creates the unit runner.
func ProvideRunner(
	pipe *pipeline.Pipeline,
	events drepo.EventSink,
	m drepo.Metrics,
	guard *adaptive.Guard,
	detail *adaptive.DetailController,
	spots *spotfeed.Client,
	reg *strikes.Registry,
	log *applogger.Logger,
) *usecase.UnitRunner {
	return usecase.NewUnitRunner(pipe, events, m, guard, detail, spots, reg, log)
}

// ProvideScheduler creates the cycle scheduler.
func ProvideScheduler(
	cfg *config.Config,
	runner *usecase.UnitRunner,
	sev *adaptive.Classifier,
	detail *adaptive.DetailController,
	scale *adaptive.ScaleController,
	guard *adaptive.Guard,
	signals *adaptive.CycleSignals,
	m drepo.Metrics,
	log *applogger.Logger,
) *scheduler.Scheduler {
	return scheduler.New(cfg, runner, sev, detail, scale, guard, signals, m, log)
}

// ProvideStatusHandler creates the HTTP status handler.
func ProvideStatusHandler(
	log *applogger.Logger,
	sched *scheduler.Scheduler,
	sev *adaptive.Classifier,
	detail *adaptive.DetailController,
	scale *adaptive.ScaleController,
	guard *adaptive.Guard,
	persister drepo.Persister,
) *api.StatusEchoHandler {
	return api.NewStatusEchoHandler(log, sched, sev, detail, scale, guard, persister)
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's
// Publisher interface.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p *kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	sched *scheduler.Scheduler,
	spots *spotfeed.Client,
	events drepo.EventSink,
	persister drepo.Persister,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	handler *api.StatusEchoHandler,
) *server.App {
	if producer != nil && cfg.Kafka.LogTopic != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      &kafkaLogPublisher{producer: producer},
		})
	}
	app := server.New(cfg, log, sched, spots, events, persister, chClient)
	app.SetHTTPHandler(handler)
	return app
}
