package di

import (
	"fmt"

	"ChartSync/internal/domain/models"
	"ChartSync/internal/domain/repository"
	"ChartSync/internal/handler/api"
	internalrepo "ChartSync/internal/repository"
	svccache "ChartSync/internal/service/cache"
	"ChartSync/internal/service/exchange"
	"ChartSync/internal/usecase"
	pkgcache "ChartSync/pkg/cache"
	pkgch "ChartSync/pkg/clickhouse"
	"ChartSync/pkg/config"
	xhttp "ChartSync/pkg/http"
	pkgkafka "ChartSync/pkg/kafka"
	"ChartSync/pkg/logger"
	"ChartSync/pkg/metrics"
	"ChartSync/pkg/server"
)

// Infra holds the optional infrastructure clients. A nil field means that
// backend is disabled in config.
type Infra struct {
	CH       *pkgch.Client
	Redis    *pkgcache.RedisCache
	Producer *pkgkafka.Producer
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideInfra builds only the infrastructure clients the config enables.
func ProvideInfra(cfg *config.Config) (*Infra, error) {
	infra := &Infra{}

	if cfg.Backfill.Source == "clickhouse" {
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		infra.CH = client
	}

	if cfg.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisAddr(cfg.Redis.Addr),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		infra.Redis = rc
	}

	if cfg.Kafka.Enabled {
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		infra.Producer = producer
	}

	return infra, nil
}

// ProvideBackfiller selects the historical source and layers the optional
// Redis range cache over it.
func ProvideBackfiller(cfg *config.Config, infra *Infra, log *logger.Logger) (repository.Backfiller, error) {
	var bf repository.Backfiller
	switch cfg.Backfill.Source {
	case "clickhouse":
		ch := internalrepo.NewCHBackfiller(infra.CH, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
		ch.SetLogger(log)
		bf = ch
	case "rest":
		bf = exchange.NewRESTBackfiller(cfg.Backfill.BaseURL, cfg.Backfill.Timeout)
	default:
		return nil, fmt.Errorf("unknown backfill source %q", cfg.Backfill.Source)
	}

	if infra.Redis != nil {
		bf = svccache.NewCachedBackfiller(bf, infra.Redis, cfg.Redis.TTL, log)
	}
	return bf, nil
}

// ProvideLiveFeed creates the exchange WebSocket feed.
func ProvideLiveFeed(cfg *config.Config, log *logger.Logger) repository.LiveFeed {
	return exchange.NewFeed(
		cfg.Live.WebSocketURL,
		cfg.Live.ReconnectDelay,
		cfg.Live.PingInterval,
		log,
	)
}

// ProvideNotifier composes the status sinks: logging always, Kafka when
// enabled.
func ProvideNotifier(cfg *config.Config, infra *Infra, log *logger.Logger) repository.StatusNotifier {
	if infra.Producer == nil {
		return internalrepo.NewLogNotifier(log)
	}
	return internalrepo.NewMultiNotifier(
		internalrepo.NewLogNotifier(log),
		internalrepo.NewKafkaNotifier(infra.Producer, cfg.Kafka.Topic, log),
	)
}

// ProvideEngine creates the chart engine for the configured series.
func ProvideEngine(
	cfg *config.Config,
	backfiller repository.Backfiller,
	feed repository.LiveFeed,
	notifier repository.StatusNotifier,
	m repository.Metrics,
	log *logger.Logger,
) (*usecase.Engine, error) {
	g := models.Granularity(cfg.Chart.Granularity)
	if !g.Valid() {
		return nil, fmt.Errorf("invalid granularity %q", cfg.Chart.Granularity)
	}
	key := models.SeriesKey{Instrument: cfg.Instrument, Granularity: g}

	engCfg := usecase.Config{
		RetentionCap:      cfg.Chart.RetentionCap,
		NearStartFraction: cfg.Chart.NearStartFraction,
		DebounceInterval:  cfg.Chart.DebounceInterval,
		SkipBuffer:        cfg.Chart.SkipBuffer,
		FetchLimit:        cfg.Chart.FetchLimit,
		FrameInterval:     cfg.Chart.FrameInterval,
		DedupWindow:       cfg.Chart.DedupWindow,
		SwitchUpper:       cfg.Chart.SwitchUpper,
		SwitchLower:       cfg.Chart.SwitchLower,
		SwitchCooldown:    cfg.Chart.SwitchCooldown,
	}

	return usecase.NewEngine(engCfg, key, backfiller, feed, notifier, m, log), nil
}

// ProvideHTTPHandler creates the series API handler.
func ProvideHTTPHandler(log *logger.Logger, engine *usecase.Engine) xhttp.Handler {
	return api.NewSeriesEchoHandler(log, engine)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	engine *usecase.Engine,
	handler xhttp.Handler,
	infra *Infra,
) *server.App {
	return server.New(cfg, log, engine, handler, infra.CH, infra.Redis, infra.Producer)
}
