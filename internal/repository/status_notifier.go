package repository

import (
	"context"
	"time"

	"ChartSync/internal/domain/models"
	domrepo "ChartSync/internal/domain/repository"
	pkgkafka "ChartSync/pkg/kafka"
	applogger "ChartSync/pkg/logger"
)

// KafkaNotifier publishes series lifecycle events to a Kafka topic so other
// surfaces (alerting, dashboards) can follow the chart state. Publishing is
// fire-and-forget; the core never waits on the broker.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
	log      *applogger.Logger
}

// NewKafkaNotifier creates a Kafka-backed StatusNotifier.
func NewKafkaNotifier(producer *pkgkafka.Producer, topic string, log *applogger.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, log: log}
}

type statusEvent struct {
	Event       string  `json:"event"`
	Instrument  string  `json:"instrument"`
	Granularity string  `json:"granularity"`
	Reason      string  `json:"reason,omitempty"`
	Count       int     `json:"count,omitempty"`
	Error       string  `json:"error,omitempty"`
	CandleTime  int64   `json:"candle_time,omitempty"`
	Close       float64 `json:"close,omitempty"`
	Synthetic   bool    `json:"synthetic,omitempty"`
	At          int64   `json:"at"`
}

func (n *KafkaNotifier) NotifyLoading(key models.SeriesKey, reason models.LoadReason) {
	n.publish(key, statusEvent{Event: "loading", Reason: string(reason)})
}

func (n *KafkaNotifier) NotifyReady(key models.SeriesKey, count int) {
	n.publish(key, statusEvent{Event: "ready", Count: count})
}

func (n *KafkaNotifier) NotifyError(key models.SeriesKey, err error) {
	n.publish(key, statusEvent{Event: "error", Error: err.Error()})
}

func (n *KafkaNotifier) NotifyNewCandle(key models.SeriesKey, c models.Candle) {
	n.publish(key, statusEvent{Event: "new_candle", CandleTime: c.Time, Close: c.Close})
}

func (n *KafkaNotifier) NotifyGapFilled(key models.SeriesKey, count int, synthetic bool) {
	n.publish(key, statusEvent{Event: "gap_filled", Count: count, Synthetic: synthetic})
}

func (n *KafkaNotifier) publish(key models.SeriesKey, ev statusEvent) {
	ev.Instrument = key.Instrument
	ev.Granularity = string(key.Granularity)
	ev.At = time.Now().Unix()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.producer.Publish(ctx, n.topic, []byte(key.String()), ev); err != nil {
			n.log.Warn("status publish failed",
				applogger.String("event", ev.Event),
				applogger.String("key", key.String()),
				applogger.Error(err))
		}
	}()
}

// LogNotifier implements StatusNotifier with structured logging only. It is
// the default when Kafka is disabled.
type LogNotifier struct {
	log *applogger.Logger
}

func NewLogNotifier(log *applogger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyLoading(key models.SeriesKey, reason models.LoadReason) {
	n.log.Debug("series loading", applogger.String("key", key.String()), applogger.String("reason", string(reason)))
}

func (n *LogNotifier) NotifyReady(key models.SeriesKey, count int) {
	n.log.Info("series ready", applogger.String("key", key.String()), applogger.Int("count", count))
}

func (n *LogNotifier) NotifyError(key models.SeriesKey, err error) {
	n.log.Warn("series error", applogger.String("key", key.String()), applogger.Error(err))
}

func (n *LogNotifier) NotifyNewCandle(key models.SeriesKey, c models.Candle) {
	n.log.Debug("new candle", applogger.String("key", key.String()), applogger.Int64("t", c.Time))
}

func (n *LogNotifier) NotifyGapFilled(key models.SeriesKey, count int, synthetic bool) {
	n.log.Info("gap filled",
		applogger.String("key", key.String()),
		applogger.Int("count", count),
		applogger.Bool("synthetic", synthetic))
}

// MultiNotifier fans one notification out to several sinks.
type MultiNotifier struct {
	sinks []domrepo.StatusNotifier
}

func NewMultiNotifier(sinks ...domrepo.StatusNotifier) *MultiNotifier {
	filtered := make([]domrepo.StatusNotifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiNotifier{sinks: filtered}
}

func (m *MultiNotifier) NotifyLoading(key models.SeriesKey, reason models.LoadReason) {
	for _, s := range m.sinks {
		s.NotifyLoading(key, reason)
	}
}

func (m *MultiNotifier) NotifyReady(key models.SeriesKey, count int) {
	for _, s := range m.sinks {
		s.NotifyReady(key, count)
	}
}

func (m *MultiNotifier) NotifyError(key models.SeriesKey, err error) {
	for _, s := range m.sinks {
		s.NotifyError(key, err)
	}
}

func (m *MultiNotifier) NotifyNewCandle(key models.SeriesKey, c models.Candle) {
	for _, s := range m.sinks {
		s.NotifyNewCandle(key, c)
	}
}

func (m *MultiNotifier) NotifyGapFilled(key models.SeriesKey, count int, synthetic bool) {
	for _, s := range m.sinks {
		s.NotifyGapFilled(key, count, synthetic)
	}
}

var (
	_ domrepo.StatusNotifier = (*KafkaNotifier)(nil)
	_ domrepo.StatusNotifier = (*LogNotifier)(nil)
	_ domrepo.StatusNotifier = (*MultiNotifier)(nil)
)
