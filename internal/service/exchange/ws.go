package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ChartSync/internal/domain/models"
	drepo "ChartSync/internal/domain/repository"
	applogger "ChartSync/pkg/logger"

	"github.com/gorilla/websocket"
)

// Feed implements a LiveFeed backed by the exchange WebSocket endpoint.
type Feed struct {
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger
}

// NewFeed creates a new exchange LiveFeed.
func NewFeed(websocketURL string, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) drepo.LiveFeed {
	return &Feed{
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

type wsSubscribe struct {
	Type        string `json:"type"`
	Instrument  string `json:"instrument"`
	Granularity string `json:"granularity"`
}

type wsMessage struct {
	Type        string  `json:"type"` // candle or tick
	Instrument  string  `json:"instrument"`
	Granularity string  `json:"granularity"`
	Stage       string  `json:"stage"` // sync, complete, incomplete
	T           int64   `json:"t"`
	O           float64 `json:"o"`
	H           float64 `json:"h"`
	L           float64 `json:"l"`
	C           float64 `json:"c"`
	V           float64 `json:"v"`
	Price       float64 `json:"price"`
}

// Subscribe opens one WebSocket subscription for the given series. The read
// loop reconnects forever until the returned cancel func is called or the
// parent context ends; onReconnect fires after each successful redial.
func (f *Feed) Subscribe(ctx context.Context, instrument string, g models.Granularity, onUpdate func(models.LiveUpdate), onReconnect func()) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	conn, err := f.dial(subCtx, instrument, g)
	if err != nil {
		cancel()
		return nil, err
	}

	go f.run(subCtx, conn, instrument, g, onUpdate, onReconnect)
	return cancel, nil
}

func (f *Feed) dial(ctx context.Context, instrument string, g models.Granularity) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.websocketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed connect: %w", err)
	}

	sub := wsSubscribe{Type: "subscribe", Instrument: instrument, Granularity: string(g)}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("feed subscribe %s:%s: %w", instrument, g, err)
	}

	f.log.Info("feed subscribed",
		applogger.String("instrument", instrument),
		applogger.String("granularity", string(g)))
	return conn, nil
}

func (f *Feed) run(ctx context.Context, conn *websocket.Conn, instrument string, g models.Granularity, onUpdate func(models.LiveUpdate), onReconnect func()) {
	key := models.SeriesKey{Instrument: instrument, Granularity: g}

	for {
		f.readLoop(ctx, conn, key, onUpdate)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		// redial until it sticks or the subscription is cancelled
		var err error
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.reconnectDelay):
			}
			conn, err = f.dial(ctx, instrument, g)
			if err == nil {
				break
			}
			f.log.Warn("feed redial failed", applogger.Error(err))
		}

		if onReconnect != nil {
			onReconnect()
		}
	}
}

// readLoop consumes frames until the connection errors or ctx ends. A ping
// loop keeps the connection alive for the duration of the session.
func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, key models.SeriesKey, onUpdate func(models.LiveUpdate)) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(f.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn("feed read failed", applogger.Error(err))
			}
			return
		}

		var m wsMessage
		if err := json.Unmarshal(b, &m); err != nil {
			// ignore non-data frames
			continue
		}
		if m.Instrument != "" && m.Instrument != key.Instrument {
			continue
		}

		u, ok := toUpdate(key, m)
		if !ok {
			continue
		}
		onUpdate(u)
	}
}

func toUpdate(key models.SeriesKey, m wsMessage) (models.LiveUpdate, bool) {
	switch m.Type {
	case "tick":
		return models.LiveUpdate{Key: key, Stage: models.StageTick, Price: m.Price}, true
	case "candle":
		stage, ok := parseStage(m.Stage)
		if !ok {
			return models.LiveUpdate{}, false
		}
		return models.LiveUpdate{
			Key:   key,
			Stage: stage,
			Candle: models.Candle{
				Time:   m.T,
				Open:   m.O,
				High:   m.H,
				Low:    m.L,
				Close:  m.C,
				Volume: m.V,
			},
		}, true
	}
	return models.LiveUpdate{}, false
}

func parseStage(s string) (models.UpdateStage, bool) {
	switch s {
	case "sync":
		return models.StageSync, true
	case "complete":
		return models.StageComplete, true
	case "incomplete":
		return models.StageIncomplete, true
	}
	return 0, false
}
