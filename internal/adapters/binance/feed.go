// Package binance streams live trade prices from the Binance public
// WebSocket API and adapts them to the engine's tick feed.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// Config configures the Binance feed.
type Config struct {
	// URL is the WebSocket stream base, e.g. wss://stream.binance.com:9443/ws.
	URL string
	// Symbol is the trading pair, e.g. BTCUSDT.
	Symbol string
	// MinInterval coalesces the raw trade stream: at most one tick per
	// interval reaches the engine, carrying the latest trade price.
	MinInterval time.Duration

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
	HandshakeTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = "wss://stream.binance.com:9443/ws"
	}
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	if c.MinInterval <= 0 {
		c.MinInterval = time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	return c
}

// Feed implements ports.PriceFeed over the Binance trade stream.
type Feed struct {
	cfg Config
}

// NewFeed creates a feed for the configured symbol.
func NewFeed(cfg Config) *Feed {
	return &Feed{cfg: cfg.withDefaults()}
}

// Subscribe dials the trade stream and returns the tick channel. The
// first dial happens synchronously so startup failures surface here;
// later drops reconnect with capped exponential backoff. The channel
// closes when ctx is cancelled.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.Tick, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance.Subscribe: %w", err)
	}

	ticks := make(chan domain.Tick, 64)
	go f.run(ctx, conn, ticks)
	return ticks, nil
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/%s@trade", strings.TrimRight(f.cfg.URL, "/"), strings.ToLower(f.cfg.Symbol))

	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// run reads trades until ctx is cancelled, reconnecting on errors.
func (f *Feed) run(ctx context.Context, conn *websocket.Conn, ticks chan<- domain.Tick) {
	defer close(ticks)

	delay := f.cfg.ReconnectDelay
	var lastPrice float64
	var lastSent time.Time

	for {
		err := f.readConn(ctx, conn, ticks, &lastPrice, &lastSent)
		if err == nil || ctx.Err() != nil {
			return
		}
		slog.Warn("binance stream dropped", "symbol", f.cfg.Symbol, "err", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}

		next, err := f.dial(ctx)
		if err != nil {
			slog.Warn("binance reconnect failed", "symbol", f.cfg.Symbol, "err", err)
			continue
		}
		slog.Info("binance stream reconnected", "symbol", f.cfg.Symbol)
		conn = next
		delay = f.cfg.ReconnectDelay
	}
}

// readConn pumps one connection until it breaks. It always closes the
// connection on the way out; a nil return means ctx was cancelled.
func (f *Feed) readConn(ctx context.Context, conn *websocket.Conn, ticks chan<- domain.Tick, lastPrice *float64, lastSent *time.Time) error {
	defer conn.Close()

	// Drop the connection when ctx dies so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		tick, ok := parseTrade(message, *lastPrice)
		if !ok {
			continue
		}
		*lastPrice = tick.Price

		// Coalesce: the engine wants roughly one sample per second,
		// not every trade print.
		if time.Since(*lastSent) < f.cfg.MinInterval {
			continue
		}
		*lastSent = time.Now()

		select {
		case ticks <- tick:
		case <-ctx.Done():
			return nil
		}
	}
}

type tradeMessage struct {
	Event     string `json:"e"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"` // ms since epoch
}

// parseTrade decodes one stream message and derives the trend from the
// previous price. prev == 0 means no prior sample.
func parseTrade(message []byte, prev float64) (domain.Tick, bool) {
	var msg tradeMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.Event != "trade" {
		return domain.Tick{}, false
	}
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		return domain.Tick{}, false
	}

	trend := domain.TrendFlat
	switch {
	case prev > 0 && price > prev:
		trend = domain.TrendUp
	case prev > 0 && price < prev:
		trend = domain.TrendDown
	}

	return domain.Tick{
		Timestamp: time.UnixMilli(msg.TradeTime).UTC(),
		Price:     price,
		Trend:     trend,
	}, true
}
