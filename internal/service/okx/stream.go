package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	applogger "PatternPull/pkg/logger"
)

// StreamClient subscribes to OKX candle channels and emits closed candles.
// It implements repository.CandleStream.
type StreamClient struct {
	websocketURL   string
	symbols        []string
	bar            domrepo.Timeframe
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	mu        sync.Mutex // guards conn and writes
	conn      *websocket.Conn
	connected bool
}

func NewStreamClient(websocketURL string, symbols []string, bar domrepo.Timeframe, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) *StreamClient {
	if l == nil {
		l = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &StreamClient{
		websocketURL:   websocketURL,
		symbols:        symbols,
		bar:            bar,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l.With(applogger.String("component", "okx_stream")),
	}
}

func (c *StreamClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("okx connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.l.Info("okx websocket connected", applogger.String("url", c.websocketURL))
	return nil
}

func (c *StreamClient) channel() string { return "candle" + string(c.bar) }

func subscribeRequest(channel string, symbols []string) map[string]interface{} {
	args := make([]pushArg, len(symbols))
	for i, s := range symbols {
		args[i] = pushArg{Channel: channel, InstID: s}
	}
	return map[string]interface{}{"op": "subscribe", "args": args}
}

func (c *StreamClient) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return errors.New("okx not connected")
	}
	if err := c.conn.WriteJSON(subscribeRequest(c.channel(), c.symbols)); err != nil {
		return fmt.Errorf("okx subscribe: %w", err)
	}
	c.l.Info("okx subscribed",
		applogger.String("channel", c.channel()),
		applogger.Strings("symbols", c.symbols))
	return nil
}

// Read emits closed candles until ctx ends or the connection fails; the
// error channel then carries the cause and both channels close.
func (c *StreamClient) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	candles := make(chan models.Candle, 256)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	rctx, cancel := context.WithCancel(ctx)
	go c.pingLoop(rctx)

	go func() {
		defer cancel()
		defer close(candles)
		defer close(errs)
		if conn == nil {
			errs <- errors.New("okx conn nil")
			return
		}
		// unblock ReadMessage on cancellation
		go func() {
			<-rctx.Done()
			_ = conn.SetReadDeadline(time.Now())
		}()

		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("okx read: %w", err)
				}
				return
			}
			out, err := decodePush(b)
			if err != nil {
				c.l.Warn("okx push rejected", applogger.Error(err))
				continue
			}
			for _, cd := range out {
				select {
				case candles <- cd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return candles, errs
}

// decodePush returns the closed candles in a frame. "pong" and subscribe
// acks yield nothing; an error event is returned as an error.
func decodePush(b []byte) ([]models.Candle, error) {
	if string(b) == "pong" {
		return nil, nil
	}
	var m pushMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode push: %w", err)
	}
	if m.Event == "error" {
		return nil, &APIError{Code: m.Code, Msg: m.Msg}
	}
	var out []models.Candle
	for _, row := range m.Data {
		cd, closed, err := parseRow(m.Arg.InstID, row)
		if err != nil {
			return nil, err
		}
		if closed {
			out = append(out, cd)
		}
	}
	return out, nil
}

func (c *StreamClient) pingLoop(ctx context.Context) {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			if c.conn != nil {
				if err := c.conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					c.l.Warn("okx ping failed", applogger.Error(err))
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *StreamClient) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func (c *StreamClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *StreamClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
