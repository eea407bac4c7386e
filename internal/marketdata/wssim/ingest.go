// Package wssim is the WebSocket ingest client for the tick recorder. It
// connects to a plain-JSON depth feed (e.g. cmd/tickserver), normalises each
// message into a model.Tick and pushes it to a channel.
//
// Wire format, one JSON object per message:
//
//	{"instrument_token":12602626,"symbol":"NIFTY","ts_ist":"2024-01-01 09:15:03",
//	 "lp":21750.5,"oi":1250000,"vol":48210,"bid":[...],"ask":[...]}
//
// ts_ist is optional; the receive time in IST is used when absent.
package wssim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"trading-analyticsv1/internal/model"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the ingest client.
type Config struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// Location stamps ticks that arrive without ts_ist. Defaults to UTC.
	Location *time.Location
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// Message is one feed message.
type Message struct {
	Token  int64  `json:"instrument_token"`
	Symbol string `json:"symbol"`
	TS     string `json:"ts_ist,omitempty"`
	model.TickData
}

var errNoToken = errors.New("missing instrument_token")

// Decode turns a raw feed message into a Tick. now stamps messages without
// a timestamp.
func Decode(raw []byte, now time.Time) (model.Tick, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Tick{}, fmt.Errorf("decode feed message: %w", err)
	}
	if m.Token <= 0 {
		return model.Tick{}, errNoToken
	}
	ts := m.TS
	if ts == "" {
		ts = now.Format(model.TickLayout)
	} else if _, err := time.Parse(model.TickLayout, ts); err != nil {
		return model.Tick{}, fmt.Errorf("decode feed message: ts_ist %q: %w", ts, err)
	}
	return model.Tick{
		TS:     ts,
		Token:  m.Token,
		Symbol: m.Symbol,
		Raw:    m.TickData.JSON(),
	}, nil
}

// Ingest streams feed messages into a tick channel, reconnecting with
// exponential backoff.
type Ingest struct {
	cfg Config

	// Optional hooks for metrics.
	OnReconnect func()
	OnMalformed func()
	OnConnected func(bool)
}

// New creates a new Ingest. Returns an error if the URL is unparseable.
func New(cfg Config) (*Ingest, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("wssim: unsupported scheme %q", u.Scheme)
	}
	return &Ingest{cfg: cfg}, nil
}

// Start connects and streams ticks into tickCh. Blocks until ctx is
// cancelled.
func (ing *Ingest) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := ing.cfg.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := ing.runOnce(ctx, tickCh)
		if err == nil {
			return nil
		}
		if ing.OnConnected != nil {
			ing.OnConnected(false)
		}

		log.Printf("[wssim] disconnected (%v), reconnecting in %s...", err, delay)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (ing *Ingest) runOnce(ctx context.Context, tickCh chan<- model.Tick) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[wssim] connected to %s", ing.cfg.URL)
	if ing.OnConnected != nil {
		ing.OnConnected(true)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		tick, err := Decode(raw, time.Now().In(ing.cfg.Location))
		if err != nil {
			log.Printf("[wssim] %v (raw: %.200s)", err, raw)
			if ing.OnMalformed != nil {
				ing.OnMalformed()
			}
			continue
		}

		select {
		case tickCh <- tick:
		case <-ctx.Done():
			return nil
		}
	}
}
