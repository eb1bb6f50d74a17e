// Package realtime implements the client side of the chat event channel: a
// single long-lived connection object that dials lazily, reconnects with
// exponential backoff and delivers server events to one Handler bound at
// creation time.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"webchat/internal/dto"
)

var (
	ErrNotConnected   = errors.New("realtime: not connected")
	ErrClosed         = errors.New("realtime: connection closed")
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

// Handler receives connection lifecycle and server events. Calls are made
// from the connection's own goroutines, in the order they happen.
type Handler interface {
	OnConnect()
	OnDisconnect(err error)
	OnConnectError(err error)
	OnEvent(event string, data json.RawMessage)
}

type Options struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	// ReconnectAttempts is the number of consecutive failed dials after which
	// the connection gives up. Zero retries forever.
	ReconnectAttempts int
	PingInterval      time.Duration
	SendBuffer        int
	Logger            *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = 500 * time.Millisecond
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = 10 * time.Second
		if o.ReconnectMax < o.ReconnectMin {
			o.ReconnectMax = o.ReconnectMin
		}
	}
	if o.PingInterval == 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

type Conn struct {
	url     string
	handler Handler
	opts    Options
	dialer  *websocket.Dialer
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	link      *link
	connected atomic.Bool
}

// Dial validates rawURL and starts connecting in the background. It never
// blocks on the network; h learns about the outcome.
func Dial(rawURL string, h Handler, opts Options) (*Conn, error) {
	if h == nil {
		return nil, fmt.Errorf("realtime: handler is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("realtime: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}

	opts = opts.withDefaults()
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		url:     u.String(),
		handler: h,
		opts:    opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: logger.With().Str("component", "realtime").Str("url", u.String()).Logger(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.run()
	return c, nil
}

// Connected reports whether a live socket is currently attached.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

// Closed reports whether the connection was closed or gave up reconnecting.
// A closed Conn never comes back.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return c.ctx.Err() != nil
	}
}

// Done is closed once the background goroutine has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Emit queues an event for the server without waiting for the write.
func (c *Conn) Emit(event string, payload any) error {
	if c.Closed() {
		return ErrClosed
	}

	frame, err := dto.Frame(event, payload)
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", event, err)
	}

	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l == nil || !c.connected.Load() {
		return ErrNotConnected
	}

	select {
	case <-l.done:
		return ErrNotConnected
	default:
	}

	select {
	case l.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops reconnecting and drops the current socket. It does not wait
// for the background goroutine, so it is safe to call from a Handler.
func (c *Conn) Close() error {
	c.cancel()

	c.mu.Lock()
	l := c.link
	c.link = nil
	c.mu.Unlock()
	c.connected.Store(false)

	if l != nil {
		l.closeGracefully()
	}
	return nil
}

func (c *Conn) run() {
	defer close(c.done)
	defer c.connected.Store(false)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.ReconnectMin
	b.MaxInterval = c.opts.ReconnectMax

	failures := 0
	for {
		if c.ctx.Err() != nil {
			return
		}

		ws, _, err := c.dialer.DialContext(c.ctx, c.url, c.opts.Header)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			failures++
			incConnectErrors()
			c.logger.Warn().Err(err).Int("attempt", failures).Msg("[realtime] dial failed")
			c.handler.OnConnectError(err)
			if c.opts.ReconnectAttempts > 0 && failures >= c.opts.ReconnectAttempts {
				c.logger.Error().Int("attempts", failures).Msg("[realtime] giving up reconnecting")
				c.cancel()
				return
			}
			if !c.wait(b.NextBackOff()) {
				return
			}
			continue
		}

		failures = 0
		b.Reset()

		l := newLink(ws, c.opts.SendBuffer, c.logger)
		c.mu.Lock()
		if c.ctx.Err() != nil {
			c.mu.Unlock()
			l.close()
			return
		}
		c.link = l
		c.mu.Unlock()

		go l.writeMessages()
		go l.keepAlive(c.opts.PingInterval)

		c.connected.Store(true)
		incConnects()
		c.logger.Info().Msg("[realtime] connected")
		c.handler.OnConnect()

		pongWait := time.Duration(0)
		if c.opts.PingInterval > 0 {
			pongWait = c.opts.PingInterval * 2
		}
		readErr := l.readMessages(c.handler, pongWait)

		c.connected.Store(false)
		c.mu.Lock()
		if c.link == l {
			c.link = nil
		}
		c.mu.Unlock()
		l.close()

		if c.ctx.Err() != nil {
			return
		}
		incDisconnects()
		c.logger.Warn().Err(readErr).Msg("[realtime] disconnected")
		c.handler.OnDisconnect(readErr)

		if !c.wait(b.NextBackOff()) {
			return
		}
	}
}

func (c *Conn) wait(d time.Duration) bool {
	if d < 0 {
		d = c.opts.ReconnectMax
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
