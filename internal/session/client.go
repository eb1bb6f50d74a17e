// Package session is the chat session client: it coordinates the bootstrap
// HTTP calls with the realtime channel and drives a View.
//
// All session state lives on a single event loop (Run). User actions, HTTP
// results and realtime events are all closures executed by that loop, so the
// state needs no locking and callbacks observe a consistent view of it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"webchat/internal/history"
	"webchat/internal/model"
	"webchat/internal/realtime"
)

var (
	ErrClosed        = errors.New("session: client closed")
	ErrNotPermitted  = errors.New("session: not permitted for this role")
	ErrMissingFields = errors.New("session: name and email are required")
	ErrMissingTicket = errors.New("session: ticket id is required")
	ErrEmptyMessage  = errors.New("session: message is empty")
	ErrNoActiveChat  = errors.New("session: no active chat")
	ErrNotConnected  = errors.New("session: not connected")
	ErrSuperseded    = errors.New("session: superseded by a newer action")
)

// History is the bootstrap service.
type History interface {
	StartSession(ctx context.Context, name, email string) (history.StartResult, error)
	FetchHistory(ctx context.Context, ticketID string) (history.Chat, error)
	ListOpenSessions(ctx context.Context) ([]model.SessionSummary, error)
	CloseSession(ctx context.Context, ticketID string) error
}

// Channel is one realtime connection object.
type Channel interface {
	Emit(event string, payload any) error
	Connected() bool
	Closed() bool
	Close() error
}

type DialFunc func(url string, h realtime.Handler) (Channel, error)

// RealtimeDialer dials the production websocket transport.
func RealtimeDialer(opts realtime.Options) DialFunc {
	return func(url string, h realtime.Handler) (Channel, error) {
		return realtime.Dial(url, h, opts)
	}
}

type Options struct {
	Role        model.Role
	DisplayName string
	History     History
	Dial        DialFunc
	RealtimeURL string
	View        View
	Logger      *zerolog.Logger
}

type State struct {
	Role             model.Role
	TicketID         string
	DisplayName      string
	Connected        bool
	DashboardVisible bool
	Dashboard        []model.SessionSummary
	// JoinedRooms lists the rooms the server confirmed on this connection.
	JoinedRooms      []string
}

type Client struct {
	role        model.Role
	initialName string
	history     History
	dial        DialFunc
	realtimeURL string
	view        View
	logger      zerolog.Logger

	actions   chan func()
	quit      chan struct{}
	closeOnce sync.Once

	// Owned by the event loop.
	runCtx            context.Context
	identity          model.Identity
	conn              Channel
	connSerial        uint64
	generation        uint64
	dashboardGen      uint64
	dashboardVisible  bool
	dashboard         []model.SessionSummary
	joined            map[string]bool
	disconnected      bool
	connectErrorShown bool
}

func New(opts Options) *Client {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	dial := opts.Dial
	if dial == nil {
		dial = RealtimeDialer(realtime.Options{Logger: opts.Logger})
	}
	name := opts.DisplayName
	if name == "" && opts.Role.IsAgent() {
		name = model.AgentDisplayName
	}

	return &Client{
		role:        opts.Role,
		initialName: name,
		history:     opts.History,
		dial:        dial,
		realtimeURL: opts.RealtimeURL,
		view:        opts.View,
		logger:      logger.With().Str("component", "session").Str("role", opts.Role.String()).Logger(),
		actions:     make(chan func(), 64),
		quit:        make(chan struct{}),
		runCtx:      context.Background(),
		identity:    model.Identity{Role: opts.Role, DisplayName: name},
		joined:      make(map[string]bool),
	}
}

// Run drives the event loop until ctx is done or Close is called. The
// realtime connection is torn down on exit.
func (c *Client) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer c.stop()
	defer c.teardownConnection()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		case fn := <-c.actions:
			fn()
		}
	}
}

// Close stops the event loop. It is safe to call more than once.
func (c *Client) Close() {
	c.stop()
}

func (c *Client) stop() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
}

// post schedules fn on the event loop. It reports false once the client is
// closed.
func (c *Client) post(fn func()) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.actions <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// call runs fn on the event loop and waits until fn, or a follow-up it
// scheduled, reports completion through finish.
func (c *Client) call(ctx context.Context, fn func(finish func(error))) error {
	res := make(chan error, 1)
	finish := func(err error) {
		select {
		case res <- err:
		default:
		}
	}

	select {
	case c.actions <- func() { fn(finish) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrClosed
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrClosed
	}
}

// State returns a snapshot of the session. Since it runs on the event loop
// it also acts as a barrier for everything scheduled before it.
func (c *Client) State(ctx context.Context) (State, error) {
	var st State
	err := c.call(ctx, func(finish func(error)) {
		st = State{
			Role:             c.role,
			TicketID:         c.identity.TicketID,
			DisplayName:      c.identity.DisplayName,
			Connected:        c.conn != nil && c.conn.Connected(),
			DashboardVisible: c.dashboardVisible,
			Dashboard:        append([]model.SessionSummary(nil), c.dashboard...),
			JoinedRooms:      c.joinedRooms(),
		}
		finish(nil)
	})
	return st, err
}

func (c *Client) joinedRooms() []string {
	rooms := make([]string, 0, len(c.joined))
	for room := range c.joined {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (c *Client) nextGeneration() uint64 {
	c.generation++
	return c.generation
}

// channelEvents adapts realtime callbacks onto the event loop. One instance
// is bound per connection object; events from a replaced object are ignored.
type channelEvents struct {
	client *Client
	serial uint64
}

func (e *channelEvents) dispatch(fn func()) {
	e.client.post(func() {
		if e.serial != e.client.connSerial {
			return
		}
		fn()
	})
}

func (e *channelEvents) OnConnect() {
	e.dispatch(e.client.handleConnect)
}

func (e *channelEvents) OnDisconnect(err error) {
	e.dispatch(func() { e.client.handleDisconnect(err) })
}

func (e *channelEvents) OnConnectError(err error) {
	e.dispatch(func() { e.client.handleConnectError(err) })
}

func (e *channelEvents) OnEvent(event string, data json.RawMessage) {
	e.dispatch(func() { e.client.handleEvent(event, data) })
}
