package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"webchat/internal/history"
	"webchat/internal/model"
	"webchat/internal/realtime"
)

type emitted struct {
	event   string
	payload any
}

type fakeChannel struct {
	mu        sync.Mutex
	handler   realtime.Handler
	connected bool
	closed    bool
	emits     []emitted
}

func (f *fakeChannel) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return realtime.ErrClosed
	}
	if !f.connected {
		return realtime.ErrNotConnected
	}
	f.emits = append(f.emits, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected && !f.closed
}

func (f *fakeChannel) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

func (f *fakeChannel) connect() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.handler.OnConnect()
}

func (f *fakeChannel) drop() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.handler.OnDisconnect(errors.New("connection reset"))
}

// connectError simulates one failed dial attempt while the transport keeps
// retrying.
func (f *fakeChannel) connectError(err error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.handler.OnConnectError(err)
}

// giveUp simulates the transport exhausting its reconnect attempts.
func (f *fakeChannel) giveUp() {
	f.mu.Lock()
	f.connected = false
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeChannel) push(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	f.handler.OnEvent(event, data)
}

func (f *fakeChannel) sent() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitted(nil), f.emits...)
}

type fakeDialer struct {
	mu       sync.Mutex
	channels []*fakeChannel
	urls     []string
	err      error
}

func (d *fakeDialer) dial(url string, h realtime.Handler) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	ch := &fakeChannel{handler: h}
	d.channels = append(d.channels, ch)
	d.urls = append(d.urls, url)
	return ch, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

func (d *fakeDialer) last(t *testing.T) *fakeChannel {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		t.Fatalf("no connection was dialed")
	}
	return d.channels[len(d.channels)-1]
}

type fakeHistory struct {
	mu        sync.Mutex
	start     func(name, email string) (history.StartResult, error)
	fetch     func(ctx context.Context, ticketID string) (history.Chat, error)
	list      func() ([]model.SessionSummary, error)
	closeChat func(ticketID string) error
	calls     map[string]int
}

func (h *fakeHistory) record(op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.calls == nil {
		h.calls = make(map[string]int)
	}
	h.calls[op]++
}

func (h *fakeHistory) count(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[op]
}

func (h *fakeHistory) StartSession(_ context.Context, name, email string) (history.StartResult, error) {
	h.record("start")
	if h.start == nil {
		return history.StartResult{}, errors.New("start not configured")
	}
	return h.start(name, email)
}

func (h *fakeHistory) FetchHistory(ctx context.Context, ticketID string) (history.Chat, error) {
	h.record("fetch")
	if h.fetch == nil {
		return history.Chat{TicketID: ticketID}, nil
	}
	return h.fetch(ctx, ticketID)
}

func (h *fakeHistory) ListOpenSessions(context.Context) ([]model.SessionSummary, error) {
	h.record("list")
	if h.list == nil {
		return nil, nil
	}
	return h.list()
}

func (h *fakeHistory) CloseSession(_ context.Context, ticketID string) error {
	h.record("close")
	if h.closeChat == nil {
		return nil
	}
	return h.closeChat(ticketID)
}

type recordingView struct {
	mu           sync.Mutex
	formsVisible bool
	chatVisible  bool
	header       Header
	messages     []RenderedMessage
	notices      []string
	warnings     []string
	errors       []string
	dashboard    []model.SessionSummary
	renders      int
	prepends     int
}

func (v *recordingView) ShowEntryForms() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formsVisible, v.chatVisible = true, false
	v.messages = nil
}

func (v *recordingView) ShowChat(h Header) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formsVisible, v.chatVisible = false, true
	v.header = h
	v.messages = nil
}

func (v *recordingView) AppendMessage(m RenderedMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, m)
}

func (v *recordingView) ShowNotice(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, text)
}

func (v *recordingView) ShowWarning(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.warnings = append(v.warnings, text)
}

func (v *recordingView) ShowError(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, text)
}

func (v *recordingView) RenderDashboard(list []model.SessionSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dashboard = append([]model.SessionSummary(nil), list...)
	v.renders++
}

func (v *recordingView) PrependDashboardEntry(s model.SessionSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dashboard = append([]model.SessionSummary{s}, v.dashboard...)
	v.prepends++
}

func (v *recordingView) snapshot() recordingView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return recordingView{
		formsVisible: v.formsVisible,
		chatVisible:  v.chatVisible,
		header:       v.header,
		messages:     append([]RenderedMessage(nil), v.messages...),
		notices:      append([]string(nil), v.notices...),
		warnings:     append([]string(nil), v.warnings...),
		errors:       append([]string(nil), v.errors...),
		dashboard:    append([]model.SessionSummary(nil), v.dashboard...),
		renders:      v.renders,
		prepends:     v.prepends,
	}
}

type harness struct {
	client  *Client
	view    *recordingView
	history *fakeHistory
	dialer  *fakeDialer
	ctx     context.Context
}

func newHarness(t *testing.T, role model.Role) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

	logger := zerolog.Nop()
	h := &harness{
		view:    &recordingView{formsVisible: true},
		history: &fakeHistory{},
		dialer:  &fakeDialer{},
		ctx:     ctx,
	}
	h.client = New(Options{
		Role:        role,
		History:     h.history,
		Dial:        h.dialer.dial,
		RealtimeURL: "ws://chat.test/ws",
		View:        h.view,
		Logger:      &logger,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.client.Run(ctx)
	}()
	t.Cleanup(func() {
		h.client.Close()
		cancel()
		<-done
	})
	return h
}

// sync waits until every callback queued so far has been handled.
func (h *harness) sync(t *testing.T) State {
	t.Helper()
	st, err := h.client.State(h.ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return st
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func eventsNamed(emits []emitted, event string) []emitted {
	var out []emitted
	for _, e := range emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}
