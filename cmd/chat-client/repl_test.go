package main

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"webchat/internal/model"
	"webchat/internal/session"
)

type fakeSession struct {
	mu       sync.Mutex
	calls    []string
	sendErr  error
	lastName string
	lastMail string
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSession) StartChat(_ context.Context, name, email string) (string, error) {
	f.record("start")
	f.lastName, f.lastMail = name, email
	return "T1", nil
}

func (f *fakeSession) AccessChat(_ context.Context, ticketID string) error {
	f.record("access:" + ticketID)
	return nil
}

func (f *fakeSession) Send(_ context.Context, text string) error {
	f.record("send:" + text)
	return f.sendErr
}

func (f *fakeSession) Leave(context.Context) error            { f.record("leave"); return nil }
func (f *fakeSession) OpenDashboard(context.Context) error    { f.record("open"); return nil }
func (f *fakeSession) RefreshDashboard(context.Context) error { f.record("refresh"); return nil }
func (f *fakeSession) CloseActiveChat(context.Context) error  { f.record("close"); return nil }

func (f *fakeSession) State(context.Context) (session.State, error) {
	f.record("state")
	return session.State{Role: model.RoleAgent, TicketID: "T9", Connected: true, JoinedRooms: []string{"T9", model.DashboardRoom}}, nil
}

type noteView struct {
	session.View
	notices  []string
	warnings []string
	forms    int
}

func (v *noteView) ShowNotice(text string)  { v.notices = append(v.notices, text) }
func (v *noteView) ShowWarning(text string) { v.warnings = append(v.warnings, text) }
func (v *noteView) ShowEntryForms()         { v.forms++ }

func TestParseLine(t *testing.T) {
	cases := []struct {
		in   string
		ok   bool
		want command
	}{
		{in: "   ", ok: false},
		{in: "/", ok: false},
		{in: "hello there", ok: true, want: command{name: "say", text: "hello there"}},
		{in: "/ACCESS T1", ok: true, want: command{name: "access", args: []string{"T1"}}},
	}
	for _, tc := range cases {
		got, ok := parseLine(tc.in)
		if ok != tc.ok {
			t.Fatalf("parseLine(%q) ok = %v, want %v", tc.in, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if got.name != tc.want.name || got.text != tc.want.text || strings.Join(got.args, " ") != strings.Join(tc.want.args, " ") {
			t.Fatalf("parseLine(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestSplitNameEmail(t *testing.T) {
	name, email := splitNameEmail([]string{"Ana", "Maria", "ana@x.com"})
	if name != "Ana Maria" || email != "ana@x.com" {
		t.Fatalf("unexpected split: %q %q", name, email)
	}
	name, email = splitNameEmail([]string{"Ana"})
	if name != "Ana" || email != "" {
		t.Fatalf("unexpected split: %q %q", name, email)
	}
}

func TestLoopDispatchesCommands(t *testing.T) {
	sess := &fakeSession{}
	view := &noteView{}
	r := newREPL(sess, view, zerolog.Nop())

	input := strings.Join([]string{
		"/start Ana Maria ana@x.com",
		"hi",
		"/access T2",
		"/open",
		"/list",
		"/close",
		"/leave",
		"/bogus",
		"/help",
		"/status",
		"/quit",
		"after quit",
	}, "\n")
	r.Loop(context.Background(), strings.NewReader(input))

	want := []string{"start", "send:hi", "access:T2", "open", "refresh", "close", "leave", "state"}
	if strings.Join(sess.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("expected calls %v, got %v", want, sess.calls)
	}
	if sess.lastName != "Ana Maria" || sess.lastMail != "ana@x.com" {
		t.Fatalf("unexpected start args: %q %q", sess.lastName, sess.lastMail)
	}
	if len(view.warnings) != 1 || !strings.Contains(view.warnings[0], "/bogus") {
		t.Fatalf("expected unknown command warning, got %v", view.warnings)
	}
	if view.forms != 1 {
		t.Fatalf("expected help to show the forms once, got %d", view.forms)
	}
	if len(view.notices) != 1 || !strings.Contains(view.notices[0], "chat=T9") || !strings.Contains(view.notices[0], "rooms=T9,atendente_dashboard") {
		t.Fatalf("unexpected status notice: %v", view.notices)
	}
}

func TestSendWithoutChatWarns(t *testing.T) {
	sess := &fakeSession{sendErr: session.ErrNoActiveChat}
	view := &noteView{}
	r := newREPL(sess, view, zerolog.Nop())

	r.Loop(context.Background(), strings.NewReader("hello\n"))

	if len(view.warnings) != 1 || !strings.Contains(view.warnings[0], "/start") {
		t.Fatalf("expected a hint to open a chat, got %v", view.warnings)
	}
}
