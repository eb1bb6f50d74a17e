package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"webchat/internal/session"
)

// chatSession is the part of session.Client driven from the prompt.
type chatSession interface {
	StartChat(ctx context.Context, name, email string) (string, error)
	AccessChat(ctx context.Context, ticketID string) error
	Send(ctx context.Context, text string) error
	Leave(ctx context.Context) error
	OpenDashboard(ctx context.Context) error
	RefreshDashboard(ctx context.Context) error
	CloseActiveChat(ctx context.Context) error
	State(ctx context.Context) (session.State, error)
}

type command struct {
	name string
	args []string
	text string
}

// parseLine turns a prompt line into a command. Lines not starting with a
// slash are chat messages.
func parseLine(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, false
	}
	if !strings.HasPrefix(line, "/") {
		return command{name: "say", text: line}, true
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return command{}, false
	}
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

// splitNameEmail treats the last argument as the email and the rest as the
// name, so names may contain spaces.
func splitNameEmail(args []string) (string, string) {
	switch len(args) {
	case 0:
		return "", ""
	case 1:
		return args[0], ""
	default:
		return strings.Join(args[:len(args)-1], " "), args[len(args)-1]
	}
}

type repl struct {
	sess   chatSession
	view   session.View
	logger zerolog.Logger
}

func newREPL(sess chatSession, view session.View, logger zerolog.Logger) *repl {
	return &repl{sess: sess, view: view, logger: logger}
}

// Loop reads commands from in until EOF, /quit or ctx is done.
func (r *repl) Loop(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, ok := parseLine(line)
			if !ok {
				continue
			}
			if r.execute(ctx, cmd) {
				return
			}
		}
	}
}

// execute runs one command and reports whether the prompt should exit.
func (r *repl) execute(ctx context.Context, cmd command) bool {
	var err error
	switch cmd.name {
	case "quit", "exit":
		return true
	case "say":
		err = r.sess.Send(ctx, cmd.text)
		if errors.Is(err, session.ErrNoActiveChat) {
			r.view.ShowWarning("Open a chat first with /start or /access.")
		}
	case "start":
		name, email := splitNameEmail(cmd.args)
		_, err = r.sess.StartChat(ctx, name, email)
	case "access":
		ticket := ""
		if len(cmd.args) > 0 {
			ticket = cmd.args[0]
		}
		err = r.sess.AccessChat(ctx, ticket)
	case "leave":
		err = r.sess.Leave(ctx)
	case "open":
		err = r.sess.OpenDashboard(ctx)
	case "list", "refresh":
		err = r.sess.RefreshDashboard(ctx)
	case "close":
		err = r.sess.CloseActiveChat(ctx)
	case "status":
		err = r.status(ctx)
	case "help":
		r.view.ShowEntryForms()
	default:
		r.view.ShowWarning("Unknown command /" + cmd.name + ". Type /help.")
	}
	if err != nil {
		r.logger.Debug().Err(err).Str("command", cmd.name).Msg("[chat-client] command failed")
	}
	return false
}

func (r *repl) status(ctx context.Context) error {
	st, err := r.sess.State(ctx)
	if err != nil {
		return err
	}
	ticket := st.TicketID
	if ticket == "" {
		ticket = "none"
	}
	r.view.ShowNotice(fmt.Sprintf("role=%s chat=%s connected=%t rooms=%s",
		st.Role, ticket, st.Connected, strings.Join(st.JoinedRooms, ",")))
	return nil
}
