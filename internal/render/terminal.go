// Package render draws a chat session on a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"webchat/internal/model"
	"webchat/internal/session"
)

const (
	colorReset  = "\x1b[0m"
	colorDim    = "\x1b[2m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
)

// Terminal is a session.View writing plain lines to an io.Writer.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	role  model.Role
	color bool
}

var _ session.View = (*Terminal)(nil)

func New(out io.Writer, role model.Role, color bool) *Terminal {
	return &Terminal{out: out, role: role, color: color}
}

// Stdout renders to the process stdout, coloring only real terminals.
func Stdout(role model.Role) *Terminal {
	fd := os.Stdout.Fd()
	color := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return New(colorable.NewColorableStdout(), role, color)
}

func (t *Terminal) paint(color, s string) string {
	if !t.color {
		return s
	}
	return color + s + colorReset
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, line)
}

func (t *Terminal) ShowEntryForms() {
	var b strings.Builder
	b.WriteString(t.paint(colorDim, "----------------------------------------") + "\n")
	if t.role.CanStartChat() {
		b.WriteString("  /start <name> <email>   start a new chat\n")
	}
	b.WriteString("  /access <ticket>        open an existing chat\n")
	if t.role.CanViewDashboard() {
		b.WriteString("  /open                   show open chats\n")
	}
	b.WriteString("  /quit                   exit")
	t.println(b.String())
}

func (t *Terminal) ShowChat(h session.Header) {
	title := "Chat " + h.TicketID
	if h.Name != "" {
		title += " | " + h.Name
	}
	if h.Email != "" {
		title += " <" + h.Email + ">"
	}
	t.println(t.paint(colorCyan, "=== "+title+" ===") + "\n" +
		t.paint(colorDim, "type a message and press enter; /leave to exit the chat"))
}

func (t *Terminal) AppendMessage(m session.RenderedMessage) {
	who := senderLabel(m.Sender)
	if m.Self {
		who = t.paint(colorGreen, "you")
	}
	stamp := ""
	if m.Timestamp != "" {
		stamp = t.paint(colorDim, "["+m.Timestamp+"]") + " "
	}
	t.println(stamp + who + ": " + m.Text)
}

func senderLabel(sender string) string {
	switch sender {
	case model.RoleCustomer.Label():
		return "customer"
	case model.RoleAgent.Label():
		return "agent"
	case "":
		return "?"
	default:
		return sender
	}
}

func (t *Terminal) ShowNotice(text string) {
	t.println(t.paint(colorCyan, "* "+text))
}

func (t *Terminal) ShowWarning(text string) {
	t.println(t.paint(colorYellow, "! "+text))
}

func (t *Terminal) ShowError(text string) {
	t.println(t.paint(colorRed, "error: "+text))
}

func (t *Terminal) RenderDashboard(list []model.SessionSummary) {
	var b strings.Builder
	b.WriteString(t.paint(colorCyan, fmt.Sprintf("=== Open chats (%d) ===", len(list))))
	if len(list) == 0 {
		b.WriteString("\n  no open chats")
	}
	for _, s := range list {
		b.WriteString("\n" + t.dashboardRow(s))
	}
	t.println(b.String())
}

func (t *Terminal) PrependDashboardEntry(s model.SessionSummary) {
	t.println(t.paint(colorGreen, "+ ") + t.dashboardRow(s))
}

func (t *Terminal) dashboardRow(s model.SessionSummary) string {
	row := fmt.Sprintf("  %-14s %-20s %-28s %s", s.TicketID, s.CustomerName, s.CustomerEmail, s.Status)
	if s.StartedAt != "" {
		row += "  " + t.paint(colorDim, s.StartedAt)
	}
	if s.LastMessage != nil {
		row += "\n      " + t.paint(colorDim, fmt.Sprintf("last: %s: %s", senderLabel(s.LastMessage.Sender), s.LastMessage.Text))
	}
	return row
}
