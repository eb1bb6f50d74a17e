package model

import "fmt"

type ChatStatus string

const (
	ChatStatusOpen   ChatStatus = "aberto"
	ChatStatusClosed ChatStatus = "fechado"
)

// DashboardRoom is the well-known room every agent joins to receive new-chat
// notifications. It is not backed by a chat.
const DashboardRoom = "atendente_dashboard"

func MessagePK(ticketID string, seq int) string {
	return fmt.Sprintf("%s#%06d", ticketID, seq)
}

type ChatItem struct {
	TicketID      string
	CustomerName  string
	CustomerEmail string
	Status        ChatStatus
	StartedAt     string
}

type MessageItem struct {
	PK       string
	TicketID string
	Sender   string
	Text     string
	SentAt   string
}
