package chat

import (
	"context"
	"errors"
	"sync"

	"webchat/internal/model"
)

var (
	ErrNotFound = errors.New("chat repository: not found")
	ErrConflict = errors.New("chat repository: already exists")
)

type Repository interface {
	CreateChat(ctx context.Context, chat model.ChatItem) error
	GetChat(ctx context.Context, ticketID string) (model.ChatItem, error)
	ListChats(ctx context.Context, status model.ChatStatus) ([]model.ChatItem, error)
	UpdateChatStatus(ctx context.Context, ticketID string, status model.ChatStatus) error
	// AppendMessage stores msg at the end of its chat and returns it with
	// its key assigned.
	AppendMessage(ctx context.Context, msg model.MessageItem) (model.MessageItem, error)
	ListMessages(ctx context.Context, ticketID string) ([]model.MessageItem, error)
}

// MemoryRepository keeps chats in process memory, in creation order.
type MemoryRepository struct {
	mu       sync.RWMutex
	order    []string
	chats    map[string]model.ChatItem
	messages map[string][]model.MessageItem
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		chats:    make(map[string]model.ChatItem),
		messages: make(map[string][]model.MessageItem),
	}
}

func (m *MemoryRepository) CreateChat(ctx context.Context, chat model.ChatItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.chats[chat.TicketID]; exists {
		return ErrConflict
	}
	m.chats[chat.TicketID] = chat
	m.order = append(m.order, chat.TicketID)
	return nil
}

func (m *MemoryRepository) GetChat(ctx context.Context, ticketID string) (model.ChatItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[ticketID]
	if !ok {
		return model.ChatItem{}, ErrNotFound
	}
	return chat, nil
}

func (m *MemoryRepository) ListChats(ctx context.Context, status model.ChatStatus) ([]model.ChatItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ChatItem, 0, len(m.order))
	for _, id := range m.order {
		chat := m.chats[id]
		if status != "" && chat.Status != status {
			continue
		}
		out = append(out, chat)
	}
	return out, nil
}

func (m *MemoryRepository) UpdateChatStatus(ctx context.Context, ticketID string, status model.ChatStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[ticketID]
	if !ok {
		return ErrNotFound
	}
	chat.Status = status
	m.chats[ticketID] = chat
	return nil
}

func (m *MemoryRepository) AppendMessage(ctx context.Context, msg model.MessageItem) (model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[msg.TicketID]; !ok {
		return model.MessageItem{}, ErrNotFound
	}
	msgs := m.messages[msg.TicketID]
	msg.PK = model.MessagePK(msg.TicketID, len(msgs)+1)
	m.messages[msg.TicketID] = append(msgs, msg)
	return msg, nil
}

func (m *MemoryRepository) ListMessages(ctx context.Context, ticketID string) ([]model.MessageItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.chats[ticketID]; !ok {
		return nil, ErrNotFound
	}
	return append([]model.MessageItem(nil), m.messages[ticketID]...), nil
}
