// Package chat implements the support-chat backend used by the development
// server: tickets, their messages and the realtime notifications they emit.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"webchat/internal/dto"
	"webchat/internal/model"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeConflict   ErrorCode = "conflict"
	ErrorCodeInternal   ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

const (
	ticketLayout  = "020106150405"
	startedLayout = "2006-01-02 15:04:05"
	messageLayout = "15:04:05"
)

// Notifier fans an event out to everyone in a realtime room.
type Notifier interface {
	Notify(ctx context.Context, room, event string, payload any) error
}

type ChatWithMessages struct {
	Chat     model.ChatItem
	Messages []model.MessageItem
}

type OpenChat struct {
	Chat        model.ChatItem
	LastMessage *model.MessageItem
}

type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
	loc      *time.Location
	logger   zerolog.Logger
}

func New(notifier Notifier, loc *time.Location) *Service {
	return NewWithRepository(NewMemoryRepository(), notifier, nil, loc)
}

func NewWithRepository(repo Repository, notifier Notifier, now func() time.Time, loc *time.Location) *Service {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		now:      now,
		loc:      loc,
		logger:   log.With().Str("component", "chat_service").Logger(),
	}
}

// CreateChat opens a ticket whose id encodes the local creation time.
func (s *Service) CreateChat(ctx context.Context, name, email string) (model.ChatItem, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" {
		return model.ChatItem{}, newError(ErrorCodeValidation, "Nome e email são obrigatórios", nil)
	}

	now := s.now().In(s.loc)
	chat := model.ChatItem{
		TicketID:      now.Format(ticketLayout),
		CustomerName:  name,
		CustomerEmail: email,
		Status:        model.ChatStatusOpen,
		StartedAt:     now.Format(startedLayout),
	}

	err := s.repo.CreateChat(ctx, chat)
	if errors.Is(err, ErrConflict) {
		// Two chats in the same second.
		chat.TicketID = chat.TicketID + "-" + uuid.NewString()[:4]
		err = s.repo.CreateChat(ctx, chat)
	}
	if err != nil {
		return model.ChatItem{}, newError(ErrorCodeInternal, "Erro ao criar chat, tente novamente.", err)
	}

	s.notify(ctx, model.DashboardRoom, dto.EventChatOpened, dto.ChatOpenedEvent{
		ID:       chat.TicketID,
		Customer: chat.CustomerName,
		Email:    chat.CustomerEmail,
		Status:   string(chat.Status),
		Date:     chat.StartedAt,
	})
	s.logger.Info().Str("ticket", chat.TicketID).Msg("chat created")
	return chat, nil
}

func (s *Service) GetChat(ctx context.Context, ticketID string) (ChatWithMessages, error) {
	chat, err := s.loadChat(ctx, ticketID)
	if err != nil {
		return ChatWithMessages{}, err
	}
	msgs, err := s.repo.ListMessages(ctx, chat.TicketID)
	if err != nil {
		return ChatWithMessages{}, newError(ErrorCodeInternal, "failed to load messages", err)
	}
	return ChatWithMessages{Chat: chat, Messages: msgs}, nil
}

// Exists reports whether a chat with ticketID has been created.
func (s *Service) Exists(ctx context.Context, ticketID string) bool {
	_, err := s.repo.GetChat(ctx, strings.TrimSpace(ticketID))
	return err == nil
}

// ListOpenChats returns open chats, oldest first, each with its latest
// message.
func (s *Service) ListOpenChats(ctx context.Context) ([]OpenChat, error) {
	chats, err := s.repo.ListChats(ctx, model.ChatStatusOpen)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "Erro ao buscar chats abertos.", err)
	}

	out := make([]OpenChat, 0, len(chats))
	for _, chat := range chats {
		msgs, err := s.repo.ListMessages(ctx, chat.TicketID)
		if err != nil {
			return nil, newError(ErrorCodeInternal, "Erro ao buscar chats abertos.", err)
		}
		item := OpenChat{Chat: chat}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			item.LastMessage = &last
		}
		out = append(out, item)
	}
	return out, nil
}

// PostMessage stores a message and broadcasts it to the chat room.
func (s *Service) PostMessage(ctx context.Context, ticketID, sender, text string) (model.MessageItem, error) {
	sender = strings.TrimSpace(sender)
	text = strings.TrimSpace(text)
	if sender == "" || text == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "remetente e texto são obrigatórios", nil)
	}

	chat, err := s.loadChat(ctx, ticketID)
	if err != nil {
		return model.MessageItem{}, err
	}
	if chat.Status == model.ChatStatusClosed {
		return model.MessageItem{}, newError(ErrorCodeConflict, "Chat encerrado.", nil)
	}

	msg, err := s.repo.AppendMessage(ctx, model.MessageItem{
		TicketID: chat.TicketID,
		Sender:   sender,
		Text:     text,
		SentAt:   s.now().In(s.loc).Format(messageLayout),
	})
	if err != nil {
		return model.MessageItem{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	s.notify(ctx, chat.TicketID, dto.EventNewMessage, dto.NewMessageEvent{
		Protocol: msg.TicketID,
		Sender:   msg.Sender,
		Text:     msg.Text,
		Date:     msg.SentAt,
	})
	return msg, nil
}

// CloseChat marks a chat closed and tells both its room and the dashboard.
// Closing a closed chat is a no-op.
func (s *Service) CloseChat(ctx context.Context, ticketID string) (model.ChatItem, error) {
	chat, err := s.loadChat(ctx, ticketID)
	if err != nil {
		return model.ChatItem{}, err
	}
	if chat.Status == model.ChatStatusClosed {
		return chat, nil
	}

	if err := s.repo.UpdateChatStatus(ctx, chat.TicketID, model.ChatStatusClosed); err != nil {
		return model.ChatItem{}, newError(ErrorCodeInternal, "failed to close chat", err)
	}
	chat.Status = model.ChatStatusClosed

	ev := dto.StatusChangedEvent{Protocol: chat.TicketID, Status: string(chat.Status)}
	s.notify(ctx, chat.TicketID, dto.EventStatusChanged, ev)
	s.notify(ctx, model.DashboardRoom, dto.EventStatusChanged, ev)
	return chat, nil
}

func (s *Service) loadChat(ctx context.Context, ticketID string) (model.ChatItem, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return model.ChatItem{}, newError(ErrorCodeValidation, "Protocolo ausente.", nil)
	}
	chat, err := s.repo.GetChat(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatItem{}, newError(ErrorCodeNotFound, "Protocolo não encontrado.", err)
		}
		return model.ChatItem{}, newError(ErrorCodeInternal, "failed to load chat", err)
	}
	return chat, nil
}

// notify is best effort: a failed fan-out never fails the request that
// caused it.
func (s *Service) notify(ctx context.Context, room, event string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, room, event, payload); err != nil {
		s.logger.Warn().Err(err).Str("room", room).Str("event", event).Msg("notify failed")
	}
}
