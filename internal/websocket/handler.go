package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"webchat/internal/dto"
	"webchat/internal/model"
)

// ChatService is what the realtime handler needs from the chat backend.
type ChatService interface {
	Exists(ctx context.Context, ticketID string) bool
	PostMessage(ctx context.Context, ticketID, sender, text string) (model.MessageItem, error)
}

type Handler struct {
	hub      *Hub
	chats    ChatService
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler serves the realtime endpoint. An empty allowedOrigins, or one
// containing "*", accepts every origin.
func NewHandler(hub *Hub, chats ChatService, allowedOrigins []string) *Handler {
	return &Handler{
		hub:   hub,
		chats: chats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: log.With().Str("component", "websocket").Logger(),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn().Err(err).Msg("[websocket] upgrade failed")
		return
	}

	id := uuid.NewString()
	cl := &WSClient{
		Conn:   conn,
		Send:   make(chan []byte, 32),
		ID:     id,
		rooms:  make(map[string]struct{}),
		done:   make(chan struct{}),
		logger: h.logger.With().Str("client", id).Logger(),
	}
	if !h.hub.register(cl) {
		conn.Close()
		return
	}
	cl.logger.Info().Str("remote", r.RemoteAddr).Msg("[websocket] client connected")

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h)
}

func (h *Handler) dispatch(cl *WSClient, env dto.Envelope) {
	ctx := context.Background()

	switch env.Event {
	case dto.EventJoinRoom:
		var req dto.JoinRoomRequest
		if !h.decode(cl, env, &req) {
			return
		}
		room := strings.TrimSpace(req.Protocol)
		switch {
		case room == "":
			h.reply(cl, dto.EventRoomJoined, dto.RoomJoinResult{Status: dto.StatusError, Message: "Protocolo ausente."})
			return
		case room == model.DashboardRoom && !req.IsAgent:
			h.reply(cl, dto.EventRoomJoined, dto.RoomJoinResult{Status: dto.StatusError, Message: "Apenas atendentes podem entrar no painel."})
			return
		case room != model.DashboardRoom && !h.chats.Exists(ctx, room):
			h.reply(cl, dto.EventRoomJoined, dto.RoomJoinResult{Status: dto.StatusError, Message: "Chat não encontrado."})
			return
		}
		h.hub.join(cl, room)
		cl.logger.Debug().Str("room", room).Bool("agent", req.IsAgent).Msg("[websocket] joined room")
		h.reply(cl, dto.EventRoomJoined, dto.RoomJoinResult{Status: dto.StatusSuccess, Message: "Entrou na sala " + room, Protocol: room})

	case dto.EventLeaveRoom:
		var req dto.LeaveRoomRequest
		if !h.decode(cl, env, &req) {
			return
		}
		h.hub.leaveRoom(cl, strings.TrimSpace(req.Protocol))

	case dto.EventSendMessage:
		var req dto.SendMessageRequest
		if !h.decode(cl, env, &req) {
			return
		}
		if _, err := h.chats.PostMessage(ctx, req.Protocol, req.Sender, req.Text); err != nil {
			cl.logger.Warn().Err(err).Str("room", req.Protocol).Msg("[websocket] message rejected")
			h.reply(cl, dto.EventError, dto.ErrorEvent{Event: env.Event, Message: err.Error()})
		}

	default:
		h.reply(cl, dto.EventError, dto.ErrorEvent{Event: env.Event, Message: "unknown event"})
	}
}

func (h *Handler) decode(cl *WSClient, env dto.Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		h.reply(cl, dto.EventError, dto.ErrorEvent{Event: env.Event, Message: "invalid payload"})
		return false
	}
	return true
}

func (h *Handler) reply(cl *WSClient, event string, payload any) {
	frame, err := dto.Frame(event, payload)
	if err != nil {
		cl.logger.Error().Err(err).Str("event", event).Msg("[websocket] encode reply")
		return
	}
	if err := h.hub.Deliver(context.Background(), &Delivery{ClientID: cl.ID, Frame: frame}); err != nil {
		cl.logger.Debug().Err(err).Msg("[websocket] reply dropped")
	}
}
