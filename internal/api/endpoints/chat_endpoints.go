package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"webchat/internal/dto"
	chatservice "webchat/internal/service/chat"
)

type ChatEndpoints interface {
	StartChat(http.ResponseWriter, *http.Request) error
	FindChat(http.ResponseWriter, *http.Request) error
	OpenChats(http.ResponseWriter, *http.Request) error
	CloseChat(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
}

type ChatPaths struct {
	FindPrefix  string
	ClosePrefix string
}

type chatEndpoints struct {
	service *chatservice.Service
	handler http.Handler
	paths   ChatPaths
}

func NewChatEndpoints(service *chatservice.Service, handler http.Handler, paths ChatPaths) ChatEndpoints {
	return &chatEndpoints{
		service: service,
		handler: handler,
		paths:   paths,
	}
}

func (h *chatEndpoints) StartChat(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleStartChat,
	})
}

func (h *chatEndpoints) FindChat(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleFindChat,
	})
}

func (h *chatEndpoints) OpenChats(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleOpenChats,
	})
}

func (h *chatEndpoints) CloseChat(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleCloseChat,
	})
}

func (h *chatEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	if h.handler == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Websocket not available",
			ErrorLog:   fmt.Errorf("websocket handler missing"),
		}
	}
	h.handler.ServeHTTP(w, r)
	return nil
}

func (h *chatEndpoints) handleStartChat(w http.ResponseWriter, r *http.Request) error {
	var req dto.StartChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request body",
			ErrorLog:   fmt.Errorf("decode start chat: %w", err),
		}
	}

	chat, err := h.service.CreateChat(r.Context(), req.Name, req.Email)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.StartChatResponse{
		Status:   dto.StatusChatStarted,
		Protocol: chat.TicketID,
		Name:     chat.CustomerName,
		Email:    chat.CustomerEmail,
	})
}

func (h *chatEndpoints) handleFindChat(w http.ResponseWriter, r *http.Request) error {
	ticketID, err := pathParam(r.URL.Path, h.paths.FindPrefix)
	if err != nil {
		return err
	}

	res, err := h.service.GetChat(r.Context(), ticketID)
	if err != nil {
		return h.serviceError(err)
	}

	msgs := make([]dto.HistoryMessage, 0, len(res.Messages))
	for _, m := range res.Messages {
		msgs = append(msgs, dto.HistoryMessage{Sender: m.Sender, Text: m.Text, Date: m.SentAt})
	}

	return WriteJSON(w, http.StatusOK, dto.ChatHistoryResponse{
		Status:   dto.StatusSuccess,
		Protocol: res.Chat.TicketID,
		Name:     res.Chat.CustomerName,
		Email:    res.Chat.CustomerEmail,
		Messages: msgs,
	})
}

func (h *chatEndpoints) handleOpenChats(w http.ResponseWriter, r *http.Request) error {
	open, err := h.service.ListOpenChats(r.Context())
	if err != nil {
		return h.serviceError(err)
	}

	chats := make([]dto.OpenChat, 0, len(open))
	for _, item := range open {
		row := dto.OpenChat{
			ID:            item.Chat.TicketID,
			CustomerName:  item.Chat.CustomerName,
			CustomerEmail: item.Chat.CustomerEmail,
			StartedAt:     item.Chat.StartedAt,
			Status:        string(item.Chat.Status),
		}
		if item.LastMessage != nil {
			row.LastMessage = &dto.LastMessage{
				Sender: item.LastMessage.Sender,
				Text:   item.LastMessage.Text,
				Date:   item.LastMessage.SentAt,
			}
		}
		chats = append(chats, row)
	}

	return WriteJSON(w, http.StatusOK, dto.OpenChatsResponse{Status: dto.StatusSuccess, Chats: chats})
}

func (h *chatEndpoints) handleCloseChat(w http.ResponseWriter, r *http.Request) error {
	ticketID, err := pathParam(r.URL.Path, h.paths.ClosePrefix)
	if err != nil {
		return err
	}

	chat, err := h.service.CloseChat(r.Context(), ticketID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.StatusResponse{
		Status:   dto.StatusSuccess,
		Protocol: chat.TicketID,
		Message:  "Chat encerrado.",
	})
}

func (h *chatEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *chatservice.Error
	if !errors.As(err, &svcErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("chat service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case chatservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeConflict:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: svcErr.Message, ErrorLog: logErr}
	}
}
