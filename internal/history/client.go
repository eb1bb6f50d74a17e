// Package history talks to the chat bootstrap service over HTTP: starting a
// chat, fetching its history and listing open chats for the agent dashboard.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"webchat/internal/dto"
	"webchat/internal/model"
)

const maxBodyBytes = 4 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Chat struct {
	TicketID string
	Name     string
	Email    string
	Messages []model.Message
}

type StartResult struct {
	TicketID string
	Name     string
	Email    string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// StartSession creates a new chat. The returned name and email are the ones
// stored by the server, which is authoritative.
func (c *Client) StartSession(ctx context.Context, name, email string) (StartResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return StartResult{}, newError(ErrorCodeValidation, 0, "name and email are required", nil)
	}

	body, err := json.Marshal(dto.StartChatRequest{Name: name, Email: email})
	if err != nil {
		return StartResult{}, newError(ErrorCodeValidation, 0, "invalid start request", err)
	}

	var resp dto.StartChatResponse
	if err := c.do(ctx, http.MethodPost, "/iniciar_chat", body, &resp); err != nil {
		return StartResult{}, err
	}

	if resp.Status != dto.StatusChatStarted || resp.Protocol == "" {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error starting chat"
		}
		return StartResult{}, newError(ErrorCodeApplication, http.StatusOK, msg, nil)
	}

	return StartResult{
		TicketID: resp.Protocol,
		Name:     resp.Name,
		Email:    resp.Email,
	}, nil
}

// FetchHistory returns the chat header and its messages in server order.
func (c *Client) FetchHistory(ctx context.Context, ticketID string) (Chat, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return Chat{}, newError(ErrorCodeValidation, 0, "ticket id is required", nil)
	}

	var resp dto.ChatHistoryResponse
	if err := c.do(ctx, http.MethodGet, "/buscar_chat/"+url.PathEscape(ticketID), nil, &resp); err != nil {
		return Chat{}, err
	}
	if resp.Status == dto.StatusError {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error loading chat"
		}
		return Chat{}, newError(ErrorCodeApplication, http.StatusOK, msg, nil)
	}

	chat := Chat{
		TicketID: ticketID,
		Name:     resp.Name,
		Email:    resp.Email,
		Messages: make([]model.Message, len(resp.Messages)),
	}
	if resp.Protocol != "" {
		chat.TicketID = resp.Protocol
	}
	for i, m := range resp.Messages {
		chat.Messages[i] = model.Message{
			TicketID:  chat.TicketID,
			Sender:    m.Sender,
			Text:      m.Text,
			Timestamp: m.Date,
		}
	}
	return chat, nil
}

// ListOpenSessions returns the open chats for the agent dashboard. Both the
// bare array form and the {status, chats} object form are accepted.
func (c *Client) ListOpenSessions(ctx context.Context) ([]model.SessionSummary, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/chats_abertos", nil, &raw); err != nil {
		return nil, err
	}

	var chats []dto.OpenChat
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &chats); err != nil {
			return nil, newError(ErrorCodeDecode, http.StatusOK, "invalid open chats response", err)
		}
	} else {
		var resp dto.OpenChatsResponse
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, newError(ErrorCodeDecode, http.StatusOK, "invalid open chats response", err)
		}
		if resp.Status == dto.StatusError {
			msg := resp.Message
			if msg == "" {
				msg = "unknown error listing chats"
			}
			return nil, newError(ErrorCodeApplication, http.StatusOK, msg, nil)
		}
		chats = resp.Chats
	}

	out := make([]model.SessionSummary, len(chats))
	for i, ch := range chats {
		out[i] = toSessionSummary(ch)
	}
	return out, nil
}

// CloseSession marks a chat as closed. The server notifies listeners through
// the realtime channel.
func (c *Client) CloseSession(ctx context.Context, ticketID string) error {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return newError(ErrorCodeValidation, 0, "ticket id is required", nil)
	}

	var resp dto.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/fechar_chat/"+url.PathEscape(ticketID), nil, &resp); err != nil {
		return err
	}
	if resp.Status == dto.StatusError {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error closing chat"
		}
		return newError(ErrorCodeApplication, http.StatusOK, msg, nil)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return newError(ErrorCodeTransport, 0, "could not build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError(ErrorCodeTransport, 0, "could not reach the chat server", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return newError(ErrorCodeTransport, resp.StatusCode, "could not read server response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serverErrorMessage(resp.StatusCode)
		var errResp dto.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && strings.TrimSpace(errResp.Message) != "" {
			msg = errResp.Message
		}
		return newError(ErrorCodeServer, resp.StatusCode, msg, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return newError(ErrorCodeDecode, resp.StatusCode, "invalid server response", err)
	}
	return nil
}

func toSessionSummary(ch dto.OpenChat) model.SessionSummary {
	s := model.SessionSummary{
		TicketID:      ch.ID,
		CustomerName:  ch.Name(),
		CustomerEmail: ch.Email(),
		Status:        ch.Status,
		StartedAt:     ch.StartedAt,
	}
	if ch.LastMessage != nil {
		s.LastMessage = &model.Message{
			TicketID:  ch.ID,
			Sender:    ch.LastMessage.Sender,
			Text:      ch.LastMessage.Text,
			Timestamp: ch.LastMessage.Date,
		}
	}
	return s
}
