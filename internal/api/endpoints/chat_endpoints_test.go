package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"webchat/internal/api"
	"webchat/internal/dto"
	"webchat/internal/model"
	"webchat/internal/queue"
	chatservice "webchat/internal/service/chat"
)

type notification struct {
	room  string
	event string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(ctx context.Context, room, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{room: room, event: event})
	return nil
}

type testEnv struct {
	mux      *http.ServeMux
	service  *chatservice.Service
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	queueManager := queue.NewRequestQueueManager(10, 2)
	t.Cleanup(queueManager.Shutdown)

	notifier := &recordingNotifier{}
	clock := time.Date(2024, 3, 5, 13, 4, 5, 0, time.UTC)
	service := chatservice.NewWithRepository(chatservice.NewMemoryRepository(), notifier, func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}, time.FixedZone("BRT", -3*60*60))

	logger := zerolog.Nop()
	registry := prometheus.NewRegistry()
	server := api.NewAPIServer(api.Config{
		ListenAddr: ":0",
		Registerer: registry,
		Gatherer:   registry,
		Logger:     &logger,
	}, queueManager, service, nil)

	chatEndpoints := NewChatEndpoints(service, nil, ChatPaths{FindPrefix: "/buscar_chat/", ClosePrefix: "/fechar_chat/"})
	mux := http.NewServeMux()
	mux.HandleFunc("/iniciar_chat", server.MakeHTTPHandleFunc(chatEndpoints.StartChat))
	mux.HandleFunc("/buscar_chat/", server.MakeHTTPHandleFunc(chatEndpoints.FindChat))
	mux.HandleFunc("/chats_abertos", server.MakeHTTPHandleFunc(chatEndpoints.OpenChats))
	mux.HandleFunc("/fechar_chat/", server.MakeHTTPHandleFunc(chatEndpoints.CloseChat))
	mux.HandleFunc("/ws", server.MakeHTTPHandleFunc(chatEndpoints.Websocket))

	return &testEnv{mux: mux, service: service, notifier: notifier}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestStartChatEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/iniciar_chat", dto.StartChatRequest{Name: "Ana", Email: "a@x.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[dto.StartChatResponse](t, rec)
	if resp.Status != dto.StatusChatStarted || resp.Protocol == "" || resp.Name != "Ana" || resp.Email != "a@x.com" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(env.notifier.sent) != 1 || env.notifier.sent[0].room != model.DashboardRoom {
		t.Fatalf("expected dashboard notification, got %+v", env.notifier.sent)
	}
}

func TestStartChatRequiresFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/iniciar_chat", dto.StartChatRequest{Name: "Ana"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeBody[dto.ErrorResponse](t, rec)
	if resp.Status != dto.StatusError || resp.Message != "Nome e email são obrigatórios" {
		t.Fatalf("unexpected error body: %+v", resp)
	}

	rec = env.do(t, http.MethodGet, "/iniciar_chat", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestFindChatEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chat, err := env.service.CreateChat(ctx, "Ana", "a@x.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.service.PostMessage(ctx, chat.TicketID, "cliente", "Olá"); err != nil {
		t.Fatalf("post: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/buscar_chat/"+chat.TicketID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[dto.ChatHistoryResponse](t, rec)
	if resp.Protocol != chat.TicketID || resp.Name != "Ana" || len(resp.Messages) != 1 {
		t.Fatalf("unexpected history: %+v", resp)
	}
	if m := resp.Messages[0]; m.Sender != "cliente" || m.Text != "Olá" || len(m.Date) != len("15:04:05") {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestFindChatNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/buscar_chat/NOPE", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if resp := decodeBody[dto.ErrorResponse](t, rec); resp.Message != "Protocolo não encontrado." {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestOpenChatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, _ := env.service.CreateChat(ctx, "Ana", "a@x.com")
	second, _ := env.service.CreateChat(ctx, "Bia", "b@x.com")
	env.service.PostMessage(ctx, first.TicketID, "prestador", "Oi")

	rec := env.do(t, http.MethodGet, "/chats_abertos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBody[dto.OpenChatsResponse](t, rec)
	if resp.Status != dto.StatusSuccess || len(resp.Chats) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Chats[0].ID != first.TicketID || resp.Chats[1].ID != second.TicketID {
		t.Fatalf("expected oldest first, got %s, %s", resp.Chats[0].ID, resp.Chats[1].ID)
	}
	if resp.Chats[0].Name() != "Ana" || resp.Chats[0].LastMessage == nil || resp.Chats[0].LastMessage.Text != "Oi" {
		t.Fatalf("unexpected first row: %+v", resp.Chats[0])
	}
}

func TestCloseChatEndpoint(t *testing.T) {
	env := newTestEnv(t)
	chat, _ := env.service.CreateChat(context.Background(), "Ana", "a@x.com")

	rec := env.do(t, http.MethodPost, "/fechar_chat/"+chat.TicketID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/chats_abertos", nil)
	if resp := decodeBody[dto.OpenChatsResponse](t, rec); len(resp.Chats) != 0 {
		t.Fatalf("closed chat should leave the open list, got %+v", resp.Chats)
	}

	rec = env.do(t, http.MethodPost, "/fechar_chat/", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing ticket, got %d", rec.Code)
	}
}

func TestWebsocketUnavailable(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/ws", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
