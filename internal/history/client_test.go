package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"webchat/internal/dto"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestStartSession(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/iniciar_chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req dto.StartChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Name != "Ana" || req.Email != "a@x.com" {
			t.Errorf("unexpected payload %+v", req)
		}
		writeJSON(w, http.StatusOK, dto.StartChatResponse{
			Status:   dto.StatusChatStarted,
			Protocol: "T123",
			Name:     "Ana Maria",
			Email:    "a@x.com",
		})
	})

	res, err := client.StartSession(context.Background(), " Ana ", "a@x.com")
	if err != nil {
		t.Fatalf("StartSession error: %v", err)
	}
	if res.TicketID != "T123" {
		t.Fatalf("unexpected ticket %s", res.TicketID)
	}
	if res.Name != "Ana Maria" {
		t.Fatalf("server name should win, got %s", res.Name)
	}
}

func TestStartSessionValidation(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Second)
	_, err := client.StartSession(context.Background(), "", "a@x.com")
	if CodeOf(err) != ErrorCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartSessionApplicationError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.StartChatResponse{Status: dto.StatusError, Message: "database busy"})
	})

	_, err := client.StartSession(context.Background(), "Ana", "a@x.com")
	var herr *Error
	if !errors.As(err, &herr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if herr.Code != ErrorCodeApplication || herr.Message != "database busy" {
		t.Fatalf("unexpected error %+v", herr)
	}
}

func TestFetchHistory(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/buscar_chat/T123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, dto.ChatHistoryResponse{
			Status:   dto.StatusSuccess,
			Protocol: "T123",
			Name:     "Ana",
			Email:    "a@x.com",
			Messages: []dto.HistoryMessage{
				{Sender: "cliente", Text: "first", Date: "10:00:00"},
				{Sender: "prestador", Text: "second", Date: "10:00:05"},
			},
		})
	})

	chat, err := client.FetchHistory(context.Background(), "T123")
	if err != nil {
		t.Fatalf("FetchHistory error: %v", err)
	}
	if chat.Name != "Ana" || chat.Email != "a@x.com" {
		t.Fatalf("unexpected header %+v", chat)
	}
	if len(chat.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(chat.Messages))
	}
	if chat.Messages[0].Text != "first" || chat.Messages[1].Text != "second" {
		t.Fatalf("server order not preserved: %+v", chat.Messages)
	}
	if chat.Messages[1].TicketID != "T123" {
		t.Fatalf("messages should carry the ticket id")
	}
}

func TestFetchHistoryNotFoundUsesServerMessage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Status: dto.StatusError, Message: "Protocolo não encontrado."})
	})

	_, err := client.FetchHistory(context.Background(), "missing")
	var herr *Error
	if !errors.As(err, &herr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if herr.Code != ErrorCodeServer || herr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected error %+v", herr)
	}
	if herr.Message != "Protocolo não encontrado." {
		t.Fatalf("unexpected message %q", herr.Message)
	}
}

func TestFetchHistorySynthesizesMessageWithoutBody(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := client.FetchHistory(context.Background(), "T1")
	if err == nil || err.Error() != "server error (502)" {
		t.Fatalf("expected synthesized message, got %v", err)
	}
}

func TestFetchHistoryTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := New(addr, time.Second)
	_, err := client.FetchHistory(context.Background(), "T1")
	if CodeOf(err) != ErrorCodeTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestListOpenSessionsArray(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []dto.OpenChat{
			{ID: "T1", CustomerName: "Ana", CustomerEmail: "a@x.com", Status: "aberto"},
			{ID: "T2", CustomerName: "Bia", CustomerEmail: "b@x.com", Status: "aberto"},
		})
	})

	list, err := client.ListOpenSessions(context.Background())
	if err != nil {
		t.Fatalf("ListOpenSessions error: %v", err)
	}
	if len(list) != 2 || list[0].TicketID != "T1" || list[1].CustomerName != "Bia" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestListOpenSessionsLegacyObject(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","chats":[{"id":"T9","cliente_nome":"Caio","cliente_email":"c@x.com","data_inicio":"2024-01-02 10:00:00","status":"aberto","ultima_mensagem":{"remetente":"cliente","texto":"oi","data_hora":"10:01:00"}}]}`))
	})

	list, err := client.ListOpenSessions(context.Background())
	if err != nil {
		t.Fatalf("ListOpenSessions error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}
	got := list[0]
	if got.CustomerName != "Caio" || got.CustomerEmail != "c@x.com" || got.StartedAt == "" {
		t.Fatalf("legacy fields not mapped: %+v", got)
	}
	if got.LastMessage == nil || got.LastMessage.Text != "oi" {
		t.Fatalf("last message not mapped: %+v", got.LastMessage)
	}
}

func TestCloseSession(t *testing.T) {
	var called atomic.Bool
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called.Store(r.Method == http.MethodPost && r.URL.Path == "/fechar_chat/T1")
		writeJSON(w, http.StatusOK, dto.StatusResponse{Status: dto.StatusSuccess, Protocol: "T1"})
	})

	if err := client.CloseSession(context.Background(), "T1"); err != nil {
		t.Fatalf("CloseSession error: %v", err)
	}
	if !called.Load() {
		t.Fatal("close endpoint not called")
	}
}
