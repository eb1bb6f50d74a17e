package dto

import "encoding/json"

// Realtime channel event names.
const (
	EventJoinRoom    = "entrar_sala"
	EventSendMessage = "enviar_mensagem"
	EventLeaveRoom   = "sair_sala"

	EventRoomJoined    = "sala_entrada"
	EventNewMessage    = "nova_mensagem"
	EventStatusChanged = "chat_status_atualizado"
	EventChatOpened    = "novo_chat_aberto"
	EventError         = "erro"
)

// Envelope is the single frame shape carried over the realtime channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame marshals event and payload into one wire frame.
func Frame(event string, payload any) ([]byte, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

type JoinRoomRequest struct {
	Protocol string `json:"protocolo"`
	IsAgent  bool   `json:"is_atendente"`
}

type SendMessageRequest struct {
	Protocol string `json:"protocolo"`
	Sender   string `json:"remetente"`
	Text     string `json:"texto"`
}

type LeaveRoomRequest struct {
	Protocol string `json:"protocolo"`
}

type RoomJoinResult struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Protocol string `json:"protocolo,omitempty"`
}

type NewMessageEvent struct {
	Protocol string `json:"protocolo"`
	Sender   string `json:"remetente"`
	Text     string `json:"texto"`
	Date     string `json:"data"`
}

type StatusChangedEvent struct {
	Protocol string `json:"protocolo"`
	Status   string `json:"status"`
}

type ChatOpenedEvent struct {
	ID       string `json:"id"`
	Customer string `json:"cliente"`
	Email    string `json:"email,omitempty"`
	Status   string `json:"status,omitempty"`
	Date     string `json:"data,omitempty"`
}

// ErrorEvent reports a rejected client request.
type ErrorEvent struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}
