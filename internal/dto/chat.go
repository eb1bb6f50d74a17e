package dto

const (
	StatusChatStarted = "chat_iniciado"
	StatusSuccess     = "success"
	StatusError       = "error"
)

type StartChatRequest struct {
	Name  string `json:"nome"`
	Email string `json:"email"`
}

type StartChatResponse struct {
	Status   string `json:"status"`
	Protocol string `json:"protocolo,omitempty"`
	Name     string `json:"nome,omitempty"`
	Email    string `json:"email,omitempty"`
	Message  string `json:"message,omitempty"`
}

type HistoryMessage struct {
	Sender string `json:"remetente"`
	Text   string `json:"texto"`
	Date   string `json:"data"`
}

type ChatHistoryResponse struct {
	Status   string           `json:"status,omitempty"`
	Protocol string           `json:"protocolo"`
	Name     string           `json:"nome"`
	Email    string           `json:"email"`
	Messages []HistoryMessage `json:"mensagens"`
	Message  string           `json:"message,omitempty"`
}

type LastMessage struct {
	Sender string `json:"remetente"`
	Text   string `json:"texto"`
	Date   string `json:"data_hora"`
}

// OpenChat is one dashboard row. Older backends send cliente_nome/cliente_email
// instead of nome_cliente/email_cliente.
type OpenChat struct {
	ID                  string       `json:"id"`
	CustomerName        string       `json:"nome_cliente,omitempty"`
	CustomerEmail       string       `json:"email_cliente,omitempty"`
	LegacyCustomerName  string       `json:"cliente_nome,omitempty"`
	LegacyCustomerEmail string       `json:"cliente_email,omitempty"`
	StartedAt           string       `json:"data_inicio,omitempty"`
	Status              string       `json:"status"`
	LastMessage         *LastMessage `json:"ultima_mensagem,omitempty"`
}

func (c OpenChat) Name() string {
	if c.CustomerName != "" {
		return c.CustomerName
	}
	return c.LegacyCustomerName
}

func (c OpenChat) Email() string {
	if c.CustomerEmail != "" {
		return c.CustomerEmail
	}
	return c.LegacyCustomerEmail
}

type OpenChatsResponse struct {
	Status  string     `json:"status"`
	Chats   []OpenChat `json:"chats"`
	Message string     `json:"message,omitempty"`
}

type StatusResponse struct {
	Status   string `json:"status"`
	Protocol string `json:"protocolo,omitempty"`
	Message  string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}
