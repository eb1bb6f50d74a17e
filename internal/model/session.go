package model

// Role is the closed set of identities a session client can take.
type Role int

const (
	RoleCustomer Role = iota + 1
	RoleAgent
)

const (
	customerLabel = "cliente"
	agentLabel    = "prestador"

	// AgentDisplayName is the name every agent presents in a chat.
	AgentDisplayName = "Atendente"
)

// Label is the sender tag used on the wire for messages sent with this role.
func (r Role) Label() string {
	switch r {
	case RoleCustomer:
		return customerLabel
	case RoleAgent:
		return agentLabel
	default:
		return ""
	}
}

func (r Role) String() string {
	if l := r.Label(); l != "" {
		return l
	}
	return "unknown"
}

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAgent
}

func (r Role) IsAgent() bool {
	return r == RoleAgent
}

func (r Role) CanViewDashboard() bool {
	return r == RoleAgent
}

// CanStartChat reports whether the role may open a brand new ticket.
func (r Role) CanStartChat() bool {
	return r == RoleCustomer
}

// ParseRole maps a wire or CLI label back to a Role.
func ParseRole(s string) (Role, bool) {
	switch s {
	case customerLabel, "customer":
		return RoleCustomer, true
	case agentLabel, "agent":
		return RoleAgent, true
	default:
		return 0, false
	}
}

// Identity is the local identity for one chat view.
type Identity struct {
	TicketID    string
	Role        Role
	DisplayName string
	Email       string
}

// IsSelf reports whether a message sender label belongs to this identity.
func (id Identity) IsSelf(sender string) bool {
	if sender == "" {
		return false
	}
	return sender == id.Role.Label() || (id.DisplayName != "" && sender == id.DisplayName)
}

type Message struct {
	TicketID  string
	Sender    string
	Text      string
	Timestamp string
}

type SessionSummary struct {
	TicketID      string
	CustomerName  string
	CustomerEmail string
	Status        string
	StartedAt     string
	LastMessage   *Message
}
