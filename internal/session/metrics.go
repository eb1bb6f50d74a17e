package session

import "github.com/prometheus/client_golang/prometheus"

var (
	sessMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_messages_total",
			Help: "Chat messages handled by the session client by outcome.",
		},
		[]string{"outcome"},
	)
	sessJoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_room_joins_total",
			Help: "Join-room requests sent by kind of room.",
		},
		[]string{"room"},
	)
)

func init() {
	prometheus.MustRegister(sessMessages, sessJoins)
}

func incMessages(outcome string) {
	sessMessages.WithLabelValues(outcome).Inc()
}

func incJoins(room string) {
	sessJoins.WithLabelValues(room).Inc()
}
