package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"webchat/internal/dto"
)

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_devserver_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_devserver_ws_rooms",
			Help: "Current number of websocket rooms with members.",
		},
	)
	wsMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_devserver_ws_messages_delivered_total",
			Help: "Total websocket frames delivered to room members.",
		},
	)
	wsFramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_devserver_ws_frames_received_total",
			Help: "Frames received from clients by event.",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsRooms, wsMessagesDelivered, wsFramesReceived)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setRooms(count int) {
	wsRooms.Set(float64(count))
}

func addDelivered(count int) {
	wsMessagesDelivered.Add(float64(count))
}

func incFrames(event string) {
	switch event {
	case dto.EventJoinRoom, dto.EventLeaveRoom, dto.EventSendMessage:
	default:
		event = "unknown"
	}
	wsFramesReceived.WithLabelValues(event).Inc()
}
