package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	rtConnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_realtime_connects_total",
			Help: "Successful realtime channel connections, including reconnects.",
		},
	)
	rtDisconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_realtime_disconnects_total",
			Help: "Realtime channel connections lost after being established.",
		},
	)
	rtConnectErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_realtime_connect_errors_total",
			Help: "Failed realtime channel dial attempts.",
		},
	)
	rtFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_realtime_frames_total",
			Help: "Realtime frames by direction.",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(rtConnects, rtDisconnects, rtConnectErrors, rtFrames)
}

func incConnects() {
	rtConnects.Inc()
}

func incDisconnects() {
	rtDisconnects.Inc()
}

func incConnectErrors() {
	rtConnectErrors.Inc()
}

func incFrames(direction string) {
	rtFrames.WithLabelValues(direction).Inc()
}
