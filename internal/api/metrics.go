package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webchat/internal/queue"
)

const otherRoute = "other"

// Fixed chat routes, and routes whose last segment is a ticket id.
var (
	fixedRoutes = map[string]bool{
		"iniciar_chat":  true,
		"chats_abertos": true,
		"ws":            true,
		"health":        true,
		"metrics":       true,
	}
	ticketRoutes = map[string]bool{
		"buscar_chat": true,
		"fechar_chat": true,
	}
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	active   prometheus.Gauge
	upgrades prometheus.Counter
	gatherer prometheus.Gatherer
}

func newMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer, listenAddr string, q *queue.RequestQueueManager) *httpMetrics {
	factory := promauto.With(reg)
	server := prometheus.Labels{"listen_addr": listenAddr}

	m := &httpMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "chat_devserver_http_requests_total",
			Help:        "Bootstrap API requests by route and status.",
			ConstLabels: server,
		}, []string{"method", "route", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "chat_devserver_http_request_duration_seconds",
			Help:        "Bootstrap API latency by route.",
			Buckets:     []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			ConstLabels: server,
		}, []string{"method", "route", "status"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "chat_devserver_http_active_requests",
			Help:        "Requests being served right now, realtime upgrades excluded once hijacked.",
			ConstLabels: server,
		}),
		upgrades: factory.NewCounter(prometheus.CounterOpts{
			Name:        "chat_devserver_realtime_upgrades_total",
			Help:        "Connections handed over to the realtime hub.",
			ConstLabels: server,
		}),
		gatherer: gatherer,
	}

	if q != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "chat_devserver_request_queue_depth",
			Help:        "Handler jobs waiting for a worker.",
			ConstLabels: server,
		}, func() float64 { return float64(len(q.JobQueue)) })
	}
	return m
}

func (m *httpMetrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *httpMetrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.active.Inc()
		tw := &trackingWriter{ResponseWriter: w, status: http.StatusOK, onHijack: func() {
			m.active.Dec()
			m.upgrades.Inc()
		}}
		started := time.Now()
		next.ServeHTTP(tw, r)
		if !tw.hijacked {
			m.active.Dec()
		}

		labels := []string{r.Method, routeLabel(r.URL.Path), strconv.Itoa(tw.status)}
		m.requests.WithLabelValues(labels...).Inc()
		m.latency.WithLabelValues(labels...).Observe(time.Since(started).Seconds())
	})
}

// routeLabel maps a request path to its chat route, dropping any mount prefix
// and the ticket id. Unknown paths share one label.
func routeLabel(p string) string {
	segments := strings.Split(strings.Trim(path.Clean("/"+p), "/"), "/")
	for i, seg := range segments {
		last := i == len(segments)-1
		switch {
		case ticketRoutes[seg] && i == len(segments)-2:
			return "/" + seg + "/:protocolo"
		case fixedRoutes[seg] && last:
			return "/" + seg
		}
	}
	return otherRoute
}

// trackingWriter records the response status and notices realtime upgrades.
type trackingWriter struct {
	http.ResponseWriter
	status   int
	hijacked bool
	onHijack func()
}

func (tw *trackingWriter) WriteHeader(status int) {
	tw.status = status
	tw.ResponseWriter.WriteHeader(status)
}

func (tw *trackingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := tw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer cannot be hijacked")
	}
	conn, rw, err := h.Hijack()
	if err != nil {
		return nil, nil, err
	}
	tw.status = http.StatusSwitchingProtocols
	tw.hijacked = true
	tw.onHijack()
	return conn, rw, nil
}
