package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"webchat/internal/dto"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 512 * 1024
)

// link is one physical websocket. A Conn owns at most one link at a time and
// replaces it on reconnect.
type link struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

func newLink(ws *websocket.Conn, buffer int, logger zerolog.Logger) *link {
	return &link{
		ws:     ws,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.done)
		_ = l.ws.Close()
	})
}

// closeGracefully sends a normal closure frame before dropping the socket.
func (l *link) closeGracefully() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = l.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	l.close()
}

func (l *link) keepAlive(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if err := l.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.logger.Debug().Err(err).Msg("[realtime] ping failed")
				l.close()
				return
			}
		}
	}
}

func (l *link) writeMessages() {
	defer l.close()

	for {
		select {
		case <-l.done:
			return
		case frame := <-l.send:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				l.logger.Warn().Err(err).Msg("[realtime] write failed")
				return
			}
			incFrames("out")
		}
	}
}

// readMessages blocks until the socket fails and returns the cause.
func (l *link) readMessages(h Handler, pongWait time.Duration) error {
	l.ws.SetReadLimit(maxFrameSize)
	if pongWait > 0 {
		_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
		l.ws.SetPongHandler(func(string) error {
			return l.ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, frame, err := l.ws.ReadMessage()
		if err != nil {
			return err
		}
		if pongWait > 0 {
			_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
		}
		incFrames("in")

		var env dto.Envelope
		if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
			l.logger.Warn().Err(err).Int("bytes", len(frame)).Msg("[realtime] dropping malformed frame")
			continue
		}
		h.OnEvent(env.Event, env.Data)
	}
}
