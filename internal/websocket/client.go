package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"webchat/internal/dto"
)

const (
	pingPeriod = 30 * time.Second
	pongWait   = 2 * pingPeriod
	writeWait  = 10 * time.Second
	readLimit  = 512 * 1024
)

type WSClient struct {
	Conn     *websocket.Conn
	Send     chan []byte
	ID       string
	rooms    map[string]struct{} // owned by the hub loop
	done     chan struct{}
	mu       sync.Mutex
	isClosed bool
	logger   zerolog.Logger
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			cl.mu.Unlock()

			if err != nil {
				cl.logger.Debug().Err(err).Msg("[websocket] ping failed")
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case frame, ok := <-cl.Send:
			if !ok {
				cl.mu.Lock()
				_ = cl.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				cl.mu.Unlock()
				return
			}

			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			_ = cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := cl.Conn.WriteMessage(websocket.TextMessage, frame)
			cl.mu.Unlock()

			if err != nil {
				cl.logger.Warn().Err(err).Msg("[websocket] write failed")
				return
			}
		}
	}
}

func (cl *WSClient) readMessage(h *Handler) {
	defer func() {
		if r := recover(); r != nil {
			cl.logger.Error().Interface("panic", r).Msg("[websocket] recovered in read loop")
		}
		close(cl.done)
		h.hub.unregister(cl)
		cl.logger.Info().Msg("[websocket] client disconnected")
	}()

	cl.Conn.SetReadLimit(readLimit)
	_ = cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.Conn.SetPongHandler(func(string) error {
		return cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := cl.Conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && (closeErr.Code == websocket.CloseNormalClosure ||
				closeErr.Code == websocket.CloseGoingAway ||
				closeErr.Code == websocket.CloseNoStatusReceived) {
				return
			}
			cl.logger.Debug().Err(err).Msg("[websocket] read failed")
			return
		}

		var env dto.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			cl.logger.Warn().Err(err).Msg("[websocket] malformed frame")
			continue
		}
		incFrames(env.Event)
		h.dispatch(cl, env)
	}
}
