package websocket

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

var errHubStopped = errors.New("websocket: hub stopped")

type Hub struct {
	clients    map[string]*WSClient
	rooms      map[string]map[string]*WSClient
	Register   chan *WSClient
	Unregister chan *WSClient
	Join       chan subscription
	Leave      chan subscription
	Broadcast  chan *Delivery
	stopped    chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*WSClient),
		rooms:      make(map[string]map[string]*WSClient),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Join:       make(chan subscription),
		Leave:      make(chan subscription),
		Broadcast:  make(chan *Delivery, 64),
		stopped:    make(chan struct{}),
	}
}

// Deliver queues d for the hub loop.
func (h *Hub) Deliver(ctx context.Context, d *Delivery) error {
	select {
	case h.Broadcast <- d:
		return nil
	case <-h.stopped:
		return errHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) register(cl *WSClient) bool {
	select {
	case h.Register <- cl:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) unregister(cl *WSClient) {
	select {
	case h.Unregister <- cl:
	case <-h.stopped:
	}
}

func (h *Hub) join(cl *WSClient, room string) {
	select {
	case h.Join <- subscription{client: cl, room: room}:
	case <-h.stopped:
	}
}

func (h *Hub) leaveRoom(cl *WSClient, room string) {
	select {
	case h.Leave <- subscription{client: cl, room: room}:
	case <-h.stopped:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for _, client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.Register:
			h.clients[client.ID] = client
			incConnections()

		case client := <-h.Unregister:
			if _, ok := h.clients[client.ID]; ok {
				h.drop(client)
			}

		case sub := <-h.Join:
			if _, ok := h.clients[sub.client.ID]; !ok {
				continue
			}
			room, ok := h.rooms[sub.room]
			if !ok {
				room = make(map[string]*WSClient)
				h.rooms[sub.room] = room
				setRooms(len(h.rooms))
			}
			room[sub.client.ID] = sub.client
			sub.client.rooms[sub.room] = struct{}{}

		case sub := <-h.Leave:
			h.leave(sub.client, sub.room)

		case d := <-h.Broadcast:
			if d.ClientID != "" {
				if client, ok := h.clients[d.ClientID]; ok {
					h.send(client, d.Frame)
				}
				continue
			}
			room, ok := h.rooms[d.Room]
			if !ok {
				log.Debug().Str("room", d.Room).Msg("[websocket] broadcast to empty room")
				continue
			}
			delivered := 0
			for _, client := range room {
				if h.send(client, d.Frame) {
					delivered++
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}

// send drops a client whose buffer is full rather than stall the hub.
func (h *Hub) send(client *WSClient, frame []byte) bool {
	select {
	case client.Send <- frame:
		return true
	default:
		log.Warn().Str("client", client.ID).Msg("[websocket] send buffer full, dropping client")
		h.drop(client)
		return false
	}
}

func (h *Hub) leave(client *WSClient, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(room, client.ID)
	delete(client.rooms, roomID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
		setRooms(len(h.rooms))
	}
}

func (h *Hub) drop(client *WSClient) {
	for roomID := range client.rooms {
		h.leave(client, roomID)
	}
	delete(h.clients, client.ID)
	close(client.Send)
	decConnections()
}
