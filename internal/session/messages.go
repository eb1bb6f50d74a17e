package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"webchat/internal/dto"
	"webchat/internal/model"
	"webchat/internal/realtime"
)

// Send posts text to the active chat. Nothing is rendered locally: the
// message appears when the server echoes it back.
func (c *Client) Send(ctx context.Context, text string) error {
	return c.call(ctx, func(finish func(error)) {
		text := strings.TrimSpace(text)
		switch {
		case text == "":
			finish(ErrEmptyMessage)
			return
		case c.identity.TicketID == "":
			finish(ErrNoActiveChat)
			return
		case !c.connected():
			c.view.ShowWarning("You are not connected to the chat. Please try again in a moment.")
			finish(ErrNotConnected)
			return
		}

		err := c.emit(dto.EventSendMessage, dto.SendMessageRequest{
			Protocol: c.identity.TicketID,
			Sender:   c.role.Label(),
			Text:     text,
		})
		switch {
		case errors.Is(err, realtime.ErrNotConnected), errors.Is(err, realtime.ErrClosed):
			c.view.ShowWarning("You are not connected to the chat. Please try again in a moment.")
			finish(ErrNotConnected)
		case err != nil:
			c.view.ShowError("Could not send the message: " + err.Error())
			finish(err)
		default:
			incMessages("sent")
			finish(nil)
		}
	})
}

func (c *Client) handleEvent(event string, data json.RawMessage) {
	switch event {
	case dto.EventRoomJoined:
		var res dto.RoomJoinResult
		if !c.decode(event, data, &res) {
			return
		}
		if res.Status == dto.StatusError {
			c.view.ShowError("Could not join the chat room: " + res.Message)
			return
		}
		if res.Protocol != "" {
			c.joined[res.Protocol] = true
		}
		c.logger.Debug().Str("room", res.Protocol).Str("message", res.Message).Msg("[session] room joined")

	case dto.EventNewMessage:
		var ev dto.NewMessageEvent
		if !c.decode(event, data, &ev) {
			return
		}
		c.receive(model.Message{TicketID: ev.Protocol, Sender: ev.Sender, Text: ev.Text, Timestamp: ev.Date})

	case dto.EventStatusChanged:
		var ev dto.StatusChangedEvent
		if !c.decode(event, data, &ev) {
			return
		}
		c.handleStatusChanged(ev)

	case dto.EventChatOpened:
		var ev dto.ChatOpenedEvent
		if !c.decode(event, data, &ev) {
			return
		}
		c.handleChatOpened(ev)

	case dto.EventError:
		var ev dto.ErrorEvent
		if !c.decode(event, data, &ev) {
			return
		}
		c.view.ShowError("The chat server rejected the request: " + ev.Message)

	default:
		c.logger.Debug().Str("event", event).Msg("[session] unhandled event")
	}
}

func (c *Client) decode(event string, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("[session] decode event")
		return false
	}
	return true
}

// receive renders msg only when it belongs to the active chat.
func (c *Client) receive(msg model.Message) {
	if c.identity.TicketID == "" || msg.TicketID != c.identity.TicketID {
		incMessages("dropped")
		c.logger.Debug().Str("ticket", msg.TicketID).Msg("[session] message for another room dropped")
		return
	}
	c.render(msg)
}

// render is the single path for history and live messages.
func (c *Client) render(msg model.Message) {
	c.view.AppendMessage(RenderedMessage{
		Sender:    msg.Sender,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
		Self:      c.identity.IsSelf(msg.Sender),
	})
	incMessages("rendered")
}
