package session

import (
	"fmt"

	"webchat/internal/dto"
	"webchat/internal/model"
)

// ensureConnected makes sure exactly one live connection object exists. An
// object that is still retrying in the background is reused; a new one is
// created only when none exists or the previous one gave up.
func (c *Client) ensureConnected() error {
	if c.conn != nil && !c.conn.Closed() {
		return nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	c.connSerial++
	clear(c.joined)
	c.disconnected = false
	c.connectErrorShown = false

	conn, err := c.dial(c.realtimeURL, &channelEvents{client: c, serial: c.connSerial})
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.realtimeURL).Msg("[session] dial realtime")
		c.view.ShowError("Could not connect to the chat server: " + err.Error())
		return fmt.Errorf("connect realtime: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *Client) teardownConnection() {
	// Bumping the serial drops callbacks still queued from the old object.
	c.connSerial++
	clear(c.joined)
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) connected() bool {
	return c.conn != nil && c.conn.Connected()
}

// handleConnect runs on every successful (re)connect and restores room
// membership, which the server does not keep across connections.
func (c *Client) handleConnect() {
	c.logger.Info().Str("ticket", c.identity.TicketID).Msg("[session] realtime connected")
	c.connectErrorShown = false

	if c.identity.TicketID != "" {
		c.joinRoom(c.identity.TicketID, "content")
	}
	if c.role.CanViewDashboard() {
		c.joinRoom(model.DashboardRoom, "dashboard")
	}

	if c.disconnected {
		c.disconnected = false
		c.view.ShowNotice("Reconnected to the chat server.")
	}
}

func (c *Client) handleDisconnect(err error) {
	c.logger.Warn().Err(err).Msg("[session] realtime disconnected")
	c.disconnected = true
	clear(c.joined)
	if c.identity.TicketID != "" || c.dashboardVisible {
		c.view.ShowNotice("Disconnected from the chat server, reconnecting...")
	}
}

func (c *Client) handleConnectError(err error) {
	c.logger.Warn().Err(err).Msg("[session] realtime connect error")
	c.disconnected = true
	if c.connectErrorShown {
		return
	}
	c.connectErrorShown = true
	c.view.ShowError("Could not connect to the chat server: " + err.Error())
}

func (c *Client) joinRoom(room, kind string) {
	req := dto.JoinRoomRequest{Protocol: room, IsAgent: c.role.IsAgent()}
	if err := c.emit(dto.EventJoinRoom, req); err != nil {
		c.logger.Warn().Err(err).Str("room", room).Msg("[session] join room")
		return
	}
	incJoins(kind)
	c.logger.Debug().Str("room", room).Msg("[session] join requested")
}

func (c *Client) leaveRoom(room string) {
	delete(c.joined, room)
	if err := c.emit(dto.EventLeaveRoom, dto.LeaveRoomRequest{Protocol: room}); err != nil {
		c.logger.Debug().Err(err).Str("room", room).Msg("[session] leave room")
	}
}

func (c *Client) emit(event string, payload any) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.Emit(event, payload)
}
