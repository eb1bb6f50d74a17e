package session

import (
	"context"
	"fmt"

	"webchat/internal/dto"
	"webchat/internal/model"
)

// OpenDashboard shows the open-chat list and keeps it in sync with the
// dashboard room. Agents only.
func (c *Client) OpenDashboard(ctx context.Context) error {
	return c.call(ctx, func(finish func(error)) {
		if !c.role.CanViewDashboard() {
			c.view.ShowWarning("Only agents can open the dashboard.")
			finish(ErrNotPermitted)
			return
		}
		c.dashboardVisible = true
		if err := c.ensureConnected(); err != nil {
			c.logger.Warn().Err(err).Msg("[session] dashboard without realtime")
		}
		c.refreshDashboard(ctx, finish)
	})
}

// RefreshDashboard refetches the list and replaces it wholesale.
func (c *Client) RefreshDashboard(ctx context.Context) error {
	return c.call(ctx, func(finish func(error)) {
		if !c.role.CanViewDashboard() {
			finish(ErrNotPermitted)
			return
		}
		c.refreshDashboard(ctx, finish)
	})
}

func (c *Client) refreshDashboard(ctx context.Context, finish func(error)) {
	gen := c.dashboardGen
	go func() {
		list, err := c.history.ListOpenSessions(ctx)
		c.post(func() {
			if gen != c.dashboardGen || !c.dashboardVisible {
				finish(ErrSuperseded)
				return
			}
			if err != nil {
				c.logger.Warn().Err(err).Msg("[session] list open chats")
				c.view.ShowError("Could not load open chats: " + err.Error())
				finish(err)
				return
			}
			c.dashboard = list
			c.view.RenderDashboard(append([]model.SessionSummary(nil), list...))
			finish(nil)
		})
	}()
}

// CloseActiveChat marks the active chat closed. The status change comes
// back through the realtime channel.
func (c *Client) CloseActiveChat(ctx context.Context) error {
	return c.call(ctx, func(finish func(error)) {
		if !c.role.IsAgent() {
			c.view.ShowWarning("Only agents can close a chat.")
			finish(ErrNotPermitted)
			return
		}
		ticketID := c.identity.TicketID
		if ticketID == "" {
			finish(ErrNoActiveChat)
			return
		}
		go func() {
			err := c.history.CloseSession(ctx, ticketID)
			c.post(func() {
				if err != nil {
					c.view.ShowError("Could not close the chat: " + err.Error())
				}
				finish(err)
			})
		}()
	})
}

func (c *Client) handleChatOpened(ev dto.ChatOpenedEvent) {
	if !c.role.CanViewDashboard() {
		return
	}
	for _, s := range c.dashboard {
		if s.TicketID == ev.ID {
			return
		}
	}

	entry := model.SessionSummary{
		TicketID:      ev.ID,
		CustomerName:  ev.Customer,
		CustomerEmail: ev.Email,
		Status:        ev.Status,
		StartedAt:     ev.Date,
	}
	if entry.Status == "" {
		entry.Status = string(model.ChatStatusOpen)
	}
	c.dashboard = append([]model.SessionSummary{entry}, c.dashboard...)

	if c.dashboardVisible {
		c.view.PrependDashboardEntry(entry)
		c.view.ShowNotice(fmt.Sprintf("New chat opened by %s (ticket %s).", entry.CustomerName, entry.TicketID))
	}
}

func (c *Client) handleStatusChanged(ev dto.StatusChangedEvent) {
	c.logger.Info().Str("ticket", ev.Protocol).Str("status", ev.Status).Msg("[session] chat status changed")
	if ev.Protocol != "" && ev.Protocol == c.identity.TicketID {
		c.view.ShowNotice(fmt.Sprintf("Chat %s is now %s.", ev.Protocol, ev.Status))
	}
	if c.dashboardVisible {
		c.refreshDashboard(c.runCtx, func(error) {})
	}
}
