package session

import (
	"context"
	"strings"

	"webchat/internal/history"
)

// StartChat opens a new chat for name/email and enters it. It returns the
// ticket id issued by the server.
func (c *Client) StartChat(ctx context.Context, name, email string) (string, error) {
	issued := make(chan string, 1)
	err := c.call(ctx, func(finish func(error)) {
		if !c.role.CanStartChat() {
			c.view.ShowWarning("Only customers can start a new chat.")
			finish(ErrNotPermitted)
			return
		}
		name, email := strings.TrimSpace(name), strings.TrimSpace(email)
		if name == "" || email == "" {
			c.view.ShowWarning("Please fill in your name and email to start a chat.")
			finish(ErrMissingFields)
			return
		}

		gen := c.nextGeneration()
		go func() {
			res, err := c.history.StartSession(ctx, name, email)
			c.post(func() {
				if gen != c.generation {
					finish(ErrSuperseded)
					return
				}
				if err != nil {
					c.failBootstrap("Could not start the chat", err)
					finish(err)
					return
				}
				c.logger.Info().Str("ticket", res.TicketID).Msg("[session] chat started")
				issued <- res.TicketID
				c.fetchAndEnter(ctx, gen, res.TicketID, finish)
			})
		}()
	})
	if err != nil {
		return "", err
	}
	// A nil error is only reported after the ticket was issued.
	select {
	case ticketID := <-issued:
		return ticketID, nil
	default:
		return "", nil
	}
}

// AccessChat enters an existing chat by ticket id, replaying its history
// before joining the live room.
func (c *Client) AccessChat(ctx context.Context, ticketID string) error {
	return c.call(ctx, func(finish func(error)) {
		ticketID := strings.TrimSpace(ticketID)
		if ticketID == "" {
			c.view.ShowWarning("Please enter the chat ticket id.")
			finish(ErrMissingTicket)
			return
		}
		c.fetchAndEnter(ctx, c.nextGeneration(), ticketID, finish)
	})
}

func (c *Client) fetchAndEnter(ctx context.Context, gen uint64, ticketID string, finish func(error)) {
	go func() {
		chat, err := c.history.FetchHistory(ctx, ticketID)
		c.post(func() {
			if gen != c.generation {
				finish(ErrSuperseded)
				return
			}
			if err != nil {
				c.failBootstrap("Could not load the chat", err)
				finish(err)
				return
			}
			finish(c.enterChat(chat))
		})
	}()
}

func (c *Client) enterChat(chat history.Chat) error {
	if prev := c.identity.TicketID; prev != "" && prev != chat.TicketID && c.connected() {
		c.leaveRoom(prev)
	}

	wasConnected := c.connected()
	if err := c.ensureConnected(); err != nil {
		c.identity.TicketID = ""
		c.view.ShowEntryForms()
		return err
	}

	c.identity.TicketID = chat.TicketID
	if !c.role.IsAgent() {
		if chat.Name != "" {
			c.identity.DisplayName = chat.Name
		}
		c.identity.Email = chat.Email
	}

	c.view.ShowChat(Header{TicketID: chat.TicketID, Name: chat.Name, Email: chat.Email})
	for _, m := range chat.Messages {
		c.render(m)
	}

	// A fresh or reconnecting object joins from its connect callback.
	if wasConnected {
		c.joinRoom(chat.TicketID, "content")
	}
	return nil
}

// failBootstrap reports err and returns to the entry forms, giving up the
// room of the chat that was on screen.
func (c *Client) failBootstrap(prefix string, err error) {
	c.logger.Warn().Err(err).Str("code", string(history.CodeOf(err))).Msg("[session] bootstrap failed")
	if prev := c.identity.TicketID; prev != "" && c.connected() {
		c.leaveRoom(prev)
	}
	c.identity.TicketID = ""
	c.view.ShowError(prefix + ": " + err.Error())
	c.view.ShowEntryForms()
}

// Leave exits the current chat, tears down the realtime connection and
// returns to the entry forms. Pending bootstrap results become no-ops.
func (c *Client) Leave(ctx context.Context) error {
	return c.call(ctx, func(finish func(error)) {
		c.nextGeneration()
		c.dashboardGen++

		if ticket := c.identity.TicketID; ticket != "" && c.connected() {
			c.leaveRoom(ticket)
		}
		c.teardownConnection()

		c.identity.TicketID = ""
		c.identity.DisplayName = c.initialName
		c.identity.Email = ""
		c.dashboardVisible = false
		c.dashboard = nil

		c.view.ShowEntryForms()
		finish(nil)
	})
}

