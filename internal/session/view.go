package session

import "webchat/internal/model"

type Header struct {
	TicketID string
	Name     string
	Email    string
}

type RenderedMessage struct {
	Sender    string
	Text      string
	Timestamp string
	Self      bool
}

// View is the rendering side of a session. Every method is called from the
// client's event loop, one call at a time.
type View interface {
	// ShowEntryForms hides any chat and shows the start/access forms.
	ShowEntryForms()
	// ShowChat hides the forms, clears the message area and shows the header.
	ShowChat(Header)
	AppendMessage(RenderedMessage)
	ShowNotice(text string)
	ShowWarning(text string)
	ShowError(text string)
	// RenderDashboard replaces the whole open-chat list.
	RenderDashboard([]model.SessionSummary)
	PrependDashboardEntry(model.SessionSummary)
}
