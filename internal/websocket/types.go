package websocket

// Delivery is one framed envelope bound for a room, or for a single client
// when ClientID is set.
type Delivery struct {
	Room     string
	ClientID string
	Frame    []byte
}

type subscription struct {
	client *WSClient
	room   string
}
