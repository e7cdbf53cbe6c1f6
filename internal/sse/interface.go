package sse

import (
	"time"
)

// Manager fans map events out to connected browser clients.
type Manager interface {
	// AddClient registers a new client and returns its message channel.
	AddClient(clientID string) <-chan Message

	// RemoveClient unregisters the client registered with ch and closes
	// it. A client that reconnected under the same id keeps its new channel.
	RemoveClient(clientID string, ch <-chan Message)

	ClientCount() int

	// Broadcast sends a message to every connected client. Slow clients
	// whose buffer is full miss the message.
	Broadcast(message Message)

	// SendToClient sends a message to one client.
	SendToClient(clientID string, message Message)

	// SetClientConnectCallback sets a callback run after a client's stream
	// is established, before live messages are forwarded.
	SetClientConnectCallback(callback func(clientID string))

	// SetClientCountCallback sets a callback run with the client count
	// whenever a client joins or leaves.
	SetClientCountCallback(callback func(n int))

	NotifyClientConnected(clientID string)
}

// Message is one server-sent event.
type Message struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types.
const (
	TypeConnected = "connected"
	TypeCommand   = "command"
	TypePosition  = "position"
	TypeStations  = "stations"
)
