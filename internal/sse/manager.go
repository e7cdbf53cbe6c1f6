package sse

import (
	"log"
	"sync"
	"time"

	"bikemap/internal/mapview"
)

const clientBuffer = 256

type manager struct {
	mu        sync.RWMutex
	clients   map[string]chan Message
	onConnect func(clientID string)
	onCount   func(n int)
}

func NewManager() Manager {
	return &manager{clients: make(map[string]chan Message)}
}

func (m *manager) AddClient(clientID string) <-chan Message {
	m.mu.Lock()
	if existing, ok := m.clients[clientID]; ok {
		close(existing)
		delete(m.clients, clientID)
	}
	ch := make(chan Message, clientBuffer)
	m.clients[clientID] = ch
	n := len(m.clients)
	onCount := m.onCount
	m.mu.Unlock()

	log.Printf("sse client connected: %s (total: %d)", clientID, n)
	if onCount != nil {
		onCount(n)
	}
	return ch
}

func (m *manager) RemoveClient(clientID string, registered <-chan Message) {
	m.mu.Lock()
	ch, ok := m.clients[clientID]
	if !ok || (<-chan Message)(ch) != registered {
		m.mu.Unlock()
		return
	}
	close(ch)
	delete(m.clients, clientID)
	n := len(m.clients)
	onCount := m.onCount
	m.mu.Unlock()

	log.Printf("sse client disconnected: %s (remaining: %d)", clientID, n)
	if onCount != nil {
		onCount(n)
	}
}

func (m *manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *manager) Broadcast(message Message) {
	stamp(&message)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for clientID, ch := range m.clients {
		select {
		case ch <- message:
		default:
			log.Printf("sse client %s channel full, skipping %s message", clientID, message.Type)
		}
	}
}

func (m *manager) SendToClient(clientID string, message Message) {
	stamp(&message)

	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- message:
	default:
		log.Printf("sse client %s channel full, skipping %s message", clientID, message.Type)
	}
}

func (m *manager) SetClientConnectCallback(callback func(clientID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = callback
}

func (m *manager) SetClientCountCallback(callback func(n int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCount = callback
}

func (m *manager) NotifyClientConnected(clientID string) {
	m.mu.RLock()
	cb := m.onConnect
	m.mu.RUnlock()
	if cb != nil {
		cb(clientID)
	}
}

func stamp(msg *Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.ID == 0 {
		msg.ID = msg.Timestamp.UnixNano()
	}
}

// CommandMessage wraps a map command. The event id is the command sequence
// number so clients can drop replayed commands they already applied.
func CommandMessage(cmd mapview.Command) Message {
	return Message{ID: cmd.Seq, Type: TypeCommand, Data: cmd, Timestamp: cmd.IssuedAt}
}

// CommandSink broadcasts map commands to every client.
func CommandSink(mgr Manager) mapview.Sink {
	return mapview.SinkFunc(func(cmd mapview.Command) error {
		mgr.Broadcast(CommandMessage(cmd))
		return nil
	})
}

// ReplayOnConnect installs a connect callback that sends the commands
// returned by replay to each new client.
func ReplayOnConnect(mgr Manager, replay func() []mapview.Command) {
	mgr.SetClientConnectCallback(func(clientID string) {
		for _, cmd := range replay() {
			mgr.SendToClient(clientID, CommandMessage(cmd))
		}
	})
}
