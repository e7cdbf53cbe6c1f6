package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const keepaliveInterval = 30 * time.Second

// Handler streams events to one client until it disconnects.
func Handler(mgr Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		clientID := r.Header.Get("X-Client-Id")
		if clientID == "" {
			clientID = uuid.NewString()
		}

		messages := mgr.AddClient(clientID)
		defer mgr.RemoveClient(clientID, messages)

		hello := Message{Type: TypeConnected, Data: map[string]any{"client_id": clientID}}
		stamp(&hello)
		if err := writeSSEMessage(w, hello); err != nil {
			log.Printf("sse initial message to %s: %v", clientID, err)
			return
		}
		flusher.Flush()

		mgr.NotifyClientConnected(clientID)

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if err := writeSSEMessage(w, msg); err != nil {
					log.Printf("sse write to %s: %v", clientID, err)
					return
				}
				flusher.Flush()
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSEMessage(w http.ResponseWriter, msg Message) error {
	data := []byte("{}")
	if msg.Data != nil {
		b, err := json.Marshal(msg.Data)
		if err != nil {
			return fmt.Errorf("marshal sse data: %w", err)
		}
		data = b
	}
	if _, err := fmt.Fprintf(w, "id: %d\n", msg.ID); err != nil {
		return err
	}
	if msg.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", msg.Type); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
