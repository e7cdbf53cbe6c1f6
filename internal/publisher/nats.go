package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"bikemap/internal/geo"
	"bikemap/internal/mapview"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bikemap"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Conn exposes the underlying connection so subscribers share it.
func (p *NATSPublisher) Conn() *nats.Conn { return p.nc }

// CommandSubject is the subject a map command with the given op is published on.
func CommandSubject(prefix, op string) string {
	return fmt.Sprintf("%s.map.%s", subjectToken(prefix), subjectToken(op))
}

// SendCommand publishes a map command. It satisfies mapview.Sink.
func (p *NATSPublisher) SendCommand(cmd mapview.Command) error {
	subject := CommandSubject(p.prefix, cmd.Op)
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s seq=%d", subject, cmd.Seq)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// PositionMessage is the payload expected on the device position subject.
// A message with Denied set reports that the device refused location access.
type PositionMessage struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Denied    bool      `json:"denied,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

func decodePosition(data []byte) (geo.Event, error) {
	var msg PositionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return geo.Event{}, fmt.Errorf("decode position: %w", err)
	}
	if msg.Denied {
		reason := geo.ErrPermissionDenied
		if msg.Reason != "" {
			reason = errors.New(msg.Reason)
		}
		return geo.Event{Denied: true, Err: reason}, nil
	}
	return geo.Event{Point: geo.Point{Lat: msg.Latitude, Lng: msg.Longitude}}, nil
}

// NATSSource is a geo.Source fed by device positions published on a subject.
type NATSSource struct {
	nc      *nats.Conn
	subject string
	buffer  int
}

func NewNATSSource(nc *nats.Conn, subject string) *NATSSource {
	return &NATSSource{nc: nc, subject: subject, buffer: 64}
}

func (s *NATSSource) Watch(ctx context.Context) (<-chan geo.Event, error) {
	msgs := make(chan *nats.Msg, s.buffer)
	sub, err := s.nc.ChanSubscribe(s.subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	log.Printf("watching device positions on %s", s.subject)

	out := make(chan geo.Event)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-msgs:
				ev, err := decodePosition(m.Data)
				if err != nil {
					log.Printf("skipping position message: %v", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
