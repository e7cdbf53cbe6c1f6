package mapview

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"bikemap/internal/geo"
)

// Command operations understood by the browser client.
const (
	OpCreateMap    = "createMap"
	OpAddTileLayer = "addTileLayer"
	OpAddMarker    = "addMarker"
	OpAddCluster   = "addCluster"
	OpSetView      = "setView"
)

// Command is one serialized Renderer call.
type Command struct {
	ID        string     `json:"id"`
	Seq       int64      `json:"seq"`
	Op        string     `json:"op"`
	Center    *geo.Point `json:"center,omitempty"`
	Zoom      int        `json:"zoom,omitempty"`
	TileLayer *TileLayer `json:"tileLayer,omitempty"`
	Marker    *Marker    `json:"marker,omitempty"`
	Markers   []Marker   `json:"markers,omitempty"`
	Popup     *Popup     `json:"popup,omitempty"`
	IssuedAt  time.Time  `json:"issuedAt"`
}

// Sink delivers commands to a remote map.
type Sink interface {
	SendCommand(cmd Command) error
}

type SinkFunc func(cmd Command) error

func (f SinkFunc) SendCommand(cmd Command) error { return f(cmd) }

// CommandRenderer implements Renderer by emitting Commands to its sinks. It
// remembers the construction commands and the latest view so that a client
// connecting late can rebuild the same map. Sink failures are logged and do
// not fail the render: the replay log stays authoritative.
type CommandRenderer struct {
	mu    sync.Mutex
	sinks []Sink
	seq   int64
	build []Command
	view  *Command
}

func NewCommandRenderer(sinks ...Sink) *CommandRenderer {
	return &CommandRenderer{sinks: sinks}
}

// AddSink attaches another sink for future commands.
func (r *CommandRenderer) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

func (r *CommandRenderer) CreateMap(center geo.Point, zoom int) error {
	return r.emit(Command{Op: OpCreateMap, Center: &center, Zoom: zoom})
}

func (r *CommandRenderer) AddTileLayer(layer TileLayer) error {
	return r.emit(Command{Op: OpAddTileLayer, TileLayer: &layer})
}

func (r *CommandRenderer) AddMarker(m Marker) error {
	return r.emit(Command{Op: OpAddMarker, Marker: &m})
}

func (r *CommandRenderer) AddCluster(markers []Marker) error {
	return r.emit(Command{Op: OpAddCluster, Markers: markers})
}

func (r *CommandRenderer) SetView(center geo.Point, zoom int, popup *Popup) error {
	return r.emit(Command{Op: OpSetView, Center: &center, Zoom: zoom, Popup: popup})
}

func (r *CommandRenderer) emit(cmd Command) error {
	r.mu.Lock()
	r.seq++
	cmd.Seq = r.seq
	cmd.ID = uuid.NewString()
	cmd.IssuedAt = time.Now().UTC()
	if cmd.Op == OpSetView {
		c := cmd
		r.view = &c
	} else {
		r.build = append(r.build, cmd)
	}
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()

	for _, s := range sinks {
		if err := s.SendCommand(cmd); err != nil {
			log.Printf("map command %s seq=%d: sink error: %v", cmd.Op, cmd.Seq, err)
		}
	}
	return nil
}

// Replay returns the commands needed to rebuild the current map, in order.
func (r *CommandRenderer) Replay() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Command(nil), r.build...)
	if r.view != nil {
		out = append(out, *r.view)
	}
	return out
}
