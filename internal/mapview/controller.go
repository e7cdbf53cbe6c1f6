package mapview

import (
	"fmt"

	"bikemap/internal/geo"
	"bikemap/internal/station"
)

const (
	InitialZoom    = 17
	FocusZoom      = 18
	FocusLatOffset = 0.0002
)

// State is the map render latch. Initialized is terminal.
type State int

const (
	Uninitialized State = iota
	Initialized
)

func (s State) String() string {
	if s == Initialized {
		return "initialized"
	}
	return "uninitialized"
}

// Metrics receives controller events. A nil Metrics is allowed.
type Metrics interface {
	MapInitialized(markers int)
	FocusApplied(applied bool)
}

// Controller builds the map once and afterwards only moves it. It is not
// safe for concurrent use; the owning session serializes calls.
type Controller struct {
	renderer Renderer
	metrics  Metrics

	state   State
	origin  geo.Point
	markers int
}

func NewController(r Renderer, m Metrics) *Controller {
	return &Controller{renderer: r, metrics: m}
}

func (c *Controller) State() State { return c.state }

// Origin is the user position the map was initialized with.
func (c *Controller) Origin() (geo.Point, bool) {
	return c.origin, c.state == Initialized
}

// Markers is the number of station markers placed at initialization.
func (c *Controller) Markers() int { return c.markers }

// Init constructs the map the first time it is called with a non-empty
// station list and a known position, and reports whether it did so.
// Later calls are no-ops: station changes after initialization do not
// refresh the markers.
func (c *Controller) Init(stations []station.Station, pos geo.Position) (bool, error) {
	if c.state == Initialized || len(stations) == 0 || !pos.Known {
		return false, nil
	}

	center := pos.Point
	if err := c.renderer.CreateMap(center, InitialZoom); err != nil {
		return false, fmt.Errorf("create map: %w", err)
	}
	// The base map exists from here on, so the latch closes even if a
	// later layer fails.
	c.state = Initialized
	c.origin = center

	if err := c.renderer.AddTileLayer(TileLayer{URLTemplate: OSMTileURL, Attribution: OSMAttribution}); err != nil {
		return true, fmt.Errorf("add tile layer: %w", err)
	}
	if err := c.renderer.AddMarker(UserMarker(center)); err != nil {
		return true, fmt.Errorf("add user marker: %w", err)
	}

	markers := make([]Marker, len(stations))
	for i, s := range stations {
		markers[i] = StationMarker(s, center)
	}
	if err := c.renderer.AddCluster(markers); err != nil {
		return true, fmt.Errorf("add station cluster: %w", err)
	}
	c.markers = len(markers)
	if c.metrics != nil {
		c.metrics.MapInitialized(len(markers))
	}
	return true, nil
}

// FocusOn pans to a station and opens its popup. Before initialization it
// does nothing and reports false. Links use the current user position.
func (c *Controller) FocusOn(s station.LabelledStation, current geo.Position) (bool, error) {
	if c.state != Initialized {
		if c.metrics != nil {
			c.metrics.FocusApplied(false)
		}
		return false, nil
	}
	origin := c.origin
	if current.Known {
		origin = current.Point
	}
	popup := StationPopup(s.Station, origin)
	popup.Open = true
	center := geo.Point{Lat: s.Latitude, Lng: s.Longitude}.Offset(FocusLatOffset, 0)
	if err := c.renderer.SetView(center, FocusZoom, &popup); err != nil {
		return false, fmt.Errorf("focus on %s: %w", s.Sno, err)
	}
	if c.metrics != nil {
		c.metrics.FocusApplied(true)
	}
	return true, nil
}
