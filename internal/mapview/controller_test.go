package mapview

import (
	"errors"
	"math"
	"strings"
	"testing"

	"bikemap/internal/geo"
	"bikemap/internal/station"
)

type call struct {
	op      string
	center  geo.Point
	zoom    int
	marker  Marker
	markers []Marker
	popup   *Popup
}

type recordingRenderer struct {
	calls     []call
	createErr error
}

func (r *recordingRenderer) CreateMap(center geo.Point, zoom int) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.calls = append(r.calls, call{op: OpCreateMap, center: center, zoom: zoom})
	return nil
}

func (r *recordingRenderer) AddTileLayer(layer TileLayer) error {
	r.calls = append(r.calls, call{op: OpAddTileLayer})
	return nil
}

func (r *recordingRenderer) AddMarker(m Marker) error {
	r.calls = append(r.calls, call{op: OpAddMarker, marker: m})
	return nil
}

func (r *recordingRenderer) AddCluster(markers []Marker) error {
	r.calls = append(r.calls, call{op: OpAddCluster, markers: markers})
	return nil
}

func (r *recordingRenderer) SetView(center geo.Point, zoom int, popup *Popup) error {
	r.calls = append(r.calls, call{op: OpSetView, center: center, zoom: zoom, popup: popup})
	return nil
}

func (r *recordingRenderer) count(op string) int {
	n := 0
	for _, c := range r.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func testStations() []station.Station {
	return []station.Station{
		{Sno: "500101001", Sna: "YouBike2.0_捷運科技大樓站", Ar: "復興南路二段235號前", Latitude: 25.02605, Longitude: 121.5436, AvailableRent: 0, AvailableRet: 0},
		{Sno: "500101002", Sna: "YouBike2.0_復興南路二段273號前", Ar: "復興南路二段273號西側", Latitude: 25.02565, Longitude: 121.54357, AvailableRent: 4, AvailableRet: 0},
		{Sno: "500101003", Sna: "YouBike2.0_國北教大實小東側門", Ar: "和平東路二段96巷7號", Latitude: 25.02429, Longitude: 121.54124, AvailableRent: 12, AvailableRet: 8},
	}
}

var here = geo.Position{Point: geo.Point{Lat: 25.0330, Lng: 121.5654}, Known: true}

func TestInitBuildsMapOnce(t *testing.T) {
	r := &recordingRenderer{}
	c := NewController(r, nil)

	ok, err := c.Init(testStations(), here)
	if err != nil || !ok {
		t.Fatalf("Init = %v, %v", ok, err)
	}
	if c.State() != Initialized {
		t.Fatalf("state = %v", c.State())
	}

	ok, err = c.Init(testStations(), here)
	if ok || err != nil {
		t.Errorf("second Init = %v, %v; expected no-op", ok, err)
	}
	if n := r.count(OpCreateMap); n != 1 {
		t.Errorf("CreateMap called %d times", n)
	}

	want := []string{OpCreateMap, OpAddTileLayer, OpAddMarker, OpAddCluster}
	if len(r.calls) != len(want) {
		t.Fatalf("calls = %+v", r.calls)
	}
	for i, op := range want {
		if r.calls[i].op != op {
			t.Errorf("call %d = %s, expected %s", i, r.calls[i].op, op)
		}
	}
	if r.calls[0].center != here.Point || r.calls[0].zoom != InitialZoom {
		t.Errorf("map created at %+v zoom %d", r.calls[0].center, r.calls[0].zoom)
	}

	user := r.calls[2].marker
	if user.Icon.Color != "violet" || !user.Popup.Open || user.Popup.Text != "目前位置" {
		t.Errorf("unexpected user marker %+v", user)
	}

	cluster := r.calls[3].markers
	colors := []string{"black", "grey", "green"}
	for i, m := range cluster {
		if m.Icon.Color != colors[i] {
			t.Errorf("marker %s colour = %s, expected %s", m.ID, m.Icon.Color, colors[i])
		}
	}
	if c.Markers() != 3 {
		t.Errorf("Markers() = %d", c.Markers())
	}
}

func TestInitWaitsForStationsAndPosition(t *testing.T) {
	r := &recordingRenderer{}
	c := NewController(r, nil)

	if ok, _ := c.Init(nil, here); ok {
		t.Error("Init should wait for stations")
	}
	if ok, _ := c.Init(testStations(), geo.Position{}); ok {
		t.Error("Init should wait for a known position")
	}
	if len(r.calls) != 0 || c.State() != Uninitialized {
		t.Errorf("nothing should be rendered yet: %+v", r.calls)
	}
}

func TestInitCreateFailureKeepsLatchOpen(t *testing.T) {
	r := &recordingRenderer{createErr: errors.New("no container")}
	c := NewController(r, nil)

	if ok, err := c.Init(testStations(), here); ok || err == nil {
		t.Fatalf("Init = %v, %v; expected failure", ok, err)
	}
	if c.State() != Uninitialized {
		t.Error("latch must stay open when the map was not created")
	}

	r.createErr = nil
	if ok, err := c.Init(testStations(), here); !ok || err != nil {
		t.Errorf("retry Init = %v, %v", ok, err)
	}
}

func TestFocusOnBeforeInitIsNoop(t *testing.T) {
	r := &recordingRenderer{}
	c := NewController(r, nil)

	ok, err := c.FocusOn(station.Labelled(testStations()[0]), here)
	if ok || err != nil {
		t.Errorf("FocusOn = %v, %v", ok, err)
	}
	if len(r.calls) != 0 {
		t.Errorf("no renderer call expected, got %+v", r.calls)
	}
}

func TestFocusOnPansWithOffset(t *testing.T) {
	r := &recordingRenderer{}
	c := NewController(r, nil)
	if _, err := c.Init(testStations(), here); err != nil {
		t.Fatal(err)
	}

	moved := geo.Position{Point: geo.Point{Lat: 25.04, Lng: 121.55}, Known: true}
	target := station.Labelled(testStations()[2])
	ok, err := c.FocusOn(target, moved)
	if !ok || err != nil {
		t.Fatalf("FocusOn = %v, %v", ok, err)
	}
	last := r.calls[len(r.calls)-1]
	if last.op != OpSetView || last.zoom != FocusZoom {
		t.Fatalf("unexpected call %+v", last)
	}
	if math.Abs(last.center.Lat-25.02449) > 1e-9 || last.center.Lng != 121.54124 {
		t.Errorf("center = %+v", last.center)
	}
	if last.popup == nil || !last.popup.Open {
		t.Fatal("focus should open a popup")
	}
	info := last.popup.Station
	if info.Address != "臺北市和平東路二段96巷7號" || info.Rent != 12 || info.Return != 8 {
		t.Errorf("popup fields = %+v", info)
	}
	if !strings.Contains(info.NavigationURL, "/25.04,121.55/") {
		t.Errorf("focus link should use the current position: %s", info.NavigationURL)
	}
	if r.count(OpCreateMap) != 1 {
		t.Error("focus must not rebuild the map")
	}
}

func testLabelled() []station.LabelledStation {
	out := make([]station.LabelledStation, 0)
	for _, s := range testStations() {
		out = append(out, station.Labelled(s))
	}
	return out
}
