package view

import (
	"bikemap/internal/availability"
	"bikemap/internal/geo"
	"bikemap/internal/mapview"
	"bikemap/internal/station"
)

// Row is one line of the station table.
type Row struct {
	station.Station
	State         string   `json:"state"`
	Color         string   `json:"color"`
	NavigationURL string   `json:"navigationUrl,omitempty"`
	DistanceM     *float64 `json:"distanceMeters,omitempty"`
}

// NewRow decorates s for the table. The navigation link and distance are
// only set once the user position is known.
func NewRow(s station.Station, pos geo.Position) Row {
	state := availability.Classify(s)
	r := Row{Station: s, State: state.String(), Color: state.Color()}
	if pos.Known {
		r.NavigationURL = mapview.NavigationURL(pos.Point, s)
		d := geo.Distance(pos.Point, geo.Point{Lat: s.Latitude, Lng: s.Longitude})
		r.DistanceM = &d
	}
	return r
}

func BuildRows(stations []station.Station, pos geo.Position) []Row {
	rows := make([]Row, len(stations))
	for i, s := range stations {
		rows[i] = NewRow(s, pos)
	}
	return rows
}
