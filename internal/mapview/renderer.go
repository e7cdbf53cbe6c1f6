// Package mapview drives the station map: it decides what the map library
// draws and when, while the library itself stays behind Renderer.
package mapview

import "bikemap/internal/geo"

// Renderer is the contract required from the map and clustering library.
type Renderer interface {
	CreateMap(center geo.Point, zoom int) error
	AddTileLayer(layer TileLayer) error
	AddMarker(m Marker) error
	AddCluster(markers []Marker) error
	// SetView pans and zooms the existing map, opening popup when given.
	SetView(center geo.Point, zoom int, popup *Popup) error
}

type TileLayer struct {
	URLTemplate string `json:"urlTemplate"`
	Attribution string `json:"attribution"`
}

type Icon struct {
	Color       string `json:"color"`
	IconURL     string `json:"iconUrl"`
	ShadowURL   string `json:"shadowUrl"`
	IconSize    [2]int `json:"iconSize"`
	IconAnchor  [2]int `json:"iconAnchor"`
	PopupAnchor [2]int `json:"popupAnchor"`
	ShadowSize  [2]int `json:"shadowSize"`
}

type Marker struct {
	ID       string    `json:"id"`
	Position geo.Point `json:"position"`
	Icon     Icon      `json:"icon"`
	Popup    Popup     `json:"popup"`
}

// Popup carries both the structured fields and the rendered HTML so that
// clients may use either.
type Popup struct {
	Position geo.Point    `json:"position"`
	Station  *StationInfo `json:"station,omitempty"`
	Text     string       `json:"text,omitempty"`
	HTML     string       `json:"html"`
	Open     bool         `json:"open"`
}

type StationInfo struct {
	Sno           string `json:"sno"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	Rent          int    `json:"availableRentBikes"`
	Return        int    `json:"availableReturnBikes"`
	NavigationURL string `json:"navigationUrl"`
}
