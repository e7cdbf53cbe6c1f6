package mapview

import (
	"bytes"
	"html/template"
	"log"
	"net/url"
	"strings"

	"bikemap/internal/availability"
	"bikemap/internal/geo"
	"bikemap/internal/station"
)

const (
	NavigationBase = "https://www.google.com.tw/maps/dir"

	OSMTileURL      = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	OSMAttribution  = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a>`
	markerIconBase  = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-2x-"
	markerShadowURL = "https://cdnjs.cloudflare.com/ajax/libs/leaflet/0.7.7/images/marker-shadow.png"

	userPopupText = "目前位置"
)

var popupTmpl = template.Must(template.New("popup").Parse(
	`<p>站名：{{.Name}}</p><p>地址：{{.Address}}</p><p>可租借車輛：{{.Rent}}</p><p>可歸還車位：{{.Return}}</p>` +
		`<a target="_blank" href="{{.NavigationURL}}">在Google Map上導航</a>`))

// DestinationName normalizes a station name for the navigation service:
// the first "2.0" gains the operator's brand prefix and the first
// underscore is dropped ("YouBike2.0_X" -> "YouBike微笑單車+2.0:X").
func DestinationName(sna string) string {
	s := strings.Replace(sna, "2.0", "微笑單車+2.0:", 1)
	return strings.Replace(s, "_", "", 1)
}

// NavigationURL builds a directions link from origin to the station.
func NavigationURL(origin geo.Point, s station.Station) string {
	dest := geo.Point{Lat: s.Latitude, Lng: s.Longitude}
	return NavigationBase + "/" + origin.String() + "/" + url.PathEscape(DestinationName(s.Sna)) +
		"/@" + dest.String() + ",19z/?entry=ttu"
}

// StationPopup builds the popup shown for a station marker or focus.
func StationPopup(s station.Station, origin geo.Point) Popup {
	info := &StationInfo{
		Sno:           s.Sno,
		Name:          s.Sna,
		Address:       s.Ar,
		Rent:          s.AvailableRent,
		Return:        s.AvailableRet,
		NavigationURL: NavigationURL(origin, s),
	}
	var buf bytes.Buffer
	if err := popupTmpl.Execute(&buf, info); err != nil {
		log.Printf("render popup for %s: %v", s.Sno, err)
	}
	return Popup{
		Position: geo.Point{Lat: s.Latitude, Lng: s.Longitude},
		Station:  info,
		HTML:     buf.String(),
	}
}

func userPopup(p geo.Point) Popup {
	return Popup{
		Position: p,
		Text:     userPopupText,
		HTML:     "<p>" + userPopupText + "</p>",
		Open:     true,
	}
}

// IconFor returns the marker icon of the given colour.
func IconFor(color string) Icon {
	return Icon{
		Color:       color,
		IconURL:     markerIconBase + color + ".png",
		ShadowURL:   markerShadowURL,
		IconSize:    [2]int{25, 41},
		IconAnchor:  [2]int{12, 41},
		PopupAnchor: [2]int{1, -34},
		ShadowSize:  [2]int{41, 41},
	}
}

// StationMarker places a station with the icon chosen by its availability.
func StationMarker(s station.Station, origin geo.Point) Marker {
	return Marker{
		ID:       s.Sno,
		Position: geo.Point{Lat: s.Latitude, Lng: s.Longitude},
		Icon:     IconFor(availability.Classify(s).Color()),
		Popup:    StationPopup(s, origin),
	}
}

func UserMarker(p geo.Point) Marker {
	return Marker{
		ID:       "user",
		Position: p,
		Icon:     IconFor(availability.UserColor),
		Popup:    userPopup(p),
	}
}
