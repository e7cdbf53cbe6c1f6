package station

// LocalityPrefix is prepended to every address in the labelled sequence so
// that suggestions read as full postal addresses.
const LocalityPrefix = "臺北市"

// Station is one record of the YouBike immediate feed. Values are never
// mutated after a fetch.
type Station struct {
	Sno           string  `json:"sno"`
	Sna           string  `json:"sna"`
	SnaEn         string  `json:"snaen"`
	Sarea         string  `json:"sarea"`
	SareaEn       string  `json:"sareaen"`
	Ar            string  `json:"ar"`
	ArEn          string  `json:"aren"`
	Mday          string  `json:"mday"`
	Act           string  `json:"act"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Total         int     `json:"total"`
	AvailableRent int     `json:"available_rent_bikes"`
	AvailableRet  int     `json:"available_return_bikes"`
	InfoDate      string  `json:"infoDate"`
	InfoTime      string  `json:"infoTime"`
	UpdateTime    string  `json:"updateTime"`
	SrcUpdateTime string  `json:"srcUpdateTime"`
}

// Active reports whether the operator flags the station as in service.
func (s Station) Active() bool { return s.Act == "1" }

// LabelledStation is the search-oriented form of a Station. Ar carries the
// locality prefix and Label is "<sna>-<original ar>". It exists only for
// presentation and is never handed back to a Fetcher.
type LabelledStation struct {
	Station
	Label string `json:"label"`
}

// Labelled derives the search form of s.
func Labelled(s Station) LabelledStation {
	out := LabelledStation{Station: s, Label: s.Sna + "-" + s.Ar}
	out.Ar = LocalityPrefix + s.Ar
	return out
}
