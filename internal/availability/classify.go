package availability

import "bikemap/internal/station"

// State is the visual availability class of a station.
type State int

const (
	// Empty: no bikes to rent. Checked first, so a station with no bikes
	// and no free docks is Empty, not Full.
	Empty State = iota
	// Full: bikes are available but there is no dock to return to.
	Full
	Available
)

// UserColor is the marker colour reserved for the user's own position.
const UserColor = "violet"

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Full:
		return "full"
	case Available:
		return "available"
	default:
		return "unknown"
	}
}

// Color is the marker icon colour for the state.
func (s State) Color() string {
	switch s {
	case Empty:
		return "black"
	case Full:
		return "grey"
	case Available:
		return "green"
	default:
		return "blue"
	}
}

// Classify maps a station's counts to a State. The checks are ordered:
// rent == 0 wins over return == 0.
func Classify(s station.Station) State {
	if s.AvailableRent == 0 {
		return Empty
	}
	if s.AvailableRet == 0 {
		return Full
	}
	return Available
}

// Summary counts stations per state.
type Summary struct {
	Empty     int `json:"empty"`
	Full      int `json:"full"`
	Available int `json:"available"`
}

func (s Summary) Total() int { return s.Empty + s.Full + s.Available }

func Summarize(stations []station.Station) Summary {
	var sum Summary
	for _, st := range stations {
		switch Classify(st) {
		case Empty:
			sum.Empty++
		case Full:
			sum.Full++
		default:
			sum.Available++
		}
	}
	return sum
}
