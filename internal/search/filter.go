// Package search implements the substring matching shared by the station
// table and the map search box.
package search

import (
	"strings"

	"bikemap/internal/station"
)

// Match reports whether keyword occurs in the station's address or name.
// Matching is case-sensitive and not tokenized; the empty keyword matches
// everything.
func Match(s station.Station, keyword string) bool {
	return strings.Contains(s.Ar, keyword) || strings.Contains(s.Sna, keyword)
}

// Filter returns the stations matching keyword in source order.
func Filter(stations []station.Station, keyword string) []station.Station {
	out := make([]station.Station, 0, len(stations))
	for _, s := range stations {
		if Match(s, keyword) {
			out = append(out, s)
		}
	}
	return out
}

// Suggest is Filter over the labelled sequence, so the locality-prefixed
// address is what gets matched.
func Suggest(labelled []station.LabelledStation, query string) []station.LabelledStation {
	out := make([]station.LabelledStation, 0, len(labelled))
	for _, s := range labelled {
		if Match(s.Station, query) {
			out = append(out, s)
		}
	}
	return out
}
