package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrFetch is matched by every error returned from Repository.Load.
var ErrFetch = errors.New("station fetch failed")

// FetchError describes a failed load attempt. Source names the fetcher.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch stations from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// Fetcher retrieves the full station list in feed order.
type Fetcher interface {
	Name() string
	FetchStations(ctx context.Context) ([]Station, error)
}

// MatchFunc decides whether a station belongs to the table view for keyword.
type MatchFunc func(s Station, keyword string) bool

// Collection is a point-in-time copy of the repository views.
type Collection struct {
	Canonical []Station
	Labelled  []LabelledStation
	Filtered  []Station
	Keyword   string
}

// Repository owns the station collection: the canonical sequence, the
// labelled sequence derived once per load, and the filtered table view.
type Repository struct {
	fetcher Fetcher
	match   MatchFunc

	mu        sync.RWMutex
	canonical []Station
	labelled  []LabelledStation
	filtered  []Station
	byID      map[string]int
	keyword   string
	loadedAt  time.Time
}

func NewRepository(fetcher Fetcher, match MatchFunc) *Repository {
	return &Repository{
		fetcher: fetcher,
		match:   match,
		byID:    make(map[string]int),
	}
}

// Load performs exactly one fetch and applies its outcome. On failure the
// collection is cleared and a *FetchError is returned; there is no retry.
func (r *Repository) Load(ctx context.Context) (Collection, error) {
	return r.Apply(r.Fetch(ctx))
}

// Fetch calls the fetcher once without touching the collection.
func (r *Repository) Fetch(ctx context.Context) ([]Station, error) {
	stations, err := r.fetcher.FetchStations(ctx)
	if err != nil {
		return nil, &FetchError{Source: r.fetcher.Name(), Err: err}
	}
	return stations, nil
}

// Apply replaces the collection with the result of a Fetch. A non-nil err
// empties the collection and is returned unchanged.
func (r *Repository) Apply(stations []Station, err error) (Collection, error) {
	if err != nil {
		r.mu.Lock()
		r.reset()
		r.mu.Unlock()
		return Collection{}, err
	}

	labelled := make([]LabelledStation, len(stations))
	byID := make(map[string]int, len(stations))
	for i, s := range stations {
		labelled[i] = Labelled(s)
		byID[s.Sno] = i
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.canonical = stations
	r.labelled = labelled
	r.byID = byID
	r.filtered = r.filter(r.keyword)
	r.loadedAt = time.Now()
	return r.snapshot(), nil
}

// ApplyKeyword recomputes the filtered view from the canonical sequence.
func (r *Repository) ApplyKeyword(keyword string) []Station {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyword = keyword
	r.filtered = r.filter(keyword)
	return cloneStations(r.filtered)
}

func (r *Repository) filter(keyword string) []Station {
	out := make([]Station, 0, len(r.canonical))
	for _, s := range r.canonical {
		if r.match(s, keyword) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Repository) reset() {
	r.canonical = nil
	r.labelled = nil
	r.filtered = nil
	r.byID = make(map[string]int)
	r.loadedAt = time.Time{}
}

func (r *Repository) snapshot() Collection {
	return Collection{
		Canonical: cloneStations(r.canonical),
		Labelled:  append([]LabelledStation(nil), r.labelled...),
		Filtered:  cloneStations(r.filtered),
		Keyword:   r.keyword,
	}
}

func (r *Repository) Snapshot() Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot()
}

func (r *Repository) Canonical() []Station {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneStations(r.canonical)
}

func (r *Repository) Labelled() []LabelledStation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]LabelledStation(nil), r.labelled...)
}

func (r *Repository) Filtered() []Station {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneStations(r.filtered)
}

// Lookup finds a station of the canonical sequence by sno.
func (r *Repository) Lookup(sno string) (Station, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[sno]
	if !ok {
		return Station{}, false
	}
	return r.canonical[i], true
}

// LookupLabelled finds the labelled form of a station by sno.
func (r *Repository) LookupLabelled(sno string) (LabelledStation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[sno]
	if !ok {
		return LabelledStation{}, false
	}
	return r.labelled[i], true
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.canonical)
}

// LoadedAt is the time of the last successful load, zero if none.
func (r *Repository) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

func cloneStations(in []Station) []Station {
	if in == nil {
		return nil
	}
	out := make([]Station, len(in))
	copy(out, in)
	return out
}
