package view

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"bikemap/internal/availability"
	"bikemap/internal/geo"
	"bikemap/internal/mapview"
	"bikemap/internal/search"
	"bikemap/internal/station"
)

var (
	ErrClosed         = errors.New("session closed")
	ErrUnknownStation = errors.New("unknown station")
)

// Metrics receives session events. A nil Metrics is allowed.
type Metrics interface {
	StationsLoaded(sum availability.Summary)
	PositionUpdated()
	PositionDenied()
	FilterRecomputed()
	SuggestionQueried(cacheHit bool)
}

// Notice types.
const (
	NoticePosition = "position"
	NoticeStations = "stations"
)

// Notice reports a state change to observers outside the session.
type Notice struct {
	Type string
	Data any
}

type Options struct {
	Debounce            time.Duration
	SuggestionCacheSize int
	Metrics             Metrics
	OnNotice            func(Notice)
}

// MapState is a read-only summary of the session.
type MapState struct {
	State    string               `json:"state"`
	Position geo.Position         `json:"position"`
	Origin   *geo.Point           `json:"origin,omitempty"`
	Markers  int                  `json:"markers"`
	Stations int                  `json:"stations"`
	Keyword  string               `json:"keyword"`
	Filtered int                  `json:"filtered"`
	Summary  availability.Summary `json:"summary"`
	LoadedAt *time.Time           `json:"loadedAt,omitempty"`
}

// Session is the single viewing session. The station collection, the map
// latch and the table keyword are only changed by the loop goroutine;
// callers post work to it and wait for the reply. The tracker owns the user
// position.
type Session struct {
	repo      *station.Repository
	tracker   *geo.Tracker
	ctrl      *mapview.Controller
	cache     *search.SuggestionCache
	debouncer *search.Debouncer[keywordPush]
	metrics   Metrics
	onNotice  func(Notice)

	events chan func()
	done   chan struct{}
	once   sync.Once

	// keywordGen orders keyword changes; a debounced keyword only applies
	// if no newer keyword was pushed or applied since. keywordMu keeps the
	// generation and the debouncer in step.
	keywordMu  sync.Mutex
	keywordGen atomic.Uint64
}

type keywordPush struct {
	keyword string
	gen     uint64
}

func NewSession(repo *station.Repository, source geo.Source, ctrl *mapview.Controller, opts Options) *Session {
	s := &Session{
		repo:     repo,
		tracker:  geo.NewTracker(source),
		ctrl:     ctrl,
		cache:    search.NewSuggestionCache(opts.SuggestionCacheSize),
		metrics:  opts.Metrics,
		onNotice: opts.OnNotice,
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
	}
	s.debouncer = search.NewDebouncer(opts.Debounce, func(p keywordPush) {
		s.post(func() {
			if p.gen == s.keywordGen.Load() {
				s.applyKeyword(p.keyword)
			}
		})
	})
	return s
}

// Start runs the event loop until ctx is cancelled, starts the position
// watch and kicks off the initial station load. It returns immediately.
func (s *Session) Start(ctx context.Context) {
	s.once.Do(func() {
		go s.loop(ctx)
		s.tracker.Start(ctx,
			func(p geo.Point) { s.post(func() { s.positionFix(p) }) },
			func(p geo.Point) { s.post(func() { s.positionDenied(p) }) },
		)
		go func() {
			if _, err := s.Reload(ctx); err != nil && !errors.Is(err, station.ErrFetch) {
				log.Printf("initial station load: %v", err)
			}
		}()
	})
}

func (s *Session) loop(ctx context.Context) {
	defer s.tracker.Stop()
	defer s.debouncer.Stop()
	// Closed first so that pending posts from the tracker unblock.
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.events:
			fn()
		}
	}
}

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

func (s *Session) call(ctx context.Context, fn func()) error {
	reply := make(chan struct{})
	select {
	case s.events <- func() { fn(); close(reply) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Reload fetches the station list once. The fetch itself runs on the
// caller's goroutine; the result is stored on the loop.
func (s *Session) Reload(ctx context.Context) (station.Collection, error) {
	stations, fetchErr := s.repo.Fetch(ctx)
	var col station.Collection
	var loadErr error
	err := s.call(ctx, func() {
		col, loadErr = s.repo.Apply(stations, fetchErr)
		s.stationsLoaded(loadErr)
	})
	if err != nil {
		return station.Collection{}, err
	}
	return col, loadErr
}

// PushKeyword feeds a table filter keystroke through the debouncer.
func (s *Session) PushKeyword(keyword string) {
	s.keywordMu.Lock()
	defer s.keywordMu.Unlock()
	gen := s.keywordGen.Add(1)
	s.debouncer.Push(keywordPush{keyword: keyword, gen: gen})
}

// ApplyKeyword filters the table immediately and returns its rows. It
// supersedes any keystroke still waiting in the debouncer.
func (s *Session) ApplyKeyword(ctx context.Context, keyword string) ([]Row, error) {
	s.keywordMu.Lock()
	s.keywordGen.Add(1)
	s.debouncer.Cancel()
	s.keywordMu.Unlock()

	var rows []Row
	err := s.call(ctx, func() {
		s.applyKeyword(keyword)
		rows = BuildRows(s.repo.Filtered(), s.tracker.Position())
	})
	return rows, err
}

// Rows returns the current table rows.
func (s *Session) Rows(ctx context.Context) ([]Row, string, error) {
	var rows []Row
	var keyword string
	err := s.call(ctx, func() {
		col := s.repo.Snapshot()
		keyword = col.Keyword
		rows = BuildRows(col.Filtered, s.tracker.Position())
	})
	return rows, keyword, err
}

// Station returns one table row by sno.
func (s *Session) Station(ctx context.Context, sno string) (Row, error) {
	var row Row
	found := false
	err := s.call(ctx, func() {
		st, ok := s.repo.Lookup(sno)
		if !ok {
			return
		}
		found = true
		row = NewRow(st, s.tracker.Position())
	})
	if err != nil {
		return Row{}, err
	}
	if !found {
		return Row{}, ErrUnknownStation
	}
	return row, nil
}

// Suggest returns map search suggestions for query. It is not debounced.
func (s *Session) Suggest(ctx context.Context, query string) ([]station.LabelledStation, error) {
	var out []station.LabelledStation
	err := s.call(ctx, func() {
		res, hit := s.cache.Suggest(s.repo.Labelled(), query)
		out = append([]station.LabelledStation(nil), res...)
		if s.metrics != nil {
			s.metrics.SuggestionQueried(hit)
		}
	})
	return out, err
}

// Focus pans the map to the station. It reports false when the map has
// not been built yet.
func (s *Session) Focus(ctx context.Context, sno string) (bool, error) {
	var applied, found bool
	var focusErr error
	err := s.call(ctx, func() {
		l, ok := s.repo.LookupLabelled(sno)
		if !ok {
			return
		}
		found = true
		applied, focusErr = s.ctrl.FocusOn(l, s.tracker.Position())
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, ErrUnknownStation
	}
	if focusErr != nil {
		log.Printf("focus %s: %v", sno, focusErr)
	}
	return applied, focusErr
}

// State returns a snapshot of the session.
func (s *Session) State(ctx context.Context) (MapState, error) {
	var st MapState
	err := s.call(ctx, func() { st = s.state() })
	return st, err
}

func (s *Session) state() MapState {
	col := s.repo.Snapshot()
	st := MapState{
		State:    s.ctrl.State().String(),
		Position: s.tracker.Position(),
		Markers:  s.ctrl.Markers(),
		Stations: len(col.Canonical),
		Keyword:  col.Keyword,
		Filtered: len(col.Filtered),
		Summary:  availability.Summarize(col.Canonical),
	}
	if o, ok := s.ctrl.Origin(); ok {
		st.Origin = &o
	}
	if t := s.repo.LoadedAt(); !t.IsZero() {
		st.LoadedAt = &t
	}
	return st
}

func (s *Session) stationsLoaded(loadErr error) {
	s.cache.Reset()
	canonical := s.repo.Canonical()
	sum := availability.Summarize(canonical)
	if s.metrics != nil {
		s.metrics.StationsLoaded(sum)
	}
	if loadErr != nil {
		log.Printf("station load failed: %v", loadErr)
	} else {
		log.Printf("loaded %d stations (empty=%d full=%d available=%d)", len(canonical), sum.Empty, sum.Full, sum.Available)
	}
	s.notify(NoticeStations, s.state())
	s.tryInit(canonical)
}

func (s *Session) positionFix(geo.Point) {
	if s.metrics != nil {
		s.metrics.PositionUpdated()
	}
	s.notify(NoticePosition, s.tracker.Position())
	s.tryInit(nil)
}

func (s *Session) positionDenied(p geo.Point) {
	log.Printf("location unavailable, using fallback %s", p)
	if s.metrics != nil {
		s.metrics.PositionDenied()
	}
	s.notify(NoticePosition, s.tracker.Position())
	s.tryInit(nil)
}

func (s *Session) applyKeyword(keyword string) {
	s.repo.ApplyKeyword(keyword)
	if s.metrics != nil {
		s.metrics.FilterRecomputed()
	}
}

// tryInit builds the map if both stations and a position are present.
// canonical may be nil, in which case it is read from the repository.
func (s *Session) tryInit(canonical []station.Station) {
	pos := s.tracker.Position()
	if s.ctrl.State() == mapview.Initialized || !pos.Known {
		return
	}
	if canonical == nil {
		canonical = s.repo.Canonical()
	}
	ok, err := s.ctrl.Init(canonical, pos)
	if err != nil {
		log.Printf("map init: %v", err)
	}
	if ok {
		log.Printf("map initialized at %s with %d stations", pos.Point, s.ctrl.Markers())
	}
}

func (s *Session) notify(typ string, data any) {
	if s.onNotice != nil {
		s.onNotice(Notice{Type: typ, Data: data})
	}
}
