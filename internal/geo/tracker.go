package geo

import (
	"context"
	"log"
	"sync"
)

// Event is one observation from a position source: either a fix or a
// denial. Err optionally explains a denial.
type Event struct {
	Point  Point
	Denied bool
	Err    error
}

// Source is a continuous position watch. The returned channel stays open for
// as long as the source can produce events; ctx cancels the watch.
type Source interface {
	Watch(ctx context.Context) (<-chan Event, error)
}

// Tracker owns the user position. It forwards every fix and substitutes the
// Fallback point exactly once on denial, after which the watch is dropped.
type Tracker struct {
	source Source

	mu       sync.RWMutex
	position Position
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

func NewTracker(source Source) *Tracker {
	return &Tracker{source: source}
}

// Start begins watching. onUpdate receives each fix; onDenied receives the
// fallback point once if the source denies access or cannot be watched.
// Callbacks run on the tracker goroutine. Start may only be called once.
func (t *Tracker) Start(ctx context.Context, onUpdate, onDenied func(Point)) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	wctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	events, err := t.source.Watch(wctx)
	if err != nil {
		log.Printf("position watch unavailable: %v", err)
		cancel()
		t.deny(onDenied)
		close(t.done)
		return
	}

	go func() {
		defer close(t.done)
		for {
			select {
			case <-wctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Denied {
					if ev.Err != nil {
						log.Printf("position access denied: %v", ev.Err)
					}
					cancel()
					t.deny(onDenied)
					return
				}
				if !ev.Point.Valid() {
					log.Printf("ignoring invalid position fix %s", ev.Point)
					continue
				}
				t.mu.Lock()
				t.position = Position{Point: ev.Point, Known: true}
				t.mu.Unlock()
				if onUpdate != nil {
					onUpdate(ev.Point)
				}
			}
		}
	}()
}

func (t *Tracker) deny(onDenied func(Point)) {
	t.mu.Lock()
	t.position = Position{Point: Fallback, Known: true, Fallback: true}
	t.mu.Unlock()
	if onDenied != nil {
		onDenied(Fallback)
	}
}

// Position returns the latest known position.
func (t *Tracker) Position() Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.position
}

// Stop cancels the watch and waits for the tracker goroutine to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
