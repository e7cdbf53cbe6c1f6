package geo

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrPermissionDenied is reported by PushSource.Deny when no reason is given.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrWatchEnded is returned once nobody consumes the source any more.
	ErrWatchEnded = errors.New("position watch ended")
	ErrQueueFull  = errors.New("position queue full")
)

// PushSource is fed by an external producer, typically the browser posting
// navigator.geolocation results. Sends never block: when the buffer is full
// the fix is dropped, since a newer one will follow.
type PushSource struct {
	ch chan Event

	ended chan struct{}
	once  sync.Once
}

func NewPushSource(buffer int) *PushSource {
	if buffer <= 0 {
		buffer = 16
	}
	return &PushSource{ch: make(chan Event, buffer), ended: make(chan struct{})}
}

// Watch hands out the event channel. The source ends when ctx is done.
func (p *PushSource) Watch(ctx context.Context) (<-chan Event, error) {
	go func() {
		<-ctx.Done()
		p.once.Do(func() { close(p.ended) })
	}()
	return p.ch, nil
}

// Fix queues a position fix.
func (p *PushSource) Fix(pt Point) error {
	return p.send(Event{Point: pt})
}

// Deny queues a denial event.
func (p *PushSource) Deny(reason error) error {
	if reason == nil {
		reason = ErrPermissionDenied
	}
	return p.send(Event{Denied: true, Err: reason})
}

func (p *PushSource) send(ev Event) error {
	select {
	case <-p.ended:
		return ErrWatchEnded
	default:
	}
	select {
	case p.ch <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}
