package geo

import (
	"context"
	"errors"
	"time"
)

// ReplaySource walks a fixed track at a constant speed and emits the
// interpolated position on every tick. Used for demos without a browser.
type ReplaySource struct {
	Track    []Point
	Interval time.Duration
	SpeedMps float64
	Loop     bool
}

func (r *ReplaySource) Watch(ctx context.Context) (<-chan Event, error) {
	if len(r.Track) == 0 {
		return nil, errors.New("replay track is empty")
	}
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	speed := r.SpeedMps
	if speed <= 0 {
		speed = 1.4
	}
	cum := CumDistances(r.Track)
	total := cum[len(cum)-1]

	out := make(chan Event, 1)
	go func() {
		defer close(out)
		start := time.Now()
		send := func(p Point) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- Event{Point: p}:
				return true
			}
		}
		if !send(r.Track[0]) {
			return
		}
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tick.C:
				dist := now.Sub(start).Seconds() * speed
				if total > 0 && dist >= total {
					if !r.Loop {
						send(r.Track[len(r.Track)-1])
						return
					}
					start = now
					dist = 0
				}
				if !send(Interpolate(r.Track, cum, dist)) {
					return
				}
			}
		}
	}()
	return out, nil
}

// CumDistances returns the cumulative haversine distance at each point.
func CumDistances(pts []Point) []float64 {
	n := len(pts)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += Distance(pts[i-1], pts[i])
		cum[i] = sum
	}
	return cum
}

// Interpolate finds the point at dist meters along the polyline.
func Interpolate(pts []Point, cum []float64, dist float64) Point {
	n := len(pts)
	if n == 0 {
		return Point{}
	}
	total := cum[n-1]
	if total == 0 || dist <= 0 {
		return pts[0]
	}
	if dist >= total {
		return pts[n-1]
	}
	i := 1
	for i < n && cum[i] < dist {
		i++
	}
	d0, d1 := cum[i-1], cum[i]
	p0, p1 := pts[i-1], pts[i]
	if d1 == d0 {
		return p0
	}
	frac := (dist - d0) / (d1 - d0)
	return Point{
		Lat: p0.Lat + (p1.Lat-p0.Lat)*frac,
		Lng: p0.Lng + (p1.Lng-p0.Lng)*frac,
	}
}
