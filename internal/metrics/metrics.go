package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bikemap/internal/availability"
)

type Collector struct {
	reg *prometheus.Registry

	FetchTotal    *prometheus.CounterVec // result label: ok|error
	FetchDuration prometheus.Histogram
	Stations      *prometheus.GaugeVec // state label: empty|full|available

	MapInitializations prometheus.Counter
	MapMarkers         prometheus.Gauge
	FocusTotal         *prometheus.CounterVec // applied label: true|false

	PositionUpdates prometheus.Counter
	LocationDenied  prometheus.Counter

	FilterRecomputations prometheus.Counter
	SuggestionQueries    *prometheus.CounterVec // cache label: hit|miss

	SSEClients prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	DebounceWindow prometheus.Gauge // seconds
}

func NewCollector(debounce time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bikemap_station_fetch_total",
			Help: "Station list fetches by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bikemap_station_fetch_duration_seconds",
			Help:    "Duration of a station list fetch.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Stations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bikemap_stations",
			Help: "Stations in the last successful load by availability state.",
		}, []string{"state"}),
		MapInitializations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bikemap_map_initializations_total",
			Help: "Number of times the map was constructed.",
		}),
		MapMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bikemap_map_station_markers",
			Help: "Station markers placed at map initialization.",
		}),
		FocusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bikemap_map_focus_total",
			Help: "Station focus requests by whether they were applied.",
		}, []string{"applied"}),
		PositionUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bikemap_position_updates_total",
			Help: "Position fixes received from the tracker.",
		}),
		LocationDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bikemap_location_denied_total",
			Help: "Times the fallback position replaced a denied location.",
		}),
		FilterRecomputations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bikemap_table_filter_recomputations_total",
			Help: "Table filter recomputations after debouncing.",
		}),
		SuggestionQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bikemap_suggestion_queries_total",
			Help: "Map search suggestion queries by cache outcome.",
		}, []string{"cache"}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bikemap_sse_clients",
			Help: "Connected map event stream clients.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bikemap_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bikemap_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bikemap_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bikemap_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		DebounceWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bikemap_filter_debounce_seconds",
			Help: "Table filter debounce window in seconds.",
		}),
	}

	reg.MustRegister(
		c.FetchTotal, c.FetchDuration, c.Stations,
		c.MapInitializations, c.MapMarkers, c.FocusTotal,
		c.PositionUpdates, c.LocationDenied,
		c.FilterRecomputations, c.SuggestionQueries, c.SSEClients,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.DebounceWindow,
	)

	c.DebounceWindow.Set(debounce.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

func (c *Collector) FetchObserve(d time.Duration, err error) {
	c.FetchDuration.Observe(d.Seconds())
	if err != nil {
		c.FetchTotal.WithLabelValues("error").Inc()
		return
	}
	c.FetchTotal.WithLabelValues("ok").Inc()
}

func (c *Collector) StationsLoaded(sum availability.Summary) {
	c.Stations.WithLabelValues(availability.Empty.String()).Set(float64(sum.Empty))
	c.Stations.WithLabelValues(availability.Full.String()).Set(float64(sum.Full))
	c.Stations.WithLabelValues(availability.Available.String()).Set(float64(sum.Available))
}

func (c *Collector) MapInitialized(markers int) {
	c.MapInitializations.Inc()
	c.MapMarkers.Set(float64(markers))
}

func (c *Collector) FocusApplied(applied bool) {
	if applied {
		c.FocusTotal.WithLabelValues("true").Inc()
		return
	}
	c.FocusTotal.WithLabelValues("false").Inc()
}

func (c *Collector) PositionUpdated() { c.PositionUpdates.Inc() }

func (c *Collector) PositionDenied() { c.LocationDenied.Inc() }

func (c *Collector) FilterRecomputed() { c.FilterRecomputations.Inc() }

func (c *Collector) SuggestionQueried(cacheHit bool) {
	if cacheHit {
		c.SuggestionQueries.WithLabelValues("hit").Inc()
		return
	}
	c.SuggestionQueries.WithLabelValues("miss").Inc()
}

func (c *Collector) SetSSEClients(n int) { c.SSEClients.Set(float64(n)) }
