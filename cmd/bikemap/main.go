package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bikemap/internal/api"
	"bikemap/internal/config"
	"bikemap/internal/db"
	"bikemap/internal/feed"
	"bikemap/internal/geo"
	"bikemap/internal/mapview"
	"bikemap/internal/metrics"
	"bikemap/internal/publisher"
	"bikemap/internal/search"
	"bikemap/internal/sse"
	"bikemap/internal/station"
	"bikemap/internal/view"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	mcol := metrics.NewCollector(cfg.FilterDebounce)
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	// Station source
	fetcher, sqlDB := openFetcher(ctx, cfg, mcol)
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	// Map commands go to connected browsers and, if configured, to NATS.
	events := sse.NewManager()
	events.SetClientCountCallback(mcol.SetSSEClients)
	renderer := mapview.NewCommandRenderer(sse.CommandSink(events))
	sse.ReplayOnConnect(events, renderer.Replay)

	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		renderer.AddSink(pub)
		log.Printf("publishing map commands on %s", publisher.CommandSubject(cfg.NATSSubjectPrefix, "*"))
	}

	// Position source: NATS subject, replayed track, or the browser.
	var source geo.Source
	var browser *geo.PushSource
	switch {
	case cfg.PositionSubject != "":
		source = publisher.NewNATSSource(pub.Conn(), cfg.PositionSubject)
	case len(cfg.ReplayTrack) > 0:
		source = &geo.ReplaySource{Track: cfg.ReplayTrack, Interval: cfg.ReplayInterval, SpeedMps: cfg.ReplaySpeedMps, Loop: true}
		log.Printf("replaying a %d-point track", len(cfg.ReplayTrack))
	default:
		browser = geo.NewPushSource(16)
		source = browser
	}

	repo := station.NewRepository(fetcher, search.Match)
	ctrl := mapview.NewController(renderer, mcol)
	session := view.NewSession(repo, source, ctrl, view.Options{
		Debounce:            cfg.FilterDebounce,
		SuggestionCacheSize: cfg.SuggestionCacheSize,
		Metrics:             mcol,
		OnNotice: func(n view.Notice) {
			events.Broadcast(sse.Message{Type: n.Type, Data: n.Data})
		},
	})
	session.Start(ctx)

	var positions api.PositionSink
	if browser != nil {
		positions = browser
	}
	handler := api.NewHandler(session, positions)
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(handler, api.RouterOptions{
			AllowedOrigins: cfg.CORSOrigins,
			Events:         sse.Handler(events),
			StaticDir:      cfg.StaticDir,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()
	log.Printf("http listening on %s (stations from %s)", cfg.HTTPAddr, fetcher.Name())

	// Block until context cancelled
	<-ctx.Done()
	<-session.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}

func openFetcher(ctx context.Context, cfg *config.Config, mcol *metrics.Collector) (station.Fetcher, *sql.DB) {
	var driver, dsn string
	switch cfg.StationSource {
	case config.SourcePostgres:
		driver, dsn = db.DriverPostgres, cfg.DatabaseURL
	case config.SourceSQLite:
		driver, dsn = db.DriverSQLite, cfg.SQLitePath
	default:
		return feed.NewHTTPFetcher(cfg.StationsURL, cfg.FetchTimeout, mcol), nil
	}

	sqlDB, err := db.Open(driver, dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	if err := db.EnsureSchema(ctx, sqlDB); err != nil {
		log.Fatalf("db schema error: %v", err)
	}
	return db.NewStationSource(sqlDB, cfg.StationSource), sqlDB
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
