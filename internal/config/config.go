package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bikemap/internal/feed"
	"bikemap/internal/geo"
)

// Station sources.
const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

type Config struct {
	HTTPAddr            string
	StationSource       string
	StationsURL         string
	DatabaseURL         string
	SQLitePath          string
	FetchTimeout        time.Duration
	FilterDebounce      time.Duration
	SuggestionCacheSize int
	NATSURL             string
	NATSSubjectPrefix   string
	PositionSubject     string
	LogNATSSubjects     bool
	MetricsAddr         string
	CORSOrigins         []string
	StaticDir           string
	ReplayTrack         []geo.Point
	ReplayInterval      time.Duration
	ReplaySpeedMps      float64
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		StationsURL:       getenvDefault("STATIONS_URL", feed.DefaultURL),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "bikemap"),
		PositionSubject:   strings.TrimSpace(os.Getenv("POSITION_SUBJECT")),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
		StaticDir:         os.Getenv("STATIC_DIR"),
		LogNATSSubjects:   parseBool(os.Getenv("LOG_NATS_SUBJECTS")),
	}

	cfg.StationSource = strings.ToLower(getenvDefault("STATION_SOURCE", SourceHTTP))
	switch cfg.StationSource {
	case SourceHTTP:
	case SourcePostgres:
		dsn, err := postgresDSN()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	case SourceSQLite:
		cfg.SQLitePath = getenvDefault("SQLITE_DATABASE", "data/stations.db")
	default:
		return nil, fmt.Errorf("invalid STATION_SOURCE: %q", cfg.StationSource)
	}

	var err error
	if cfg.FetchTimeout, err = positiveDuration("FETCH_TIMEOUT_SEC", time.Second, 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.FilterDebounce, err = positiveDuration("FILTER_DEBOUNCE_MS", time.Millisecond, 300*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ReplayInterval, err = positiveDuration("REPLAY_INTERVAL_MS", time.Millisecond, time.Second); err != nil {
		return nil, err
	}

	cfg.SuggestionCacheSize = 256
	if v := os.Getenv("SUGGESTION_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SUGGESTION_CACHE_SIZE: %q", v)
		}
		cfg.SuggestionCacheSize = n
	}

	cfg.ReplaySpeedMps = 1.4
	if v := os.Getenv("REPLAY_SPEED_MPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid REPLAY_SPEED_MPS: %q", v)
		}
		cfg.ReplaySpeedMps = f
	}

	if v := os.Getenv("REPLAY_TRACK"); v != "" {
		track, err := geo.ParseTrack(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REPLAY_TRACK: %w", err)
		}
		cfg.ReplayTrack = track
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if cfg.PositionSubject != "" && cfg.NATSURL == "" {
		return nil, errors.New("POSITION_SUBJECT requires NATS_URL")
	}
	if cfg.PositionSubject != "" && len(cfg.ReplayTrack) > 0 {
		return nil, errors.New("POSITION_SUBJECT and REPLAY_TRACK are mutually exclusive")
	}

	return cfg, nil
}

// postgresDSN prefers DATABASE_URL / PG_DSN, else builds one from PG* vars.
func postgresDSN() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set when STATION_SOURCE=postgres")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func positiveDuration(key string, unit, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(n) * unit, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
