package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bikemap/internal/station"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver names registered with database/sql.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS stations (
  sno                    TEXT PRIMARY KEY,
  sna                    TEXT NOT NULL,
  snaen                  TEXT NOT NULL DEFAULT '',
  sarea                  TEXT NOT NULL DEFAULT '',
  sareaen                TEXT NOT NULL DEFAULT '',
  ar                     TEXT NOT NULL DEFAULT '',
  aren                   TEXT NOT NULL DEFAULT '',
  mday                   TEXT NOT NULL DEFAULT '',
  act                    TEXT NOT NULL DEFAULT '1',
  latitude               DOUBLE PRECISION NOT NULL,
  longitude              DOUBLE PRECISION NOT NULL,
  total                  INTEGER NOT NULL DEFAULT 0,
  available_rent_bikes   INTEGER NOT NULL DEFAULT 0,
  available_return_bikes INTEGER NOT NULL DEFAULT 0,
  info_date              TEXT NOT NULL DEFAULT '',
  info_time              TEXT NOT NULL DEFAULT '',
  update_time            TEXT NOT NULL DEFAULT '',
  src_update_time        TEXT NOT NULL DEFAULT ''
)`

// EnsureSchema creates the stations table if it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create stations table: %w", err)
	}
	return nil
}

// StationSource reads the station list from a table mirroring the feed. It
// implements station.Fetcher.
type StationSource struct {
	db   *sql.DB
	name string
}

func NewStationSource(db *sql.DB, name string) *StationSource {
	return &StationSource{db: db, name: name}
}

func (s *StationSource) Name() string { return s.name }

func (s *StationSource) FetchStations(ctx context.Context) ([]station.Station, error) {
	q := `SELECT sno, sna, snaen, sarea, sareaen, ar, aren, mday, act,
                 latitude, longitude, total, available_rent_bikes, available_return_bikes,
                 info_date, info_time, update_time, src_update_time
          FROM stations ORDER BY sno`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var out []station.Station
	for rows.Next() {
		var st station.Station
		if err := rows.Scan(
			&st.Sno, &st.Sna, &st.SnaEn, &st.Sarea, &st.SareaEn, &st.Ar, &st.ArEn, &st.Mday, &st.Act,
			&st.Latitude, &st.Longitude, &st.Total, &st.AvailableRent, &st.AvailableRet,
			&st.InfoDate, &st.InfoTime, &st.UpdateTime, &st.SrcUpdateTime,
		); err != nil {
			return nil, fmt.Errorf("scan station row: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
