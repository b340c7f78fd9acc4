package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/couchcryptid/parkwise/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id           TEXT PRIMARY KEY,
	issued_at    TEXT NOT NULL,
	day_of_week  TEXT NOT NULL,
	hour         INTEGER NOT NULL,
	location     TEXT NOT NULL,
	code         TEXT NOT NULL,
	description  TEXT NOT NULL,
	fine         REAL NOT NULL,
	lat          REAL,
	lng          REAL,
	geo_source   TEXT NOT NULL DEFAULT '',
	processed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_location ON tickets(location);
CREATE INDEX IF NOT EXISTS idx_tickets_window ON tickets(day_of_week, hour);
`

const insertTicket = `
INSERT INTO tickets (id, issued_at, day_of_week, hour, location, code, description, fine, lat, lng, geo_source, processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`

// windowFilter matches every row when the day is empty or the hour negative.
const windowFilter = `(? = '' OR day_of_week = ?) AND (? < 0 OR hour = ?)`

// LocationRow is one violation location aggregated over a time window. Lat
// and Lng are the mean of the stored coordinates and invalid when no ticket
// at the location carried any.
type LocationRow struct {
	Location       string
	Count          int
	AvgFine        float64
	ViolationTypes int
	Lat            sql.NullFloat64
	Lng            sql.NullFloat64
}

// Store persists tickets in SQLite and answers the aggregate queries.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenStore opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenStore(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// LoadBatch inserts tickets in one transaction. Tickets whose ID is already
// stored are skipped, so replays are harmless. It implements
// pipeline.BatchLoader.
func (s *Store) LoadBatch(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertTicket)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range tickets {
		t := &tickets[i]
		res, err := stmt.ExecContext(ctx,
			t.ID, t.IssuedAt.UTC().Format(time.RFC3339), t.DayOfWeek, t.Hour,
			t.Location, t.Code, t.Description, t.Fine,
			nullable(t.Lat), nullable(t.Lng), t.GeoSource,
			t.ProcessedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert ticket %s: %w", t.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	s.logger.Debug("tickets loaded", "received", len(tickets), "inserted", inserted)
	return nil
}

// Count returns the number of stored tickets.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

// LocationAggregates groups tickets in the window by location, busiest
// first. A non-positive limit returns every location.
func (s *Store) LocationAggregates(ctx context.Context, day domain.Day, hour domain.Hour, limit int) ([]LocationRow, error) {
	if limit <= 0 {
		limit = -1
	}
	dayArg, hourArg := windowArgs(day, hour)
	rows, err := s.db.QueryContext(ctx, `
		SELECT location, COUNT(*), AVG(fine), COUNT(DISTINCT code), AVG(lat), AVG(lng)
		FROM tickets
		WHERE location <> '' AND `+windowFilter+`
		GROUP BY location
		ORDER BY COUNT(*) DESC, location
		LIMIT ?`,
		dayArg, dayArg, hourArg, hourArg, limit)
	if err != nil {
		return nil, fmt.Errorf("query location aggregates: %w", err)
	}
	defer rows.Close()

	var out []LocationRow
	for rows.Next() {
		var r LocationRow
		if err := rows.Scan(&r.Location, &r.Count, &r.AvgFine, &r.ViolationTypes, &r.Lat, &r.Lng); err != nil {
			return nil, fmt.Errorf("scan location aggregate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ViolationTypes counts tickets by description and fine, most common first.
// An empty location covers every location; a non-positive limit returns all.
func (s *Store) ViolationTypes(ctx context.Context, location string, limit int) ([]domain.ViolationTypeCount, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT description, COUNT(*), fine
		FROM tickets
		WHERE (? = '' OR location = ?)
		GROUP BY description, fine
		ORDER BY COUNT(*) DESC, description
		LIMIT ?`,
		location, location, limit)
	if err != nil {
		return nil, fmt.Errorf("query violation types: %w", err)
	}
	defer rows.Close()

	out := []domain.ViolationTypeCount{}
	for rows.Next() {
		var v domain.ViolationTypeCount
		if err := rows.Scan(&v.ViolationType, &v.Count, &v.Fine); err != nil {
			return nil, fmt.Errorf("scan violation type: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// HourCounts returns one bucket per hour of day, 0 through 23, including
// empty hours.
func (s *Store) HourCounts(ctx context.Context) ([]domain.HourCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hour, COUNT(*) FROM tickets GROUP BY hour`)
	if err != nil {
		return nil, fmt.Errorf("query hour counts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HourCount, 24)
	for h := range out {
		out[h].Hour = h
	}
	for rows.Next() {
		var h, n int
		if err := rows.Scan(&h, &n); err != nil {
			return nil, fmt.Errorf("scan hour count: %w", err)
		}
		if h >= 0 && h < 24 {
			out[h].Count = n
		}
	}
	return out, rows.Err()
}

// TopLocations returns the locations with the most tickets.
func (s *Store) TopLocations(ctx context.Context, limit int) ([]domain.LocationCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT location, COUNT(*)
		FROM tickets
		WHERE location <> ''
		GROUP BY location
		ORDER BY COUNT(*) DESC, location
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top locations: %w", err)
	}
	defer rows.Close()

	out := []domain.LocationCount{}
	for rows.Next() {
		var l domain.LocationCount
		if err := rows.Scan(&l.Location, &l.Count); err != nil {
			return nil, fmt.Errorf("scan top location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Patterns groups a location's tickets by weekday and hour, busiest first.
func (s *Store) Patterns(ctx context.Context, location string) ([]domain.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day_of_week, hour, COUNT(*), AVG(fine)
		FROM tickets
		WHERE location = ?
		GROUP BY day_of_week, hour
		ORDER BY COUNT(*) DESC, day_of_week, hour`, location)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	out := []domain.Pattern{}
	for rows.Next() {
		var p domain.Pattern
		if err := rows.Scan(&p.DayOfWeek, &p.Hour, &p.Count, &p.AvgFine); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ErrNoTickets is returned by readiness checks against an empty store.
var ErrNoTickets = errors.New("ticket store is empty")

// CheckReadiness reports ready once the store holds at least one ticket.
func (s *Store) CheckReadiness(ctx context.Context) error {
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoTickets
	}
	return nil
}

func windowArgs(day domain.Day, hour domain.Hour) (string, int) {
	d := ""
	if !day.IsAll() {
		d = string(day)
	}
	h := -1
	if !hour.IsAll() {
		h = int(hour)
	}
	return d, h
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
