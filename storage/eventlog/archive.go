// Package eventlog archives committed engine events in SQLite for off-chain
// inspection.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"

	"eurocredit/core/types"
)

// ErrPathRequired is returned when the archive path is missing.
var ErrPathRequired = errors.New("eventlog: archive path must be configured")

const schema = `
CREATE TABLE IF NOT EXISTS events (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    type        TEXT NOT NULL,
    attributes  TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS events_type_idx ON events(type, seq);
`

// Record is an archived event.
type Record struct {
	ID         string
	Seq        int64
	Type       string
	Attributes map[string]string
	RecordedAt time.Time
}

// Archive stores events in an append-only table.
type Archive struct {
	db    *sql.DB
	clock func() time.Time
}

// Open initialises the archive at path, creating the schema when needed.
func Open(path string) (*Archive, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: apply schema: %w", err)
	}
	return &Archive{db: db, clock: time.Now}, nil
}

// Close releases database resources.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Record appends evt to the archive. It satisfies events.Sink.
func (a *Archive) Record(ctx context.Context, evt *types.Event) error {
	if a == nil || a.db == nil {
		return fmt.Errorf("eventlog: archive not configured")
	}
	if evt == nil || strings.TrimSpace(evt.Type) == "" {
		return fmt.Errorf("eventlog: event type required")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("eventlog: encode attributes: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
        INSERT INTO events(id, type, attributes, recorded_at)
        VALUES(?, ?, ?, ?)
    `, uuid.NewString(), evt.Type, string(encoded), a.clock().UTC())
	if err != nil {
		return fmt.Errorf("eventlog: insert event: %w", err)
	}
	return nil
}

// List returns up to limit events in insertion order. An empty eventType
// matches every type; limit <= 0 means no limit.
func (a *Archive) List(ctx context.Context, eventType string, limit int) ([]Record, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("eventlog: archive not configured")
	}
	query := `SELECT seq, id, type, attributes, recorded_at FROM events`
	var args []any
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		query += ` WHERE type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec   Record
			attrs string
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.Type, &attrs, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("eventlog: scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("eventlog: decode attributes: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: iterate events: %w", err)
	}
	return out, nil
}

// Count returns the number of archived events of eventType, or of every type
// when eventType is empty.
func (a *Archive) Count(ctx context.Context, eventType string) (int64, error) {
	if a == nil || a.db == nil {
		return 0, fmt.Errorf("eventlog: archive not configured")
	}
	var (
		row   *sql.Row
		count int64
	)
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		row = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE type = ?`, eventType)
	} else {
		row = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`)
	}
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("eventlog: count events: %w", err)
	}
	return count, nil
}
