package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS security_events (
	id         TEXT PRIMARY KEY,
	timestamp  TEXT NOT NULL,
	event_type TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	client_ip  TEXT NOT NULL,
	method     TEXT NOT NULL,
	path       TEXT NOT NULL,
	user_agent TEXT,
	confidence INTEGER,
	detail     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_security_events_client_ip ON security_events(client_ip);
`

const auditBuffer = 256

// SQLiteAuditSink persists events to a local append-only SQLite table for
// out-of-band review. Writes go through a buffered channel and a single
// background writer; when the buffer is full events are dropped rather than
// blocking the request path.
type SQLiteAuditSink struct {
	db     *sql.DB
	queue  chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	closed sync.Once
}

// NewSQLiteAuditSink opens (or creates) the audit database at path and starts
// the background writer.
func NewSQLiteAuditSink(path string) (*SQLiteAuditSink, error) {
	if path == "" {
		return nil, fmt.Errorf("audit database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}

	s := &SQLiteAuditSink{
		db:    db,
		queue: make(chan Event, auditBuffer),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

// Write enqueues an event for persistence. It never blocks: when the buffer
// is full the event is dropped and an error returned for the caller's debug
// log.
func (s *SQLiteAuditSink) Write(_ context.Context, ev Event) error {
	select {
	case <-s.done:
		return fmt.Errorf("audit sink closed")
	default:
	}

	select {
	case s.queue <- ev:
		return nil
	default:
		return fmt.Errorf("audit buffer full, event %s dropped", ev.ID)
	}
}

// Close stops the writer after draining queued events and closes the
// database.
func (s *SQLiteAuditSink) Close() error {
	s.closed.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return s.db.Close()
}

func (s *SQLiteAuditSink) writer() {
	defer s.wg.Done()
	for {
		select {
		case ev := <-s.queue:
			s.insert(ev)
		case <-s.done:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case ev := <-s.queue:
					s.insert(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *SQLiteAuditSink) insert(ev Event) {
	detail, err := json.Marshal(ev)
	if err != nil {
		slog.Debug("Audit event marshal failed", "error", err, "event_id", ev.ID)
		return
	}

	confidence := 0
	if ev.Classification != nil {
		confidence = ev.Classification.Confidence
	}

	_, err = s.db.Exec(
		`INSERT INTO security_events
			(id, timestamp, event_type, outcome, client_ip, method, path, user_agent, confidence, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		string(ev.Type),
		ev.Outcome,
		ev.Signals.ClientIP,
		ev.Signals.Method,
		ev.Signals.Path,
		ev.Signals.UserAgent,
		confidence,
		string(detail),
	)
	if err != nil {
		slog.Debug("Audit event insert failed", "error", err, "event_id", ev.ID)
	}
}
