// Package db keeps a DuckDB-backed audit log of per-sample pipeline events.
// The log is diagnostic only; runs never consult it to skip work.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Register DuckDB driver
)

// Event types.
const (
	EventFetchStart   = "fetch_start"
	EventSampleDone   = "sample_done"
	EventSampleFailed = "sample_failed"
	EventGroupDone    = "group_done"
	EventGroupEmpty   = "group_empty"
	EventSiteFailed   = "site_failed"
)

const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS sample_event_id_seq;`
const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS sample_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('sample_event_id_seq'),
    run_id          VARCHAR NOT NULL,
    site            VARCHAR NOT NULL,
    grp             VARCHAR,               -- 'tumor' / 'normal', empty for site events
    file_id         VARCHAR,
    sample_id       VARCHAR,
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    message         VARCHAR,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_sample_event_log_run ON sample_event_log (run_id, site);
CREATE INDEX IF NOT EXISTS idx_sample_event_log_event_time ON sample_event_log (event, event_timestamp);
`

// InitializeSchema creates the sequence and table in order.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSequenceSQL); err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute sequence setup: %w", err)
	}
	if _, err := db.Exec(schemaTableSQL); err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute table/index setup: %w", err)
	}
	return nil
}

// Event is one row of the sample event log.
type Event struct {
	RunID    string
	Site     string
	Group    string
	FileID   string
	SampleID string
	Event    string
	Message  string
	Duration *time.Duration
}

// LogEvent inserts one event record. A nil db is a no-op so callers can run
// without a state database.
func LogEvent(ctx context.Context, db *sql.DB, ev Event) error {
	if db == nil {
		return nil
	}
	query := `
        INSERT INTO sample_event_log (run_id, site, grp, file_id, sample_id, event, event_timestamp, message, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
    `
	var durationMs sql.NullInt64
	if ev.Duration != nil {
		durationMs = sql.NullInt64{Int64: ev.Duration.Milliseconds(), Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		ev.RunID,
		ev.Site,
		sql.NullString{String: ev.Group, Valid: ev.Group != ""},
		sql.NullString{String: ev.FileID, Valid: ev.FileID != ""},
		sql.NullString{String: ev.SampleID, Valid: ev.SampleID != ""},
		ev.Event,
		time.Now().UTC(),
		sql.NullString{String: ev.Message, Valid: ev.Message != ""},
		durationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log event '%s' for '%s': %w", ev.Event, ev.FileID, err)
	}
	return nil
}

// DisplayHistory queries and prints recent event log rows.
func DisplayHistory(ctx context.Context, db *sql.DB, eventFilter, groupFilter string, limit int) error {
	query := `
        SELECT run_id, site, grp, file_id, sample_id, event, event_timestamp, message, duration_ms
        FROM sample_event_log
    `
	conditions := []string{}
	args := []any{}
	argCounter := 1

	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argCounter))
		args = append(args, eventFilter)
		argCounter++
	}
	if groupFilter != "" {
		conditions = append(conditions, fmt.Sprintf("grp = $%d", argCounter))
		args = append(args, groupFilter)
		argCounter++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	fmt.Printf("--- Sample Event Log (Limit %d) ---\n", limit)
	fmt.Printf("%-20s | %-8s | %-36s | %-28s | %-15s | %-25s | %-10s | %s\n",
		"Site", "Group", "File ID", "Sample ID", "Event", "Timestamp (UTC)", "DurationMS", "Message")
	fmt.Println(strings.Repeat("-", 170))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var runID, site, event string
		var grp, fileID, sampleID, message sql.NullString
		var timestamp time.Time
		var durationMs sql.NullInt64
		if err := rows.Scan(&runID, &site, &grp, &fileID, &sampleID, &event, &timestamp, &message, &durationMs); err != nil {
			return fmt.Errorf("failed to scan event log row: %w", err)
		}

		durationStr := ""
		if durationMs.Valid {
			durationStr = fmt.Sprintf("%d", durationMs.Int64)
		}
		fmt.Printf("%-20s | %-8s | %-36s | %-28s | %-15s | %-25s | %-10s | %s\n",
			site, grp.String, fileID.String, sampleID.String, event,
			timestamp.Format(time.RFC3339), durationStr, message.String)
		count++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating event log rows: %w", err)
	}
	fmt.Printf("Displayed %d records.\n", count)
	return nil
}
