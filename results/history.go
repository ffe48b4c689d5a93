package results

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SessionRecord is one completed session as kept in the history.
type SessionRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Runs       int       `json:"runs"`
	Seed       int64     `json:"seed"`
	Cases      []string  `json:"cases,omitempty"`
	Sizes      []int     `json:"sizes,omitempty"`
	RowCount   int       `json:"row_count"`
	Rows       []Row     `json:"rows,omitempty"`
}

// History keeps the results of past sessions in a SQLite database, so
// runs can be compared across sessions after the CSV is overwritten.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the history database at path.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, fmt.Errorf("ping history: %w", err)
	}

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		db.Close()

		return nil, fmt.Errorf("migrate history: %w", err)
	}

	return h, nil
}

func (h *History) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			runs INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			cases TEXT NOT NULL,
			sizes TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_rows (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq INTEGER NOT NULL,
			language TEXT NOT NULL,
			case_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			mean_time_sec REAL NOT NULL,
			std_dev_sec REAL NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := h.db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Append stores a session and its rows in one transaction.
func (h *History) Append(ctx context.Context, rec SessionRecord) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	sizes := make([]string, len(rec.Sizes))
	for i, s := range rec.Sizes {
		sizes[i] = strconv.Itoa(s)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, finished_at, runs, seed, cases, sizes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UnixNano(),
		rec.FinishedAt.UnixNano(),
		rec.Runs,
		rec.Seed,
		strings.Join(rec.Cases, ","),
		strings.Join(sizes, ","),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, r := range rec.Rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_rows (session_id, seq, language, case_type, size, mean_time_sec, std_dev_sec)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, r.Language, r.Case, r.Size, r.MeanSec, r.StdDevSec,
		); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Sessions returns up to limit sessions, newest first, without rows.
func (h *History) Sessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT s.id, s.started_at, s.finished_at, s.runs, s.seed, s.cases, s.sizes,
		(SELECT COUNT(*) FROM session_rows r WHERE r.session_id = s.id)
	FROM sessions s
	ORDER BY s.started_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord

	for rows.Next() {
		var (
			rec              SessionRecord
			started, done    int64
			cases, sizesText string
		)

		if err := rows.Scan(&rec.ID, &started, &done, &rec.Runs, &rec.Seed,
			&cases, &sizesText, &rec.RowCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		rec.StartedAt = time.Unix(0, started)
		rec.FinishedAt = time.Unix(0, done)

		if cases != "" {
			rec.Cases = strings.Split(cases, ",")
		}

		for _, s := range strings.Split(sizesText, ",") {
			if n, err := strconv.Atoi(s); err == nil {
				rec.Sizes = append(rec.Sizes, n)
			}
		}

		out = append(out, rec)
	}

	return out, rows.Err()
}

// Rows returns the rows of one session in sweep order.
func (h *History) Rows(ctx context.Context, sessionID string) ([]Row, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT language, case_type, size, mean_time_sec, std_dev_sec
	FROM session_rows WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []Row

	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Language, &r.Case, &r.Size, &r.MeanSec, &r.StdDevSec); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		out = append(out, r)
	}

	return out, rows.Err()
}
