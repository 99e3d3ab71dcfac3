package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// SQLDialect defines the SQL syntax variant.
type SQLDialect string

const (
	DialectSQLite   SQLDialect = "sqlite"
	DialectPostgres SQLDialect = "postgres"
	DialectMySQL    SQLDialect = "mysql"
)

// Ledger is a database-backed append-only record of pipeline runs.
// Records are inserted once and never updated; List returns them
// oldest-first. The schema is created lazily on first access and torn down
// only by Clear. The caller opens the *sql.DB with their preferred driver
// (sqlite by default in the CLI).
type Ledger struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect

	initOnce sync.Once
	initErr  error
}

// NewLedger creates a ledger over db. An empty tableName selects
// "krama_history".
func NewLedger(db *sql.DB, tableName string, dialect SQLDialect) *Ledger {
	if tableName == "" {
		tableName = "krama_history"
	}
	return &Ledger{db: db, tableName: tableName, dialect: dialect}
}

func (l *Ledger) ensureSchema(ctx context.Context) error {
	l.initOnce.Do(func() {
		timestampType := "TIMESTAMP"
		if l.dialect == DialectPostgres {
			timestampType = "TIMESTAMPTZ"
		} else if l.dialect == DialectMySQL {
			timestampType = "DATETIME"
		}

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id VARCHAR(36) PRIMARY KEY,
				stages TEXT,
				started_at %s,
				finished_at %s,
				outcome VARCHAR(16),
				failed_stage INTEGER,
				error TEXT
			);
		`, l.tableName, timestampType, timestampType)

		_, l.initErr = l.db.ExecContext(ctx, query)
	})
	return l.initErr
}

// Append adds one immutable record. Existing records are never touched.
func (l *Ledger) Append(ctx context.Context, run *Run) error {
	if err := l.ensureSchema(ctx); err != nil {
		return fmt.Errorf("history: init schema: %w", err)
	}

	placeholders := "?, ?, ?, ?, ?, ?, ?"
	if l.dialect == DialectPostgres {
		placeholders = "$1, $2, $3, $4, $5, $6, $7"
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, stages, started_at, finished_at, outcome, failed_stage, error)
		VALUES (%s)
	`, l.tableName, placeholders)

	_, err := l.db.ExecContext(ctx, query,
		run.ID,
		strings.Join(run.Stages, "\n"),
		run.StartedAt,
		run.FinishedAt,
		string(run.Outcome),
		run.FailedStage,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("history: append run %s: %w", run.ID, err)
	}
	return nil
}

// List returns every recorded run, oldest first. It has no side effects.
func (l *Ledger) List(ctx context.Context) ([]Run, error) {
	if err := l.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("history: init schema: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, stages, started_at, finished_at, outcome, failed_stage, error
		FROM %s
		ORDER BY started_at ASC, id ASC
	`, l.tableName)

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			stages    string
			started   time.Time
			finished  time.Time
			outcome   string
			errString sql.NullString
		)
		if err := rows.Scan(&run.ID, &stages, &started, &finished, &outcome, &run.FailedStage, &errString); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		if stages != "" {
			run.Stages = strings.Split(stages, "\n")
		}
		run.StartedAt = started
		run.FinishedAt = finished
		run.Outcome = Outcome(outcome)
		if errString.Valid {
			run.Error = errString.String
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return runs, nil
}

// Clear irreversibly removes all records.
func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.ensureSchema(ctx); err != nil {
		return fmt.Errorf("history: init schema: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", l.tableName)); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// Dump writes the full record sequence in human-readable form to w.
// The ledger itself is not modified.
func (l *Ledger) Dump(ctx context.Context, w io.Writer) error {
	runs, err := l.List(ctx)
	if err != nil {
		return err
	}

	for _, run := range runs {
		status := strings.ToUpper(string(run.Outcome))
		if run.Outcome == OutcomeFailed {
			status = fmt.Sprintf("%s at stage %d", status, run.FailedStage)
		}
		if _, err := fmt.Fprintf(w, "%s  %s  %s  (%s, %s)\n",
			run.StartedAt.Format(time.RFC3339),
			run.ID,
			status,
			run.Duration().Round(time.Millisecond),
			humanize.Time(run.StartedAt),
		); err != nil {
			return fmt.Errorf("history: dump: %w", err)
		}
		for i, stage := range run.Stages {
			marker := " "
			if run.Outcome == OutcomeFailed && i == run.FailedStage {
				marker = "!"
			}
			if _, err := fmt.Fprintf(w, "  %s %d. %s\n", marker, i, stage); err != nil {
				return fmt.Errorf("history: dump: %w", err)
			}
		}
		if run.Error != "" {
			if _, err := fmt.Fprintf(w, "    error: %s\n", run.Error); err != nil {
				return fmt.Errorf("history: dump: %w", err)
			}
		}
	}
	return nil
}
