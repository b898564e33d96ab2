// Package journal records generate runs in SQLite so later runs and the
// history command can tell which run produced which file.
package journal

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/inkr/db"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/generate"
)

// Run is one recorded generate call
type Run struct {
	ID           string           `json:"id"`
	Status       generate.Status  `json:"status"`
	TargetRoot   string           `json:"target_root"`
	ConfigRoot   string           `json:"config_root"`
	InputKey     string           `json:"input_key,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Entries      []generate.Entry `json:"entries,omitempty"`
}

// Journal stores generate reports
type Journal struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Open opens (and migrates) the journal database at path
func Open(path string, logger *zap.SugaredLogger) (*Journal, error) {
	conn, err := db.OpenWithMigrations(path, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}
	return New(conn, logger), nil
}

// New wraps an already migrated database
func New(conn *sql.DB, logger *zap.SugaredLogger) *Journal {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Journal{db: conn, logger: logger, now: time.Now}
}

// Close closes the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores report and its entries in one transaction.
func (j *Journal) Record(ctx context.Context, report *generate.Report, configRoot, targetRoot, inputKey string) error {
	if report == nil {
		return errors.NewInvalidRequestError("report is nil")
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return j.wrap(err, "begin journal transaction")
	}

	var errMsg sql.NullString
	if report.Err != nil {
		errMsg = sql.NullString{String: report.Err.Error(), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO generation_runs (id, status, target_root, config_root, input_key, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID, string(report.Status), targetRoot, configRoot, nullable(inputKey), errMsg, j.now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return j.wrap(err, "insert run %s", report.ID)
	}

	for i, e := range report.Entries {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO generation_entries (run_id, seq, trigger_id, template_id, outcome, destination, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.ID, i, e.TriggerID, e.TemplateID, string(e.Outcome), nullable(e.Destination), nullable(e.Reason))
		if err != nil {
			_ = tx.Rollback()
			return j.wrap(err, "insert entry %d of run %s", i, report.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return j.wrap(err, "commit run %s", report.ID)
	}
	j.logger.Debugw("Recorded generate run", "report_id", report.ID, "status", report.Status, "entries", len(report.Entries))
	return nil
}

// History returns the most recent runs, newest first, with their entries.
// limit <= 0 returns every run.
func (j *Journal) History(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, status, target_root, config_root, input_key, error_message, created_at
		FROM generation_runs ORDER BY created_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, j.wrap(err, "query runs")
	}
	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var inputKey, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &status, &r.TargetRoot, &r.ConfigRoot, &inputKey, &errMsg, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, j.wrap(err, "scan run")
		}
		r.Status = generate.Status(status)
		r.InputKey = inputKey.String
		r.ErrorMessage = errMsg.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, j.wrap(err, "read runs")
	}
	rows.Close()

	for i := range runs {
		if runs[i].Entries, err = j.entries(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// LastWriter returns the most recent run that rendered destination, or a
// NotFound error when no recorded run wrote it
func (j *Journal) LastWriter(ctx context.Context, destination string) (*Run, error) {
	var r Run
	var status string
	var inputKey, errMsg sql.NullString
	err := j.db.QueryRowContext(ctx,
		`SELECT r.id, r.status, r.target_root, r.config_root, r.input_key, r.error_message, r.created_at
		 FROM generation_runs r JOIN generation_entries e ON e.run_id = r.id
		 WHERE e.destination = ? AND e.outcome = ?
		 ORDER BY r.created_at DESC, r.rowid DESC LIMIT 1`,
		destination, string(generate.OutcomeRendered),
	).Scan(&r.ID, &status, &r.TargetRoot, &r.ConfigRoot, &inputKey, &errMsg, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("no recorded run wrote %s", destination)
	}
	if err != nil {
		return nil, j.wrap(err, "query writer of %s", destination)
	}
	r.Status = generate.Status(status)
	r.InputKey = inputKey.String
	r.ErrorMessage = errMsg.String
	if r.Entries, err = j.entries(ctx, r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (j *Journal) entries(ctx context.Context, runID string) ([]generate.Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT trigger_id, template_id, outcome, destination, reason
		 FROM generation_entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, j.wrap(err, "query entries of run %s", runID)
	}
	defer rows.Close()

	var out []generate.Entry
	for rows.Next() {
		var e generate.Entry
		var outcome string
		var dest, reason sql.NullString
		if err := rows.Scan(&e.TriggerID, &e.TemplateID, &outcome, &dest, &reason); err != nil {
			return nil, j.wrap(err, "scan entry")
		}
		e.Outcome = generate.Outcome(outcome)
		e.Destination = dest.String
		e.Reason = reason.String
		out = append(out, e)
	}
	return out, j.wrap(rows.Err(), "read entries of run %s", runID)
}

func (j *Journal) wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	err = errors.Wrapf(err, format, args...)
	if db.IsDatabaseClosed(err) {
		return errors.Mark(err, db.ErrDatabaseClosed)
	}
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
