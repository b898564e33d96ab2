package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/inkr/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// Migrate applies every embedded migration not yet recorded in
// schema_migrations, in file name order, one transaction each.
// If logger is provided, logs migration progress; otherwise operates silently.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	pending, err := pendingMigrations(db)
	if err != nil {
		return err
	}

	for _, filename := range pending {
		version := versionOf(filename)
		body, err := migrations.ReadFile(path.Join(migrationsDir, filename))
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		if logger != nil {
			logger.Infow("Applying migration", "migration", filename, "version", version)
		}
		if err := apply(db, version, string(body)); err != nil {
			return errors.Wrapf(err, "migration %s", filename)
		}
	}

	if logger != nil {
		logger.Debugw("Migrations complete", "applied", len(pending))
	}
	return nil
}

// pendingMigrations lists migration files whose version is not recorded.
// Before 000 has run the bookkeeping table does not exist and everything is
// pending.
func pendingMigrations(db *sql.DB) ([]string, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	applied := map[string]bool{}
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return nil, errors.Wrap(err, "scan schema_migrations")
			}
			applied[v] = true
		}
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "read schema_migrations")
		}
	} else if IsDatabaseClosed(err) {
		return nil, errors.Mark(errors.Wrap(err, "read schema_migrations"), ErrDatabaseClosed)
	}

	var pending []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") || applied[versionOf(e.Name())] {
			continue
		}
		pending = append(pending, e.Name())
	}
	sort.Strings(pending)

	if len(applied) == 0 && len(pending) > 0 && versionOf(pending[0]) != "000" {
		return nil, errors.Newf("schema_migrations missing, but first pending migration is %s", pending[0])
	}
	return pending, nil
}

func apply(db *sql.DB, version, body string) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	if _, err := tx.Exec(body); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "execute")
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "record")
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func versionOf(filename string) string {
	return strings.SplitN(filename, "_", 2)[0]
}
