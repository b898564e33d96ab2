package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/inkr/db"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/generate"
	inkrtest "github.com/teranos/inkr/internal/testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j := New(inkrtest.CreateTestDB(t), zaptest.NewLogger(t).Sugar())

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return j
}

func report(id string, status generate.Status, entries ...generate.Entry) *generate.Report {
	return &generate.Report{ID: id, Status: status, Entries: entries}
}

func TestRecordAndHistory(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	first := report("run-1", generate.StatusCompleted,
		generate.Entry{TriggerID: "java_pojo", TemplateID: "impl", Outcome: generate.OutcomeRendered, Destination: "out/OrderImpl.java"},
		generate.Entry{TriggerID: "java_pojo", TemplateID: "api", Outcome: generate.OutcomeSkippedExists, Destination: "out/Order.java"},
	)
	second := report("run-2", generate.StatusPartiallyFailed,
		generate.Entry{TriggerID: "java_pojo", TemplateID: "impl", Outcome: generate.OutcomeRendered, Destination: "out/OrderImpl.java"},
		generate.Entry{TriggerID: "java_pojo", TemplateID: "broken", Outcome: generate.OutcomeFailed, Reason: "missing value noSuchValue"},
	)
	require.NoError(t, j.Record(ctx, first, "/cfg", "/out", "order.yaml"))
	require.NoError(t, j.Record(ctx, second, "/cfg", "/out", ""))

	runs, err := j.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].ID, "newest first")
	assert.Equal(t, generate.StatusPartiallyFailed, runs[0].Status)
	assert.Empty(t, runs[0].InputKey)
	require.Len(t, runs[0].Entries, 2)
	assert.Equal(t, "missing value noSuchValue", runs[0].Entries[1].Reason)
	assert.Empty(t, runs[0].Entries[1].Destination)

	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, "order.yaml", runs[1].InputKey)
	assert.Equal(t, "/cfg", runs[1].ConfigRoot)
	assert.Equal(t, "/out", runs[1].TargetRoot)
	assert.Equal(t, []generate.Entry{
		{TriggerID: "java_pojo", TemplateID: "impl", Outcome: generate.OutcomeRendered, Destination: "out/OrderImpl.java"},
		{TriggerID: "java_pojo", TemplateID: "api", Outcome: generate.OutcomeSkippedExists, Destination: "out/Order.java"},
	}, runs[1].Entries)

	limited, err := j.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-2", limited[0].ID)
}

func TestRecord_FailedRun(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	failed := report("run-f", generate.StatusFailed)
	failed.Err = errors.NewConfigurationError("trigger %q is not defined", "nope")
	require.NoError(t, j.Record(ctx, failed, "/cfg", "/out", ""))

	runs, err := j.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].ErrorMessage, `trigger "nope" is not defined`)
	assert.Empty(t, runs[0].Entries)
}

func TestRecord_Invalid(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	assert.True(t, errors.IsInvalidRequestError(j.Record(ctx, nil, "", "", "")))

	require.NoError(t, j.Record(ctx, report("dup", generate.StatusCompleted), "/cfg", "/out", ""))
	err := j.Record(ctx, report("dup", generate.StatusCompleted), "/cfg", "/out", "")
	assert.Error(t, err, "run ids are unique")
}

func TestLastWriter(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rendered := generate.Entry{TriggerID: "t", TemplateID: "impl", Outcome: generate.OutcomeRendered, Destination: "out/A.java"}
	skipped := generate.Entry{TriggerID: "t", TemplateID: "impl", Outcome: generate.OutcomeSkippedExists, Destination: "out/A.java"}
	require.NoError(t, j.Record(ctx, report("r1", generate.StatusCompleted, rendered), "/cfg", "/out", ""))
	require.NoError(t, j.Record(ctx, report("r2", generate.StatusCompleted, skipped), "/cfg", "/out", ""))

	run, err := j.LastWriter(ctx, "out/A.java")
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID, "a skipped entry did not write the file")
	require.Len(t, run.Entries, 1)

	_, err = j.LastWriter(ctx, "out/B.java")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), report("r", generate.StatusCompleted), "/cfg", "/out", ""))
	require.NoError(t, j.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	runs, err := reopened.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "runs survive reopening")
}

func TestClosedJournal(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Close())

	_, err := j.History(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, db.IsDatabaseClosed(err))
}

// sqlmock covers the rollback path, which a healthy SQLite never reaches

func TestRecord_RollsBackOnEntryFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	j := New(conn, nil)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO generation_runs").
		WithArgs("run-x", "COMPLETED", "/out", "/cfg", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO generation_entries").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = j.Record(context.Background(), report("run-x", generate.StatusCompleted,
		generate.Entry{TriggerID: "t", TemplateID: "impl", Outcome: generate.OutcomeRendered, Destination: "A"},
	), "/cfg", "/out", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert entry 0 of run run-x")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_QueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	j := New(conn, nil)
	mock.ExpectQuery("SELECT id, status").WithArgs(5).WillReturnError(errors.New("sql: database is closed"))

	_, err = j.History(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrDatabaseClosed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
