package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/model"
)

var (
	cred    = model.Credential{Token: "t", UserID: "u1"}
	created = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	columns = []string{"id", "title", "description", "status", "priority", "when_bucket", "created_at"}
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func newRepo(db *DB) *TaskRepo {
	r := NewTaskRepo(db)
	r.now = func() time.Time { return created }
	return r
}

func milk() model.Task {
	return model.Task{ID: "1700000000000", Title: "Buy milk", Status: model.StatusNotCompleted,
		Priority: model.PriorityLow, When: model.WhenToday}
}

func TestTaskRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	mock.ExpectExec(`INSERT INTO tasks`).
		WithArgs("u1", "1700000000000", "Buy milk", "", "Not Completed", "Low", "Today", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Create(context.Background(), cred, milk()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_Create_RetryOfSameTask(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	mock.ExpectExec(`INSERT INTO tasks`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(`SELECT id, title, description, status, priority, when_bucket, created_at\s+FROM tasks WHERE user_id=\$1 AND id=\$2`).
		WithArgs("u1", "1700000000000").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("1700000000000", "Buy milk", "", "Not Completed", "Low", "Today", created))

	require.NoError(t, r.Create(context.Background(), cred, milk()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_Create_IDCollision(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	mock.ExpectExec(`INSERT INTO tasks`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(`SELECT id, title`).
		WithArgs("u1", "1700000000000").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("1700000000000", "Walk dog", "", "Not Completed", "Mid", "Today", created))

	err := r.Create(context.Background(), cred, milk())
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestTaskRepo_List_Ordered(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	mock.ExpectQuery(`FROM tasks\s+WHERE user_id=\$1\s+ORDER BY created_at ASC, id ASC`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("1", "a", "", "InProcess", "High", "Tomorrow", created).
			AddRow("2", "b", "d", "Completed", "Mid", "This week", created.Add(time.Minute)))

	tasks, err := r.List(context.Background(), cred)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, model.StatusInProgress, tasks[0].Status)
	require.Equal(t, model.WhenThisWeek, tasks[1].When)
	require.Equal(t, "u1", tasks[1].UserID)
}

func TestTaskRepo_List_Empty(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	mock.ExpectQuery(`FROM tasks`).WithArgs("u1").WillReturnRows(pgxmock.NewRows(columns))

	tasks, err := r.List(context.Background(), cred)
	require.NoError(t, err)
	require.NotNil(t, tasks)
	require.Empty(t, tasks)
}

func TestTaskRepo_Update_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tasks WHERE user_id=\$1 AND id=\$2 FOR UPDATE`).
		WithArgs("u1", "1700000000000").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("1700000000000", "Buy milk", "", "Not Completed", "Low", "Today", created))
	mock.ExpectExec(`UPDATE tasks SET title=\$3`).
		WithArgs("u1", "1700000000000", "Buy milk", "", "Completed", "Low", "Today").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	st := model.StatusCompleted
	require.NoError(t, r.Update(context.Background(), cred, "1700000000000", model.TaskPatch{Status: &st}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_Update_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("u1", "nope").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	st := model.StatusCompleted
	err := r.Update(context.Background(), cred, "nope", model.TaskPatch{Status: &st})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	mock.ExpectExec(`DELETE FROM tasks WHERE user_id=\$1 AND id=\$2`).
		WithArgs("u1", "1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM tasks`).
		WithArgs("u1", "2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, r.Delete(context.Background(), cred, "1"))
	require.ErrorIs(t, r.Delete(context.Background(), cred, "2"), errs.ErrNotFound)
}

func TestTaskRepo_DBErrorPassesThrough(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := newRepo(db)

	boom := errors.New("conn reset")
	mock.ExpectQuery(`FROM tasks`).WithArgs("u1").WillReturnError(boom)

	_, err := r.List(context.Background(), cred)
	require.ErrorIs(t, err, boom)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("x")))
}
