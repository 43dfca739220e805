package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/model"
	"github.com/and161185/taskkeeper/internal/repository"
)

// TaskRepo implements repository.TaskRepository keyed by (user_id, id).
type TaskRepo struct {
	db  *DB
	now func() time.Time
}

var _ repository.TaskRepository = (*TaskRepo)(nil)

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db, now: time.Now} }

const selectTask = `
SELECT id, title, description, status, priority, when_bucket, created_at
FROM tasks WHERE user_id=$1 AND id=$2`

// Create inserts t. A duplicate id with identical content is treated as a committed retry.
func (r *TaskRepo) Create(ctx context.Context, cred model.Credential, t model.Task) error {
	const ins = `
INSERT INTO tasks (user_id, id, title, description, status, priority, when_bucket, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Pool.Exec(ctx, ins, cred.UserID, t.ID, t.Title, t.Description,
		string(t.Status), string(t.Priority), string(t.When), r.now().UTC())
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}
	stored, err := scanTask(r.db.Pool.QueryRow(ctx, selectTask, cred.UserID, t.ID))
	if err != nil {
		return err
	}
	if !stored.SameContent(t) {
		return fmt.Errorf("add task %s: %w", t.ID, errs.ErrAlreadyExists)
	}
	return nil
}

// List returns the user's tasks oldest first.
func (r *TaskRepo) List(ctx context.Context, cred model.Credential) ([]model.Task, error) {
	const q = `
SELECT id, title, description, status, priority, when_bucket, created_at
FROM tasks
WHERE user_id=$1
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q, cred.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		t.UserID = cred.UserID
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update applies patch under a row lock.
func (r *TaskRepo) Update(
	ctx context.Context, cred model.Credential, taskID string, patch model.TaskPatch,
) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	cur, err := scanTask(tx.QueryRow(ctx, selectTask+" FOR UPDATE", cred.UserID, taskID))
	if err != nil {
		return err
	}
	next := patch.Apply(cur)

	const upd = `
UPDATE tasks SET title=$3, description=$4, status=$5, priority=$6, when_bucket=$7, updated_at=now()
WHERE user_id=$1 AND id=$2`
	_, err = tx.Exec(ctx, upd, cred.UserID, taskID, next.Title, next.Description,
		string(next.Status), string(next.Priority), string(next.When))
	return err
}

// Delete removes the task.
func (r *TaskRepo) Delete(ctx context.Context, cred model.Credential, taskID string) error {
	const del = `DELETE FROM tasks WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, del, cred.UserID, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %s: %w", taskID, errs.ErrNotFound)
	}
	return nil
}

func scanTask(row pgx.Row) (model.Task, error) {
	var (
		t                        model.Task
		status, priority, bucket string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &bucket, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Task{}, err
	}
	t.Status, _ = model.ParseStatus(status)
	t.Priority, _ = model.ParsePriority(priority)
	t.When, _ = model.ParseWhen(bucket)
	return t, nil
}
