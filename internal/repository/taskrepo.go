// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/taskkeeper/internal/model"
)

// TaskRepository stores a user's tasks, addressed by the application task id. The
// credential scopes every call to its user.
type TaskRepository interface {
	// Create stores a new task. Retrying a create whose first attempt was committed
	// succeeds; a different task under the same id fails with errs.ErrAlreadyExists.
	Create(ctx context.Context, cred model.Credential, t model.Task) error

	// List returns all of the user's tasks in creation order; none is not an error.
	List(ctx context.Context, cred model.Credential) ([]model.Task, error)

	// Update applies patch to the task, leaving other fields untouched.
	Update(ctx context.Context, cred model.Credential, taskID string, patch model.TaskPatch) error

	// Delete removes the task; errs.ErrNotFound if it does not exist.
	Delete(ctx context.Context, cred model.Credential, taskID string) error
}
