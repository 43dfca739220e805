package service

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/and161185/taskkeeper/internal/credstore"
	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/model"
	"github.com/and161185/taskkeeper/internal/repository"
)

// TaskService is the task store client used by the CLI.
type TaskService interface {
	// AddTask validates and stores t, filling its id when empty. Returns the stored task.
	AddTask(ctx context.Context, t model.Task) (model.Task, error)
	// GetUserTasks returns all tasks of the signed-in user in creation order.
	GetUserTasks(ctx context.Context) ([]model.Task, error)
	// DeleteTask removes the task with the given id.
	DeleteTask(ctx context.Context, id string) error
	// UpdateTask applies patch to the task with the given id.
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error
}

type TaskServiceImpl struct {
	creds credstore.Store
	repo  repository.TaskRepository
	ids   *model.IDGenerator
	log   *zap.Logger
}

var _ TaskService = (*TaskServiceImpl)(nil)

// NewTaskService constructs TaskService. ids may be nil.
func NewTaskService(creds credstore.Store, repo repository.TaskRepository, ids *model.IDGenerator, log *zap.Logger) *TaskServiceImpl {
	if ids == nil {
		ids = model.NewIDGenerator(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskServiceImpl{creds: creds, repo: repo, ids: ids, log: log}
}

// credential loads the stored session; every operation requires one.
func (s *TaskServiceImpl) credential(ctx context.Context) (model.Credential, error) {
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return model.Credential{}, err
	}
	if !cred.Present() {
		return model.Credential{}, errs.ErrUnauthenticated
	}
	return cred, nil
}

// AddTask validates input and delegates to the repository.
// Validation rules:
// - title non-empty after trimming, at most 100 characters
// - description at most 500 characters
// - status/priority/when, when set, one of the enumerated values (defaults otherwise)
// - id, when set, is 1..128 characters of [A-Za-z0-9_-] and not of the reserved __x__ form
func (s *TaskServiceImpl) AddTask(ctx context.Context, t model.Task) (model.Task, error) {
	cred, err := s.credential(ctx)
	if err != nil {
		return model.Task{}, err
	}
	t.Title = strings.TrimSpace(t.Title)
	if err := validateTitle(t.Title); err != nil {
		return model.Task{}, err
	}
	if err := validateDescription(t.Description); err != nil {
		return model.Task{}, err
	}
	if t.Status == "" {
		t.Status = model.DefaultStatus
	}
	if t.Priority == "" {
		t.Priority = model.DefaultPriority
	}
	if t.When == "" {
		t.When = model.DefaultWhen
	}
	if err := validateEnums(&t.Status, &t.Priority, &t.When); err != nil {
		return model.Task{}, err
	}
	if t.ID == "" {
		t.ID = s.ids.Next()
	} else if err := validateID(t.ID); err != nil {
		return model.Task{}, err
	}
	t.UserID = cred.UserID

	if err := s.repo.Create(ctx, cred, t); err != nil {
		return model.Task{}, err
	}
	s.log.Debug("task added", zap.String("task_id", t.ID))
	return t, nil
}

// GetUserTasks lists the user's tasks; an empty collection yields an empty slice.
func (s *TaskServiceImpl) GetUserTasks(ctx context.Context) ([]model.Task, error) {
	cred, err := s.credential(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.List(ctx, cred)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// DeleteTask removes a task by id.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id string) error {
	cred, err := s.credential(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return errs.Validation("empty task id")
	}
	return s.repo.Delete(ctx, cred, id)
}

// UpdateTask validates the patch and delegates to the repository.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error {
	cred, err := s.credential(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return errs.Validation("empty task id")
	}
	if patch.Empty() {
		return errs.Validation("nothing to update")
	}
	patch = clonePatch(patch)
	if patch.Title != nil {
		*patch.Title = strings.TrimSpace(*patch.Title)
		if err := validateTitle(*patch.Title); err != nil {
			return err
		}
	}
	if patch.Description != nil {
		if err := validateDescription(*patch.Description); err != nil {
			return err
		}
	}
	if err := validateEnums(patch.Status, patch.Priority, patch.When); err != nil {
		return err
	}
	return s.repo.Update(ctx, cred, id, patch)
}

// validIDChars keeps ids usable verbatim as remote document ids.
var validIDChars = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validateID(id string) error {
	if !validIDChars.MatchString(id) {
		return errs.Validation("task id %q: use up to 128 letters, digits, '-' or '_'", id)
	}
	if len(id) >= 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__") {
		return errs.Validation("task id %q is reserved", id)
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return errs.Validation("empty title")
	}
	if n := utf8.RuneCountInString(title); n > model.MaxTitleLen {
		return errs.Validation("title too long (%d > %d)", n, model.MaxTitleLen)
	}
	return nil
}

func validateDescription(description string) error {
	if n := utf8.RuneCountInString(description); n > model.MaxDescriptionLen {
		return errs.Validation("description too long (%d > %d)", n, model.MaxDescriptionLen)
	}
	return nil
}

// clonePatch copies the pointed-to values so normalization does not write through to
// the caller.
func clonePatch(p model.TaskPatch) model.TaskPatch {
	return model.TaskPatch{
		Title:       clone(p.Title),
		Description: clone(p.Description),
		Status:      clone(p.Status),
		Priority:    clone(p.Priority),
		When:        clone(p.When),
	}
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// validateEnums normalizes loose spellings in place and rejects unknown values. Nil
// pointers are skipped.
func validateEnums(st *model.Status, pr *model.Priority, w *model.When) error {
	if st != nil {
		v, ok := model.ParseStatus(string(*st))
		if !ok {
			return errs.Validation("unknown status %q", *st)
		}
		*st = v
	}
	if pr != nil {
		v, ok := model.ParsePriority(string(*pr))
		if !ok {
			return errs.Validation("unknown priority %q", *pr)
		}
		*pr = v
	}
	if w != nil {
		v, ok := model.ParseWhen(string(*w))
		if !ok {
			return errs.Validation("unknown when %q", *w)
		}
		*w = v
	}
	return nil
}
