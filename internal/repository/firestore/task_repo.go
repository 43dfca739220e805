// Package firestore implements the task repository over the document database REST API.
//
// The store addresses documents by an internal handle while tasks are identified by their
// "id" field. New tasks are created with the task id as document id, so their handle is
// predictable; documents written by older clients carry random ids and are found by
// listing the collection and matching the field. Resolved handles are kept in a
// handlecache.Cache.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/taskkeeper/internal/convert"
	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/handlecache"
	"github.com/and161185/taskkeeper/internal/model"
	"github.com/and161185/taskkeeper/internal/repository"
	"github.com/and161185/taskkeeper/internal/transport"
)

// DefaultBaseURL is the public REST endpoint.
const DefaultBaseURL = "https://firestore.googleapis.com/v1"

const pageSize = "300"

// Config locates the database.
type Config struct {
	BaseURL   string // DefaultBaseURL if empty
	ProjectID string
	Database  string // "(default)" if empty
	APIKey    string
}

// TaskRepo implements repository.TaskRepository.
type TaskRepo struct {
	docsURL string
	apiKey  string
	http    *http.Client
	handles handlecache.Cache
	log     *zap.Logger
	now     func() time.Time
}

var _ repository.TaskRepository = (*TaskRepo)(nil)

// NewTaskRepo constructs a repository. handles and log may be nil.
func NewTaskRepo(cfg Config, client *http.Client, handles handlecache.Cache, log *zap.Logger) *TaskRepo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Database == "" {
		cfg.Database = "(default)"
	}
	if client == nil {
		client = http.DefaultClient
	}
	if handles == nil {
		handles = handlecache.NewMemory()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskRepo{
		docsURL: fmt.Sprintf("%s/projects/%s/databases/%s/documents",
			strings.TrimRight(cfg.BaseURL, "/"), cfg.ProjectID, cfg.Database),
		apiKey:  cfg.APIKey,
		http:    client,
		handles: handles,
		log:     log,
		now:     time.Now,
	}
}

func collection(userID string) string { return "users/" + userID + "/tasks" }

// escapePath escapes every segment of a document or collection path.
func escapePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func (r *TaskRepo) url(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if r.apiKey != "" {
		q.Set("key", r.apiKey)
	}
	u := r.docsURL + "/" + escapePath(path)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (r *TaskRepo) call(ctx context.Context, cred model.Credential, c transport.Call, path string, q url.Values, out any) error {
	c.URL = r.url(path, q)
	c.Bearer = cred.Token
	return transport.DoJSON(ctx, r.http, c, out)
}

// Create stores t under users/{uid}/tasks with t.ID as document id.
func (r *TaskRepo) Create(ctx context.Context, cred model.Credential, t model.Task) error {
	const op = "add task"
	body := convert.Document{Fields: convert.ToFields(t, cred.UserID, r.now())}
	var doc convert.Document
	err := r.call(ctx, cred, transport.Call{
		Op: op, Method: http.MethodPost, Body: body, Fallback: "failed to add task",
	}, collection(cred.UserID), url.Values{"documentId": {t.ID}}, &doc)
	if errors.Is(err, errs.ErrAlreadyExists) {
		return r.confirmExisting(ctx, cred, t)
	}
	if err != nil {
		return err
	}
	r.remember(ctx, cred.UserID, t.ID, doc.Handle())
	r.log.Debug("task created", zap.String("task_id", t.ID))
	return nil
}

// confirmExisting settles a create that hit an existing document: identical content means
// an earlier attempt was committed.
func (r *TaskRepo) confirmExisting(ctx context.Context, cred model.Credential, t model.Task) error {
	handle := collection(cred.UserID) + "/" + t.ID
	var doc convert.Document
	if err := r.call(ctx, cred, transport.Call{
		Op: "add task", Method: http.MethodGet, Fallback: "failed to read task",
	}, handle, nil, &doc); err != nil {
		return err
	}
	if !convert.ToTask(doc).SameContent(t) {
		return fmt.Errorf("add task %s: %w", t.ID, errs.ErrAlreadyExists)
	}
	r.remember(ctx, cred.UserID, t.ID, doc.Handle())
	r.log.Info("create retry matched stored task", zap.String("task_id", t.ID))
	return nil
}

// List returns every task of the user, oldest first. A missing collection is empty.
func (r *TaskRepo) List(ctx context.Context, cred model.Credential) ([]model.Task, error) {
	docs, err := r.scan(ctx, cred, "list tasks")
	if err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, convert.ToTask(d))
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

// Update merges patch into the stored document and writes it back.
func (r *TaskRepo) Update(ctx context.Context, cred model.Credential, taskID string, patch model.TaskPatch) error {
	const op = "update task"
	doc, err := r.lookup(ctx, cred, op, taskID)
	if err != nil {
		return err
	}
	fields, err := convert.MergeFields(doc.Fields, patch.Fields())
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, taskID, err)
	}
	err = r.call(ctx, cred, transport.Call{
		Op: op, Method: http.MethodPatch, Body: convert.Document{Fields: fields}, Fallback: "failed to update task",
	}, doc.Handle(), url.Values{"currentDocument.exists": {"true"}}, nil)
	if errors.Is(err, errs.ErrNotFound) {
		r.forget(ctx, cred.UserID, taskID)
	}
	return err
}

// Delete removes the document holding taskID. A cached handle is read back first, so no
// delete request is sent for a task that no longer exists.
func (r *TaskRepo) Delete(ctx context.Context, cred model.Credential, taskID string) error {
	const op = "delete task"
	doc, err := r.lookup(ctx, cred, op, taskID)
	if err != nil {
		return err
	}
	err = r.deleteHandle(ctx, cred, doc.Handle())
	r.forget(ctx, cred.UserID, taskID)
	if errors.Is(err, errs.ErrNotFound) {
		// removed between lookup and delete
		return fmt.Errorf("%s %s: %w", op, taskID, errs.ErrNotFound)
	}
	return err
}

func (r *TaskRepo) deleteHandle(ctx context.Context, cred model.Credential, handle string) error {
	return r.call(ctx, cred, transport.Call{
		Op: "delete task", Method: http.MethodDelete, Fallback: "failed to delete task",
	}, handle, url.Values{"currentDocument.exists": {"true"}}, nil)
}

// lookup returns the current document for taskID, via the cached handle when it is still
// valid, by scanning otherwise.
func (r *TaskRepo) lookup(ctx context.Context, cred model.Credential, op, taskID string) (convert.Document, error) {
	if handle, ok := r.cached(ctx, cred.UserID, taskID); ok {
		var doc convert.Document
		err := r.call(ctx, cred, transport.Call{Op: op, Method: http.MethodGet, Fallback: "failed to read task"}, handle, nil, &doc)
		switch {
		case err == nil && doc.TaskID() == taskID:
			return doc, nil
		case err == nil, errors.Is(err, errs.ErrNotFound):
			r.forget(ctx, cred.UserID, taskID)
		default:
			return convert.Document{}, err
		}
	}
	return r.find(ctx, cred, op, taskID)
}

// find scans the collection for the document whose id field equals taskID.
func (r *TaskRepo) find(ctx context.Context, cred model.Credential, op, taskID string) (convert.Document, error) {
	docs, err := r.scan(ctx, cred, op)
	if err != nil {
		return convert.Document{}, err
	}
	for _, d := range docs {
		if d.TaskID() == taskID {
			return d, nil
		}
	}
	return convert.Document{}, fmt.Errorf("%s %s: %w", op, taskID, errs.ErrNotFound)
}

// scan lists the whole collection, following page tokens, and refreshes the handle cache.
func (r *TaskRepo) scan(ctx context.Context, cred model.Credential, op string) ([]convert.Document, error) {
	var (
		docs  []convert.Document
		token string
	)
	for {
		q := url.Values{"pageSize": {pageSize}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var page convert.ListResponse
		err := r.call(ctx, cred, transport.Call{
			Op: op, Method: http.MethodGet, Fallback: "failed to fetch tasks",
		}, collection(cred.UserID), q, &page)
		if errors.Is(err, errs.ErrNotFound) {
			// collection not created yet
			break
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, page.Documents...)
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	handles := make(map[string]string, len(docs))
	for _, d := range docs {
		if id := d.TaskID(); id != "" {
			handles[id] = d.Handle()
		}
	}
	if err := r.handles.Replace(ctx, cred.UserID, handles); err != nil {
		r.log.Warn("handle cache replace", zap.Error(err))
	}
	return docs, nil
}

func (r *TaskRepo) cached(ctx context.Context, userID, taskID string) (string, bool) {
	h, ok, err := r.handles.Get(ctx, userID, taskID)
	if err != nil {
		r.log.Warn("handle cache get", zap.Error(err))
		return "", false
	}
	return h, ok
}

func (r *TaskRepo) remember(ctx context.Context, userID, taskID, handle string) {
	if handle == "" {
		return
	}
	if err := r.handles.Put(ctx, userID, taskID, handle); err != nil {
		r.log.Warn("handle cache put", zap.Error(err))
	}
}

func (r *TaskRepo) forget(ctx context.Context, userID, taskID string) {
	if err := r.handles.Delete(ctx, userID, taskID); err != nil {
		r.log.Warn("handle cache delete", zap.Error(err))
	}
}
