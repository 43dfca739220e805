package convert

import (
	"strings"
	"time"

	"github.com/and161185/taskkeeper/internal/model"
)

// Stored field names.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldWhen        = "when"
	FieldCreatedAt   = "createdAt"
	FieldUserID      = "userId"
)

// Document is a stored document as returned by the REST API.
type Document struct {
	Name       string `json:"name,omitempty"`
	Fields     Fields `json:"fields"`
	CreateTime string `json:"createTime,omitempty"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// ListResponse is one page of a collection listing.
type ListResponse struct {
	Documents     []Document `json:"documents"`
	NextPageToken string     `json:"nextPageToken"`
}

// Handle returns the document path relative to the documents root
// ("users/U/tasks/D" out of "projects/P/databases/(default)/documents/users/U/tasks/D").
func (d Document) Handle() string {
	if _, rel, ok := strings.Cut(d.Name, "/documents/"); ok {
		return rel
	}
	return d.Name
}

// TaskID returns the application id stored in the document, if any.
func (d Document) TaskID() string {
	s, _ := d.Fields[FieldID].AsString()
	return s
}

// ToFields encodes a task for creation, stamping createdAt and the owner.
func ToFields(t model.Task, userID string, createdAt time.Time) Fields {
	return Fields{
		FieldID:          String(t.ID),
		FieldTitle:       String(t.Title),
		FieldDescription: String(t.Description),
		FieldStatus:      String(string(t.Status)),
		FieldPriority:    String(string(t.Priority)),
		FieldWhen:        String(string(t.When)),
		FieldCreatedAt:   Timestamp(createdAt),
		FieldUserID:      String(userID),
	}
}

// ToTask decodes a stored document. Missing or empty status, priority and when are
// replaced by Not Completed, Mid and Today; a missing createdAt falls back to the
// document's create time.
func ToTask(d Document) model.Task {
	str := func(name string) string {
		s, _ := d.Fields[name].AsString()
		return s
	}
	t := model.Task{
		ID:          str(FieldID),
		Title:       str(FieldTitle),
		Description: str(FieldDescription),
		Status:      model.DefaultStatus,
		Priority:    model.DefaultPriority,
		When:        model.DefaultWhen,
		UserID:      str(FieldUserID),
	}
	if s := str(FieldStatus); s != "" {
		t.Status, _ = model.ParseStatus(s)
	}
	if s := str(FieldPriority); s != "" {
		t.Priority, _ = model.ParsePriority(s)
	}
	if s := str(FieldWhen); s != "" {
		t.When, _ = model.ParseWhen(s)
	}
	if ts, ok := d.Fields[FieldCreatedAt].AsTime(); ok {
		t.CreatedAt = ts
	} else if ts, err := time.Parse(time.RFC3339Nano, d.CreateTime); err == nil {
		t.CreatedAt = ts
	}
	return t
}
