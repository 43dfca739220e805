// Package model defines domain entities used by services and repositories.
package model

import (
	"strings"
	"time"
)

// Status is the progress state of a task.
type Status string

// Priority is the importance tier of a task.
type Priority string

// When is the temporal bucket a task is displayed in.
type When string

// Wire values, as stored in remote documents.
const (
	StatusNotCompleted Status = "Not Completed"
	StatusInProgress   Status = "In Progress"
	StatusCompleted    Status = "Completed"

	PriorityHigh Priority = "High"
	PriorityMid  Priority = "Mid"
	PriorityLow  Priority = "Low"

	WhenToday    When = "Today"
	WhenTomorrow When = "Tomorrow"
	WhenThisWeek When = "This week"
)

// Defaults substituted when a stored document lacks the field.
const (
	DefaultStatus   = StatusNotCompleted
	DefaultPriority = PriorityMid
	DefaultWhen     = WhenToday
)

// Limits enforced at entry.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
)

// ParseStatus accepts wire values, loose spellings ("inprogress", "not-completed") and the
// legacy "InProcess" written by older clients.
func ParseStatus(s string) (Status, bool) {
	switch normalize(s) {
	case "notcompleted":
		return StatusNotCompleted, true
	case "inprogress", "inprocess":
		return StatusInProgress, true
	case "completed":
		return StatusCompleted, true
	}
	return Status(s), false
}

// ParsePriority accepts wire values case-insensitively; "medium" is accepted for Mid.
func ParsePriority(s string) (Priority, bool) {
	switch normalize(s) {
	case "high":
		return PriorityHigh, true
	case "mid", "medium":
		return PriorityMid, true
	case "low":
		return PriorityLow, true
	}
	return Priority(s), false
}

// ParseWhen accepts wire values and "thisweek"/"this-week".
func ParseWhen(s string) (When, bool) {
	switch normalize(s) {
	case "today":
		return WhenToday, true
	case "tomorrow":
		return WhenTomorrow, true
	case "thisweek", "week":
		return WhenThisWeek, true
	}
	return When(s), false
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	return s == StatusNotCompleted || s == StatusInProgress || s == StatusCompleted
}

// Valid reports whether p is one of the enumerated priorities.
func (p Priority) Valid() bool { return p == PriorityHigh || p == PriorityMid || p == PriorityLow }

// Valid reports whether w is one of the enumerated buckets.
func (w When) Valid() bool { return w == WhenToday || w == WhenTomorrow || w == WhenThisWeek }

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

// Task is a single user task. ID is application generated and stored as a document field.
type Task struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description,omitempty"`
	Status      Status    `json:"status" yaml:"status,omitempty"`
	Priority    Priority  `json:"priority" yaml:"priority,omitempty"`
	When        When      `json:"when" yaml:"when,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
	UserID      string    `json:"userId,omitempty" yaml:"-"`
}

// SameContent reports whether two tasks carry the same user-editable content.
func (t Task) SameContent(o Task) bool {
	return t.ID == o.ID && t.Title == o.Title && t.Description == o.Description &&
		t.Status == o.Status && t.Priority == o.Priority && t.When == o.When
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	When        *When
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && p.When == nil
}

// Fields returns the patch keyed by stored field name.
func (p TaskPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Status != nil {
		out["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		out["priority"] = string(*p.Priority)
	}
	if p.When != nil {
		out["when"] = string(*p.When)
	}
	return out
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.When != nil {
		t.When = *p.When
	}
	return t
}

// Credential is the persisted session of the signed-in user.
type Credential struct {
	Token        string    `json:"-"`
	UserID       string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"-"` // from the token's exp claim (diagnostics only)
}

// Present reports whether the credential carries both a token and a user id.
func (c Credential) Present() bool { return c.Token != "" && c.UserID != "" }
