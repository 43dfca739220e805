package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/taskkeeper/internal/model"
)

func TestToFields_TypedEncoding(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f := ToFields(model.Task{
		ID: "1700000000000", Title: "Buy milk", Status: model.StatusNotCompleted,
		Priority: model.PriorityLow, When: model.WhenToday,
	}, "u1", now)

	b, err := json.Marshal(Document{Fields: f})
	require.NoError(t, err)
	require.JSONEq(t, `{"fields":{
		"id":{"stringValue":"1700000000000"},
		"title":{"stringValue":"Buy milk"},
		"description":{"stringValue":""},
		"status":{"stringValue":"Not Completed"},
		"priority":{"stringValue":"Low"},
		"when":{"stringValue":"Today"},
		"createdAt":{"timestampValue":"2024-03-01T10:00:00Z"},
		"userId":{"stringValue":"u1"}}}`, string(b))
}

func TestToTask_RoundTrip(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := model.Task{
		ID: "1", Title: "T", Description: "D", Status: model.StatusInProgress,
		Priority: model.PriorityHigh, When: model.WhenThisWeek,
	}
	out := ToTask(Document{Fields: ToFields(in, "u1", now)})
	require.True(t, in.SameContent(out))
	require.True(t, out.CreatedAt.Equal(now))
	require.Equal(t, "u1", out.UserID)
}

func TestToTask_Defaults(t *testing.T) {
	t.Parallel()
	var d Document
	require.NoError(t, json.Unmarshal([]byte(`{
		"name":"projects/p/databases/(default)/documents/users/u1/tasks/abc",
		"createTime":"2024-01-02T03:04:05.123456Z",
		"fields":{"id":{"stringValue":"9"},"title":{"stringValue":"x"},"status":{"stringValue":""}}}`), &d))

	got := ToTask(d)
	require.Equal(t, model.StatusNotCompleted, got.Status)
	require.Equal(t, model.PriorityMid, got.Priority)
	require.Equal(t, model.WhenToday, got.When)
	require.Equal(t, "", got.Description)
	require.Equal(t, 2024, got.CreatedAt.Year())
	require.Equal(t, "users/u1/tasks/abc", d.Handle())
	require.Equal(t, "9", d.TaskID())
}

func TestToTask_LegacyAndUnknownValues(t *testing.T) {
	t.Parallel()
	d := Document{Fields: Fields{
		FieldStatus:   String("InProcess"),
		FieldPriority: String("Urgent"),
		FieldWhen:     String("This week"),
	}}
	got := ToTask(d)
	require.Equal(t, model.StatusInProgress, got.Status)
	require.Equal(t, model.Priority("Urgent"), got.Priority, "unknown values are kept for the display layer")
	require.Equal(t, model.WhenThisWeek, got.When)
}

func TestHandle_BareName(t *testing.T) {
	t.Parallel()
	require.Equal(t, "users/u/tasks/d", Document{Name: "users/u/tasks/d"}.Handle())
}
