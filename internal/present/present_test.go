package present

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/taskkeeper/internal/model"
)

func task(id string, p model.Priority, s model.Status, w model.When) model.Task {
	return model.Task{ID: id, Title: id, Priority: p, Status: s, When: w}
}

func ids(ts []model.Task) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

var sample = []model.Task{
	task("1", model.PriorityLow, model.StatusCompleted, model.WhenToday),
	task("2", model.PriorityHigh, model.StatusNotCompleted, model.WhenTomorrow),
	task("3", model.PriorityMid, model.StatusInProgress, model.WhenToday),
	task("4", model.PriorityHigh, model.StatusInProgress, model.WhenThisWeek),
	task("5", model.PriorityLow, model.StatusInProgress, "Someday"),
	task("6", model.PriorityHigh, model.StatusNotCompleted, model.WhenToday),
}

func TestBucketize(t *testing.T) {
	b := Bucketize(sample)
	require.Equal(t, []string{"1", "3", "5", "6"}, ids(b.Today))
	require.Equal(t, []string{"2"}, ids(b.Tomorrow))
	require.Equal(t, []string{"4"}, ids(b.ThisWeek))
	require.Equal(t, len(sample), b.Len())
}

func TestSort(t *testing.T) {
	require.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, ids(Sort(sample, SortDefault)))
	require.Equal(t, []string{"2", "4", "6", "3", "1", "5"}, ids(Sort(sample, SortPriority)))
	require.Equal(t, []string{"3", "4", "5", "1", "2", "6"}, ids(Sort(sample, SortStatus)))
	require.Equal(t, []string{"4", "2", "6", "3", "5", "1"}, ids(Sort(sample, SortComposite)))
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	in := []model.Task{task("a", model.PriorityLow, "", ""), task("b", model.PriorityHigh, "", "")}
	_ = Sort(in, SortPriority)
	require.Equal(t, []string{"a", "b"}, ids(in))
}

func TestSort_UnknownRanksLast(t *testing.T) {
	in := []model.Task{task("x", "Urgent", "", ""), task("y", model.PriorityLow, "", "")}
	require.Equal(t, []string{"y", "x"}, ids(Sort(in, SortPriority)))
}

func TestFilter(t *testing.T) {
	cases := map[FilterKey][]string{
		FilterAll:          {"1", "2", "3", "4", "5", "6"},
		FilterHigh:         {"2", "4", "6"},
		FilterMid:          {"3"},
		FilterLow:          {"1", "5"},
		FilterCompleted:    {"1"},
		FilterInProgress:   {"3", "4", "5"},
		FilterNotCompleted: {"2", "6"},
	}
	for k, want := range cases {
		require.Equal(t, want, ids(Filter(sample, k)), "filter %s", k)
	}
}

func TestApply(t *testing.T) {
	b := Apply(sample, SortStatus, FilterHigh)
	require.Equal(t, []string{"6"}, ids(b.Today))
	require.Equal(t, []string{"2"}, ids(b.Tomorrow))
	require.Equal(t, []string{"4"}, ids(b.ThisWeek))

	require.Zero(t, Apply(nil, SortDefault, FilterAll).Len())
}

func TestParse(t *testing.T) {
	k, err := ParseSort("")
	require.NoError(t, err)
	require.Equal(t, SortDefault, k)
	k, err = ParseSort("Composite")
	require.NoError(t, err)
	require.Equal(t, SortComposite, k)
	_, err = ParseSort("date")
	require.Error(t, err)

	f, err := ParseFilter("in-progress")
	require.NoError(t, err)
	require.Equal(t, FilterInProgress, f)
	f, err = ParseFilter("Not_Completed")
	require.NoError(t, err)
	require.Equal(t, FilterNotCompleted, f)
	_, err = ParseFilter("urgent")
	require.Error(t, err)
}
