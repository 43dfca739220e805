// Package present groups, orders and filters tasks for display.
package present

import (
	"fmt"
	"slices"
	"strings"

	"github.com/and161185/taskkeeper/internal/model"
)

// Buckets holds tasks grouped by their When value, each in input order.
type Buckets struct {
	Today    []model.Task `json:"today"`
	Tomorrow []model.Task `json:"tomorrow"`
	ThisWeek []model.Task `json:"thisWeek"`
}

// Len returns the total number of tasks.
func (b Buckets) Len() int { return len(b.Today) + len(b.Tomorrow) + len(b.ThisWeek) }

// Bucketize groups tasks by When. Unknown values land in Today.
func Bucketize(tasks []model.Task) Buckets {
	var b Buckets
	for _, t := range tasks {
		switch t.When {
		case model.WhenTomorrow:
			b.Tomorrow = append(b.Tomorrow, t)
		case model.WhenThisWeek:
			b.ThisWeek = append(b.ThisWeek, t)
		default:
			b.Today = append(b.Today, t)
		}
	}
	return b
}

// SortKey selects an ordering.
type SortKey string

const (
	SortDefault   SortKey = "default"
	SortPriority  SortKey = "priority"
	SortStatus    SortKey = "status"
	SortComposite SortKey = "composite"
)

// FilterKey selects a subset.
type FilterKey string

const (
	FilterAll          FilterKey = "all"
	FilterHigh         FilterKey = "high"
	FilterMid          FilterKey = "mid"
	FilterLow          FilterKey = "low"
	FilterCompleted    FilterKey = "completed"
	FilterInProgress   FilterKey = "inprogress"
	FilterNotCompleted FilterKey = "notcompleted"
)

// ParseSort accepts a sort key; "" means default.
func ParseSort(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortDefault, nil
	case SortDefault, SortPriority, SortStatus, SortComposite:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort %q (default, priority, status, composite)", s)
}

// ParseFilter accepts a filter key; "" means all. Dashes and underscores are ignored.
func ParseFilter(s string) (FilterKey, error) {
	k := FilterKey(strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s)))
	switch k {
	case "":
		return FilterAll, nil
	case FilterAll, FilterHigh, FilterMid, FilterLow, FilterCompleted, FilterInProgress, FilterNotCompleted:
		return k, nil
	}
	return "", fmt.Errorf("unknown filter %q (all, high, mid, low, completed, inprogress, notcompleted)", s)
}

func priorityRank(p model.Priority) int {
	switch p {
	case model.PriorityHigh:
		return 0
	case model.PriorityMid:
		return 1
	case model.PriorityLow:
		return 2
	}
	return 3
}

func statusRank(s model.Status) int {
	switch s {
	case model.StatusInProgress:
		return 0
	case model.StatusCompleted:
		return 1
	case model.StatusNotCompleted:
		return 2
	}
	return 3
}

// Sort returns a stably sorted copy of tasks.
func Sort(tasks []model.Task, key SortKey) []model.Task {
	out := slices.Clone(tasks)
	var cmp func(a, b model.Task) int
	switch key {
	case SortPriority:
		cmp = func(a, b model.Task) int { return priorityRank(a.Priority) - priorityRank(b.Priority) }
	case SortStatus:
		cmp = func(a, b model.Task) int { return statusRank(a.Status) - statusRank(b.Status) }
	case SortComposite:
		cmp = func(a, b model.Task) int {
			if d := priorityRank(a.Priority) - priorityRank(b.Priority); d != 0 {
				return d
			}
			return statusRank(a.Status) - statusRank(b.Status)
		}
	default:
		return out
	}
	slices.SortStableFunc(out, cmp)
	return out
}

// Filter returns the tasks matching key, in input order.
func Filter(tasks []model.Task, key FilterKey) []model.Task {
	var keep func(model.Task) bool
	switch key {
	case FilterHigh:
		keep = func(t model.Task) bool { return t.Priority == model.PriorityHigh }
	case FilterMid:
		keep = func(t model.Task) bool { return t.Priority == model.PriorityMid }
	case FilterLow:
		keep = func(t model.Task) bool { return t.Priority == model.PriorityLow }
	case FilterCompleted:
		keep = func(t model.Task) bool { return t.Status == model.StatusCompleted }
	case FilterInProgress:
		keep = func(t model.Task) bool { return t.Status == model.StatusInProgress }
	case FilterNotCompleted:
		keep = func(t model.Task) bool { return t.Status == model.StatusNotCompleted }
	default:
		return slices.Clone(tasks)
	}
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// Apply filters, sorts and buckets tasks.
func Apply(tasks []model.Task, sortKey SortKey, filter FilterKey) Buckets {
	return Bucketize(Sort(Filter(tasks, filter), sortKey))
}
