package view

import (
	"time"

	"tasktracker/internal/model"
)

// AnnotatedTask is a task enriched with the derived date fields the list and
// calendar pages render. DueDate is empty when the task has no resolvable
// due date, in which case both flags are false.
type AnnotatedTask struct {
	model.Task
	DueDate  string
	Overdue  bool
	DueToday bool
}

// DateOnly extracts the YYYY-MM-DD calendar date from a dueAt value. Values of
// at least ten characters are sliced verbatim, keeping the wall date the API
// stored without any timezone conversion; shorter values are parsed as a
// timestamp and read in UTC. Malformed values resolve to the empty string.
func DateOnly(dueAt string) string {
	if dueAt == "" {
		return ""
	}
	if len(dueAt) >= 10 {
		return dueAt[:10]
	}
	ts, err := time.Parse(time.RFC3339, dueAt)
	if err != nil {
		return ""
	}
	return ts.UTC().Format(time.DateOnly)
}

// Annotate attaches overdue/due-today flags to every task. A malformed due
// date never fails the batch; that task is simply left unflagged. The flags
// compare YYYY-MM-DD strings, which orders the same as the dates themselves.
func Annotate(tasks []model.Task, today time.Time) []AnnotatedTask {
	day := today.UTC().Format(time.DateOnly)

	out := make([]AnnotatedTask, 0, len(tasks))
	for _, t := range tasks {
		ymd := DateOnly(t.DueAt)
		out = append(out, AnnotatedTask{
			Task:     t,
			DueDate:  ymd,
			Overdue:  ymd != "" && ymd < day,
			DueToday: ymd == day,
		})
	}
	return out
}
