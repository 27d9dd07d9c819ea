package view

import (
	"errors"
	"regexp"
	"time"

	"tasktracker/internal/model"
)

var ErrInvalidMonth = errors.New("invalid month")

// Cell is one day in the six-week calendar grid.
type Cell struct {
	Date    string // YYYY-MM-DD
	InMonth bool
	Day     int
}

// Month is everything the calendar page needs: the 42-cell Monday-first grid
// covering the target month, the tasks bucketed per grid date, the compact
// in-month task list, and prev/next navigation.
type Month struct {
	Spec       string // YYYY-MM
	Label      string // e.g. "September 2025"
	Prev       string
	Next       string
	Cells      []Cell
	MonthTasks []AnnotatedTask
	ByDate     map[string][]AnnotatedTask
}

var monthSpecRe = regexp.MustCompile(`^\d{4}-\d{2}(-\d{2})?$`)

// BuildMonth computes the calendar for the given month spec (YYYY-MM, or
// YYYY-MM-DD truncated to its month). All date arithmetic is in UTC so the
// grid never drifts with the server's local timezone. The today parameter
// only feeds the overdue/due-today flags, never the grid shape.
func BuildMonth(spec string, tasks []model.Task, today time.Time) (Month, error) {
	if !monthSpecRe.MatchString(spec) {
		return Month{}, ErrInvalidMonth
	}
	spec = spec[:7]

	base, err := time.Parse("2006-01", spec)
	if err != nil {
		return Month{}, ErrInvalidMonth
	}

	first := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7 // Monday = 0
	start := first.AddDate(0, 0, -offset)

	cells := make([]Cell, 0, 42)
	for i := 0; i < 42; i++ {
		d := start.AddDate(0, 0, i)
		cells = append(cells, Cell{
			Date:    d.Format(time.DateOnly),
			InMonth: d.Month() == first.Month(),
			Day:     d.Day(),
		})
	}

	startYMD := start.Format(time.DateOnly)
	endYMD := start.AddDate(0, 0, 42).Format(time.DateOnly) // exclusive
	monthStart := first.Format(time.DateOnly)
	monthEnd := first.AddDate(0, 1, 0).Format(time.DateOnly) // exclusive

	flagged := Annotate(tasks, today)
	byDate := make(map[string][]AnnotatedTask)
	monthTasks := make([]AnnotatedTask, 0)
	for _, t := range flagged {
		if t.DueDate == "" {
			continue
		}
		if t.DueDate >= startYMD && t.DueDate < endYMD {
			byDate[t.DueDate] = append(byDate[t.DueDate], t)
		}
		if t.DueDate >= monthStart && t.DueDate < monthEnd {
			monthTasks = append(monthTasks, t)
		}
	}

	return Month{
		Spec:       spec,
		Label:      first.Format("January 2006"),
		Prev:       first.AddDate(0, -1, 0).Format("2006-01"),
		Next:       first.AddDate(0, 1, 0).Format("2006-01"),
		Cells:      cells,
		MonthTasks: monthTasks,
		ByDate:     byDate,
	}, nil
}
