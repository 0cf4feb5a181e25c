package aggregate

import (
	"time"

	"stargazer/internal/model"
)

// CalendarEpoch is the first day of the calendar_days dimension. GitHub has
// no star events before its 2008 launch.
var CalendarEpoch = time.Date(2008, time.January, 1, 0, 0, 0, 0, time.UTC)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildCalendar generates one CalendarDay per day from 'from' through 'to'
// inclusive. It is a pure function of its inputs and is recomputed each run.
func BuildCalendar(from, to time.Time) []model.CalendarDay {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil
	}
	days := int(to.Sub(from).Hours()/24) + 1
	out := make([]model.CalendarDay, 0, days)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, calendarDay(d))
	}
	return out
}

func calendarDay(d time.Time) model.CalendarDay {
	wd := d.Weekday()
	weekend := wd == time.Saturday || wd == time.Sunday
	_, week := d.ISOWeek()
	q := (int(d.Month())-1)/3 + 1
	return model.CalendarDay{
		Date:         d,
		Year:         d.Year(),
		Quarter:      q,
		Month:        int(d.Month()),
		WeekOfYear:   week,
		DayOfWeek:    int(wd),
		DayName:      wd.String(),
		IsWeekend:    weekend,
		IsWeekday:    !weekend,
		MonthStart:   time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC),
		QuarterStart: time.Date(d.Year(), time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC),
	}
}
