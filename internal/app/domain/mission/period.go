package mission

import (
	"fmt"
	"time"
)

// PeriodKey returns the progress bucket for t under recurrence r.
// Daily buckets are UTC dates and weekly buckets are ISO weeks.
func PeriodKey(r Recurrence, t time.Time) string {
	t = t.UTC()
	switch r {
	case RecurrenceDaily:
		return t.Format("2006-01-02")
	case RecurrenceWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return "once"
	}
}

// ValidRecurrence reports whether r is supported.
func ValidRecurrence(r Recurrence) bool {
	switch r {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly:
		return true
	}
	return false
}

// ValidEvent reports whether e is an event missions can track.
func ValidEvent(e Event) bool {
	switch e {
	case EventLogisticOrderApproved, EventItemsRecycled, EventVoucherClaimed, EventExchangeCompleted:
		return true
	}
	return false
}
