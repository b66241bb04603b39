package schedule

import (
	"time"

	"github.com/foxzi/ofertabot/internal/models"
)

// Advance rolls every pending daily or weekly entry whose time has passed
// forward by whole periods until it is not before now. Entries are updated in
// place; the returned slice holds copies of the ones that moved. Calling it
// again with the same now changes nothing.
func Advance(entries []models.ScheduleEntry, now time.Time) []models.ScheduleEntry {
	var moved []models.ScheduleEntry
	for i := range entries {
		e := &entries[i]
		if !e.Recurring() || !e.ScheduledTime.Before(now) {
			continue
		}
		e.ScheduledTime = NextOccurrence(e.ScheduledTime, e.Frequency.Period(), now)
		moved = append(moved, *e)
	}
	return moved
}

// NextOccurrence returns the first t + k*period (k >= 0) that is not before now
func NextOccurrence(t time.Time, period time.Duration, now time.Time) time.Time {
	if period <= 0 || !t.Before(now) {
		return t
	}
	behind := now.Sub(t)
	steps := behind / period
	if behind%period != 0 {
		steps++
	}
	return t.Add(steps * period)
}
