// Package schedule implements manual scheduling: batch slot allocation,
// roll-forward of recurring entries and the service used by the API and CLI.
package schedule

import (
	"slices"
	"time"

	"github.com/foxzi/ofertabot/internal/models"
)

// MaxAttemptsPerProduct bounds the slot search for a single product
const MaxAttemptsPerProduct = 1000

// Result is the outcome of an allocation
type Result struct {
	Entries []models.ScheduleEntry `json:"entries"`
	// Unscheduled holds products that found no free slot within the attempt cap
	Unscheduled []models.Product `json:"unscheduled,omitempty"`
}

// Allocate books one exclusive slot per product. Candidate slots are the
// times of day on startDate, then on each following day, in order. A slot is
// taken when its instant equals one in occupied or one booked earlier in the
// same call. Slots at or before notBefore are never offered; a start date in
// the past begins at the first slot after notBefore. A zero notBefore
// disables the bound. Entries are pending and always run once.
func Allocate(products []models.Product, startDate time.Time, times []models.Clock, occupied []time.Time, notBefore time.Time, loc *time.Location) Result {
	var res Result
	times = normalizeTimes(times)
	if len(times) == 0 {
		res.Unscheduled = append(res.Unscheduled, products...)
		return res
	}
	if loc == nil {
		loc = time.UTC
	}

	taken := make(map[int64]struct{}, len(occupied)+len(products))
	for _, t := range occupied {
		taken[t.UnixNano()] = struct{}{}
	}

	// noon keeps AddDate on the intended calendar day across DST shifts
	y, m, d := startDate.In(loc).Date()
	firstDay := time.Date(y, m, d, 12, 0, 0, 0, loc)
	if !notBefore.IsZero() {
		ny, nm, nd := notBefore.In(loc).Date()
		if today := time.Date(ny, nm, nd, 12, 0, 0, 0, loc); firstDay.Before(today) {
			firstDay = today
		}
	}

	dayOffset, timeIndex := 0, 0
	advance := func() {
		timeIndex++
		if timeIndex == len(times) {
			timeIndex = 0
			dayOffset++
		}
	}

	// at most one day of past slots remains once firstDay is clamped
	for !notBefore.IsZero() && !times[timeIndex].On(firstDay.AddDate(0, 0, dayOffset), loc).After(notBefore) {
		advance()
	}

	for _, p := range products {
		booked := false
		for attempt := 0; attempt < MaxAttemptsPerProduct; attempt++ {
			slot := times[timeIndex].On(firstDay.AddDate(0, 0, dayOffset), loc)
			advance()

			key := slot.UnixNano()
			if _, ok := taken[key]; ok {
				continue
			}
			taken[key] = struct{}{}
			res.Entries = append(res.Entries, newEntry(p, slot, models.FrequencyOnce))
			booked = true
			break
		}
		if !booked {
			res.Unscheduled = append(res.Unscheduled, p)
		}
	}
	return res
}

func newEntry(p models.Product, at time.Time, freq models.Frequency) models.ScheduleEntry {
	return models.ScheduleEntry{
		UserID:        p.UserID,
		ProductID:     p.ID,
		ProductTitle:  p.Title,
		ProductImage:  p.Image,
		ScheduledTime: at.UTC(),
		Status:        models.StatusPending,
		Platform:      models.PlatformWhatsApp,
		Frequency:     freq,
	}
}

// normalizeTimes returns the distinct valid times of day in ascending order
func normalizeTimes(times []models.Clock) []models.Clock {
	out := make([]models.Clock, 0, len(times))
	for _, t := range times {
		if t >= 0 && t < 24*60 {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
