package attendance

import "time"

// GracePeriodMinutes is how late an arrival may be and still count as on time
const GracePeriodMinutes = 15

// Classify derives the status of an arrival at the given wall-clock time.
// Only the hour and minute of at are used; at is expected in the roster's time zone.
// INVALID has no minutes, ON_TIME always reports zero and LATE reports the delay.
func Classify(emp *Employee, at time.Time) (EntryStatus, *int) {
	if emp == nil {
		return StatusInvalid, nil
	}

	delta := at.Hour()*60 + at.Minute() - emp.ExpectedArrival.Minutes()
	if delta <= GracePeriodMinutes {
		zero := 0
		return StatusOnTime, &zero
	}
	return StatusLate, &delta
}
