package helpers

import "time"

// NextDay returns midnight of the calendar day after now in now's location,
// so DST changes never skip or repeat a date.
func NextDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// FormatNextDay renders NextDay(now) with layout, or as time.DateOnly when
// layout is empty.
func FormatNextDay(now time.Time, layout string) string {
	if layout == "" {
		layout = time.DateOnly
	}
	return NextDay(now).Format(layout)
}
