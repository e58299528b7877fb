package timeparse

import (
	"fmt"
	"time"
)

// Format renders an instant as a human-readable KST string,
// e.g. "2024-01-15 오후 3:30 KST". Output re-parses to the same
// time-of-day via Parse.
func Format(t time.Time) string {
	t = t.In(kst)

	meridiem := "오전"
	if t.Hour() >= 12 {
		meridiem = "오후"
	}

	displayHour := t.Hour()
	if displayHour > 12 {
		displayHour -= 12
	}
	if displayHour == 0 {
		displayHour = 12
	}

	return fmt.Sprintf("%s %s %d:%02d KST", t.Format("2006-01-02"), meridiem, displayHour, t.Minute())
}
