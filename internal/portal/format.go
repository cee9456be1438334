package portal

import (
	"strconv"
	"time"
)

// TwelveHour converts a 24-hour HH:MM string to the portal's 12-hour
// dropdown label convention ("14:05" -> "02:05 PM"). Input that does not
// parse as 24-hour time is returned unchanged, so labels already in portal
// form pass through.
func TwelveHour(t string) string {
	parsed, err := time.Parse("15:04", t)
	if err != nil {
		return t
	}
	return parsed.Format("03:04 PM")
}

// GridDate decomposes a civil date into the pieces the portal's date picker
// renders as separate text nodes: day-of-month without a leading zero, full
// month name, and the three-letter abbreviation.
func GridDate(date time.Time) (day, month, abbrev string) {
	return strconv.Itoa(date.Day()), date.Month().String(), date.Format("Jan")
}
