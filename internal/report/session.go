package report

import (
	"time"
	_ "time/tzdata"
)

var newYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("load location " + name + ": " + err.Error())
	}
	return loc
}

// MarketOpen reports whether now falls inside the regular US equity session
// (weekdays, 09:30–16:00 New York time). Exchange holidays are not considered.
func MarketOpen(now time.Time) bool {
	ny := now.In(newYork)
	switch ny.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	open := time.Date(ny.Year(), ny.Month(), ny.Day(), 9, 30, 0, 0, newYork)
	closing := time.Date(ny.Year(), ny.Month(), ny.Day(), 16, 0, 0, 0, newYork)
	return !ny.Before(open) && !ny.After(closing)
}
