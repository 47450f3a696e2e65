package utils

import (
	"fmt"
	"time"
)

const CALENDAR_DATE_LAYOUT = "2006-01-02"

// CalendarDate formats t as a YYYY-MM-DD date in the property time zone.
func CalendarDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(CALENDAR_DATE_LAYOUT)
}

func ParseCalendarDate(date string) (time.Time, error) {
	parsed, err := time.Parse(CALENDAR_DATE_LAYOUT, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid calendar date %q: %w", date, err)
	}
	return parsed, nil
}

// PreviousCalendarDate returns the day before date.
func PreviousCalendarDate(date string) (string, error) {
	parsed, err := ParseCalendarDate(date)
	if err != nil {
		return "", err
	}
	return parsed.AddDate(0, 0, -1).Format(CALENDAR_DATE_LAYOUT), nil
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}
