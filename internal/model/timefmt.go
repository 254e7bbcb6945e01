package model

import (
	"fmt"
	"time"
)

const isoLayout = "2006-01-02T15:04:05"

// FormatISO8601 renders t with a numeric offset, adding microseconds only
// when they are non-zero. The output is part of derived GUIDs and must stay
// stable.
func FormatISO8601(t time.Time) string {
	s := t.Format(isoLayout)
	if micros := t.Nanosecond() / 1000; micros != 0 {
		s += fmt.Sprintf(".%06d", micros)
	}
	return s + t.Format("-07:00")
}
