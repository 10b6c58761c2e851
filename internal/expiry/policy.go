// Package expiry maps a requested duration class to an absolute expiry time.
package expiry

import "time"

type Class string

const (
	Hour  Class = "1h"
	Day   Class = "1d"
	Week  Class = "7d"
	Month Class = "1m"
)

// Default is used for empty or unrecognized classes.
const Default = Day

var durations = map[Class]time.Duration{
	Hour:  time.Hour,
	Day:   24 * time.Hour,
	Week:  7 * 24 * time.Hour,
	Month: 30 * 24 * time.Hour,
}

func Classes() []Class {
	return []Class{Hour, Day, Week, Month}
}

// Normalize returns the class named by s, or Default when s is not one of
// the fixed set.
func Normalize(s string) Class {
	c := Class(s)
	if _, ok := durations[c]; ok {
		return c
	}
	return Default
}

func (c Class) Valid() bool {
	_, ok := durations[c]
	return ok
}

func Duration(c Class) time.Duration {
	return durations[Normalize(string(c))]
}

// Compute returns now (in UTC) plus the duration of c.
func Compute(now time.Time, c Class) time.Time {
	return now.UTC().Add(Duration(c))
}
