// Package schedule computes the recurring daily reset boundary.
package schedule

import "time"

// Policy places the boundary at Hour:Minute local time in Location.
type Policy struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// Noon is the default boundary: 12:00:00.000 local time.
func Noon(loc *time.Location) Policy {
	return Policy{Hour: 12, Location: loc}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// TodayBoundary returns the boundary on the same calendar day as t.
func (p Policy) TodayBoundary(t time.Time) time.Time {
	t = t.In(p.location())
	y, m, d := t.Date()
	return p.on(y, m, d)
}

// NextBoundary returns the first boundary strictly after t. Days are stepped
// with calendar arithmetic so month ends and DST shifts land on the right
// wall-clock time.
func (p Policy) NextBoundary(t time.Time) time.Time {
	t = t.In(p.location())
	y, m, d := t.Date()
	if b := p.on(y, m, d); t.Before(b) {
		return b
	}
	return p.on(y, m, d+1)
}

func (p Policy) on(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, p.Hour, p.Minute, 0, 0, p.location())
}
