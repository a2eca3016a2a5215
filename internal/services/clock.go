package services

import (
	"time"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// Clock supplies "now" and the location whose calendar defines "today".
// The zero value uses time.Now and UTC.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Today returns the current calendar date in the clock's location, encoded
// as midnight UTC (see domain.Day).
func (c Clock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return domain.Day(c.now().In(loc))
}
