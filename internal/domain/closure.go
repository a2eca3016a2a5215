package domain

import "time"

// Day returns the calendar date of t (as seen in t's own location) encoded as
// midnight UTC. Vote deadlines are stored in this form so that comparisons do
// not drift with the database driver's time zone handling.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StoredDay returns the calendar date of a deadline read back from the
// database. Deadlines are written as midnight UTC, but drivers may hand them
// back in the local zone, so the date is taken in UTC.
func StoredDay(t time.Time) time.Time { return Day(t.UTC()) }

// DateKey formats the calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string { return Day(t).Format("2006-01-02") }

// DeadlinePassed reports whether today is strictly after the vote's last day.
// A vote whose FinishedAt is today still accepts responses.
func DeadlinePassed(v *Vote, today time.Time) bool {
	return Day(today).After(StoredDay(v.FinishedAt))
}

// ParticipantThresholdReached reports whether the participant rule holds.
func ParticipantThresholdReached(v *Vote, participants int64) bool {
	return v.ClosureType == ClosureParticipantCount &&
		v.ParticipantThreshold != nil &&
		participants >= int64(*v.ParticipantThreshold)
}

// EvaluateClosure applies the closure rules to an OPEN vote. The vote closes
// when ANY rule holds:
//   - date rule: today > FinishedAt (date granularity)
//   - participant rule: PARTICIPANT_COUNT with threshold met
//
// A CLOSED vote is never re-evaluated and always yields false.
func EvaluateClosure(v *Vote, today time.Time, participants int64) bool {
	if v == nil || !v.IsOpen() {
		return false
	}
	return DeadlinePassed(v, today) || ParticipantThresholdReached(v, participants)
}
