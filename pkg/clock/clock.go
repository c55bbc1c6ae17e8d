package clock

import "time"

// Clock supplies the engine's notion of "now". All time gating in the
// promotion registry and engine flows through it so evaluations stay
// deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// System returns the wall clock.
func System() Clock {
	return systemClock{}
}

// Fixed returns a clock pinned to the given instant.
func Fixed(at time.Time) Clock {
	return fixedClock{at: at}
}

type fixedClock struct {
	at time.Time
}

func (f fixedClock) Now() time.Time {
	return f.at
}

// MinutesOfDay collapses a timestamp to minutes since local midnight,
// the unit promotion time-of-day windows are expressed in.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseMinutes converts an "HH:MM" wire value to minutes since midnight.
func ParseMinutes(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// FormatMinutes renders minutes since midnight back to "HH:MM".
func FormatMinutes(minutes int) string {
	return time.Date(0, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format("15:04")
}
