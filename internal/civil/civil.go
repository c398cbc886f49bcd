// README: IST civil-time helpers; wall clock, ISO dates and weekday keys without tz data.
package civil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OffsetMinutes is the fixed IST offset from UTC. India observes no DST.
const OffsetMinutes = 330

const dateLayout = "2006-01-02"

// Clock abstracts the machine clock so request handling can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// WallClock is the IST wall clock at one instant.
type WallClock struct {
	Date        string
	MinuteOfDay int
}

// shifted returns t as a UTC value whose calendar fields read as IST.
// Host timezone never participates, so there is no double shift.
func shifted(t time.Time) time.Time {
	return t.UTC().Add(OffsetMinutes * time.Minute)
}

// Now reads the IST civil date and minute of day for the clock's instant.
func Now(c Clock) WallClock {
	return At(c.Now())
}

func At(t time.Time) WallClock {
	s := shifted(t)
	return WallClock{
		Date:        FormatDate(s),
		MinuteOfDay: s.Hour()*60 + s.Minute(),
	}
}

// FormatDate renders the UTC calendar fields of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate validates a YYYY-MM-DD civil date and returns it at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

func ValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// AddDays is calendar arithmetic on a civil date. An unparsable date is returned unchanged.
func AddDays(date string, n int) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return FormatDate(t.AddDate(0, 0, n))
}

// Weekday returns the canonical weekday of a civil date.
func Weekday(date string) time.Weekday {
	t, err := ParseDate(date)
	if err != nil {
		return time.Sunday
	}
	return t.Weekday()
}

// Instant returns the absolute time of minuteOfDay on an IST civil date.
func Instant(date string, minuteOfDay int) (time.Time, error) {
	t, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(-OffsetMinutes * time.Minute).Add(time.Duration(minuteOfDay) * time.Minute), nil
}

// DayOfWeekKeys returns the stored day_of_week values that match date:
// the Sunday-first 0..6 form and the ISO 1..7 form.
func DayOfWeekKeys(date string) []int {
	w := int(Weekday(date))
	iso := w
	if w == 0 {
		iso = 7
	}
	if iso == w {
		return []int{w}
	}
	return []int{w, iso}
}

var shortNames = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseWeekdayKey maps a stored weekday key onto time.Weekday.
// Accepted: "0".."6" (Sunday first), "7" (ISO Sunday) and three-letter names.
func ParseWeekdayKey(key string) (time.Weekday, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	if n, err := strconv.Atoi(k); err == nil {
		switch {
		case n >= 0 && n <= 6:
			return time.Weekday(n), true
		case n == 7:
			return time.Sunday, true
		}
		return 0, false
	}
	if len(k) >= 3 {
		k = k[:3]
	}
	for i, name := range shortNames {
		if k == name {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// Day is one entry of the date selector.
type Day struct {
	Date   string `json:"date"`
	Day    string `json:"day"`
	DayNum string `json:"dayNum"`
	Month  string `json:"month"`
}

// NextDates returns n consecutive civil dates starting with today in IST.
func NextDates(c Clock, n int) []Day {
	today, _ := ParseDate(Now(c).Date)
	out := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		d := today.AddDate(0, 0, i)
		out = append(out, Day{
			Date:   FormatDate(d),
			Day:    d.Format("Mon"),
			DayNum: strconv.Itoa(d.Day()),
			Month:  d.Format("Jan"),
		})
	}
	return out
}
