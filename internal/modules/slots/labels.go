// README: Slot label parsing, HH:MM formatting and the built-in default catalog.
package slots

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var defaultLabels = []string{
	"08:00 AM - 10:00 AM",
	"10:00 AM - 12:00 PM",
	"12:00 PM - 02:00 PM",
	"02:00 PM - 04:00 PM",
	"04:00 PM - 06:00 PM",
	"06:00 PM - 08:00 PM",
	"08:00 PM - 10:00 PM",
}

// DefaultSlots is the fallback catalog: seven 2h windows 08:00-22:00, ids "1".."7".
func DefaultSlots() []Slot {
	out := make([]Slot, 0, len(defaultLabels))
	for i, label := range defaultLabels {
		start, end, _ := ParseLabelMinutes(label)
		out = append(out, Slot{
			ID:               strconv.Itoa(i + 1),
			Label:            label,
			StartMin:         start,
			EndMin:           end,
			Active:           true,
			FallbackCapacity: DefaultCapacity,
		})
	}
	return out
}

var looseLabelRe = regexp.MustCompile(`(?i)(\d{1,2}):?(\d{2})?(AM|PM)?-(\d{1,2}):?(\d{2})?(AM|PM)?`)

// ParseLabelMinutes reads "08:00 AM - 10:00 AM" style labels into minutes.
// Whitespace is ignored; minutes and meridiem are optional.
func ParseLabelMinutes(label string) (startMin, endMin int, ok bool) {
	clean := strings.Join(strings.Fields(label), "")
	m := looseLabelRe.FindStringSubmatch(clean)
	if m == nil {
		return 0, 0, false
	}
	return toMinutes(m[1], m[2], m[3]), toMinutes(m[4], m[5], m[6]), true
}

func toMinutes(h, m, meridiem string) int {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	switch strings.ToUpper(meridiem) {
	case "AM":
		if hh == 12 {
			hh = 0
		}
	case "PM":
		if hh != 12 {
			hh += 12
		}
	}
	return hh*60 + mm
}

var strictTimeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*(AM|PM)$`)

// ParseClock12 converts "6:00 PM" / "06:00PM" into "18:00:00".
func ParseClock12(s string) (string, bool) {
	s = strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	m := strictTimeRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h < 1 || h > 12 || min > 59 {
		return "", false
	}
	if m[3] == "AM" {
		if h == 12 {
			h = 0
		}
	} else if h != 12 {
		h += 12
	}
	return fmt.Sprintf("%02d:%02d:00", h, min), true
}

var dashReplacer = strings.NewReplacer("–", "-", "—", "-")

// DeriveCanonicalTimes splits a chosen label into HH:MM:SS start and end.
// Either side is nil when it cannot be read.
func DeriveCanonicalTimes(label string) (start, end *string) {
	parts := strings.Split(dashReplacer.Replace(label), "-")
	if len(parts) < 2 {
		return nil, nil
	}
	return canonicalPart(parts[0]), canonicalPart(parts[1])
}

func canonicalPart(p string) *string {
	p = strings.Join(strings.Fields(strings.ToUpper(p)), " ")
	if strings.HasSuffix(p, "AM") || strings.HasSuffix(p, "PM") {
		p = strings.TrimSpace(p[:len(p)-2]) + " " + p[len(p)-2:]
	}
	v, ok := ParseClock12(p)
	if !ok {
		return nil
	}
	return &v
}

// MinToHHMM renders minutes since midnight as zero-padded "HH:MM".
func MinToHHMM(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ParseHHMM reads "HH:MM" or "HH:MM:SS" into minutes since midnight.
func ParseHHMM(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
