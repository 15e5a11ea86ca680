// Package normalize turns raw feed fields into the canonical values the
// digest engine compares: UTC timestamps, identity URLs and plain-text excerpts.
package normalize

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// namedZones maps RFC 822 zone names to numeric offsets. time.Parse only
// resolves abbreviations known to the local location, so these are rewritten
// before parsing.
var namedZones = map[string]string{
	"UT":  "+0000",
	"UTC": "+0000",
	"GMT": "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

var trailingZoneRe = regexp.MustCompile(`\s([A-Za-z]{1,3})$`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses an RFC 822 or ISO-8601 style date string into UTC.
// It returns nil for empty or unparseable input; callers treat nil as
// "no evidence of recency".
func ParseTime(raw string) *time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	if t, ok := parseRFC822(value); ok {
		return utc(t)
	}

	iso := value
	if strings.HasSuffix(iso, "z") {
		iso = strings.TrimSuffix(iso, "z") + "Z"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return utc(t)
		}
	}

	if t, ok := parseLoose(value); ok {
		return utc(t)
	}
	return nil
}

func parseRFC822(value string) (time.Time, bool) {
	if m := trailingZoneRe.FindStringSubmatchIndex(value); m != nil {
		name := strings.ToUpper(value[m[2]:m[3]])
		if offset, ok := namedZones[name]; ok {
			value = value[:m[2]] + offset
		}
	}
	t, err := mail.ParseDate(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseLoose is the last resort for formats outside the two families above.
// dateparse panics on some malformed inputs.
func parseLoose(value string) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	parsed, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func utc(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
