// Package rrule edits the RFC 5545 recurrence lines stored on calendar events.
package rrule

import (
	"fmt"
	"strings"
	"time"
)

const prefix = "RRULE:"

type part struct {
	key   string
	value string
}

// Rule is one parsed RRULE line. Parts keep their original order.
type Rule struct {
	parts []part
}

// Parse reads an "RRULE:" line. It returns false for any other line (EXDATE, RDATE).
func Parse(line string) (*Rule, bool) {
	if !strings.HasPrefix(strings.ToUpper(line), prefix) {
		return nil, false
	}

	r := &Rule{}
	for _, kv := range strings.Split(line[len(prefix):], ";") {
		if kv == "" {
			continue
		}
		key, value, _ := strings.Cut(kv, "=")
		r.parts = append(r.parts, part{key: strings.ToUpper(key), value: value})
	}
	return r, true
}

// Get returns the value for key, or "" when absent
func (r *Rule) Get(key string) string {
	for _, p := range r.parts {
		if p.key == key {
			return p.value
		}
	}
	return ""
}

// Set replaces key in place, or appends it
func (r *Rule) Set(key, value string) {
	for i := range r.parts {
		if r.parts[i].key == key {
			r.parts[i].value = value
			return
		}
	}
	r.parts = append(r.parts, part{key: key, value: value})
}

// Del removes key
func (r *Rule) Del(key string) {
	kept := r.parts[:0]
	for _, p := range r.parts {
		if p.key != key {
			kept = append(kept, p)
		}
	}
	r.parts = kept
}

func (r *Rule) String() string {
	fields := make([]string, 0, len(r.parts))
	for _, p := range r.parts {
		fields = append(fields, p.key+"="+p.value)
	}
	return prefix + strings.Join(fields, ";")
}

// UntilBefore renders the UNTIL value that keeps every occurrence starting
// before cutoff. All-day series use the DATE of the previous day, timed series
// the UTC instant one second before cutoff.
func UntilBefore(cutoff time.Time, allDay bool) string {
	if allDay {
		return cutoff.AddDate(0, 0, -1).Format("20060102")
	}
	return cutoff.Add(-time.Second).UTC().Format("20060102T150405Z")
}

// ParseDate reads a DATE or DATE-TIME value as used by UNTIL.
func ParseDate(v string) (time.Time, error) {
	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", v)
}

// Truncate ends every RRULE line before cutoff, replacing any COUNT or UNTIL.
// Other lines are returned unchanged.
func Truncate(rules []string, cutoff time.Time, allDay bool) []string {
	out := make([]string, 0, len(rules))
	for _, line := range rules {
		r, ok := Parse(line)
		if !ok {
			out = append(out, line)
			continue
		}
		r.Del("COUNT")
		r.Set("UNTIL", UntilBefore(cutoff, allDay))
		out = append(out, r.String())
	}
	return out
}

// StripTermination drops COUNT and UNTIL so the rule repeats open-ended.
// EXDATE and RDATE lines belong to the old series and are dropped too.
func StripTermination(rules []string) []string {
	var out []string
	for _, line := range rules {
		r, ok := Parse(line)
		if !ok {
			continue
		}
		r.Del("COUNT")
		r.Del("UNTIL")
		out = append(out, r.String())
	}
	return out
}

// First returns the first RRULE line in rules
func First(rules []string) (*Rule, bool) {
	for _, line := range rules {
		if r, ok := Parse(line); ok {
			return r, true
		}
	}
	return nil, false
}
