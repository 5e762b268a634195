package msgraph

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vipul43/privatezone/internal/rrule"
)

var weekdayToRRule = map[string]string{
	"sunday":    "SU",
	"monday":    "MO",
	"tuesday":   "TU",
	"wednesday": "WE",
	"thursday":  "TH",
	"friday":    "FR",
	"saturday":  "SA",
}

var rruleToWeekday = map[string]string{
	"SU": "sunday",
	"MO": "monday",
	"TU": "tuesday",
	"WE": "wednesday",
	"TH": "thursday",
	"FR": "friday",
	"SA": "saturday",
}

var indexToSetPos = map[string]string{
	"first":  "1",
	"second": "2",
	"third":  "3",
	"fourth": "4",
	"last":   "-1",
}

var setPosToIndex = map[string]string{
	"1":  "first",
	"2":  "second",
	"3":  "third",
	"4":  "fourth",
	"-1": "last",
}

// toRRule renders a Graph recurrence as a single RRULE line
func toRRule(rec *patternedRecurrence) ([]string, error) {
	if rec == nil {
		return nil, nil
	}
	p := rec.Pattern

	var fields []string
	add := func(k, v string) { fields = append(fields, k+"="+v) }

	switch p.Type {
	case "daily":
		add("FREQ", "DAILY")
	case "weekly":
		add("FREQ", "WEEKLY")
	case "absoluteMonthly", "relativeMonthly":
		add("FREQ", "MONTHLY")
	case "absoluteYearly", "relativeYearly":
		add("FREQ", "YEARLY")
	default:
		return nil, fmt.Errorf("unsupported recurrence pattern %q", p.Type)
	}
	if p.Interval > 1 {
		add("INTERVAL", strconv.Itoa(p.Interval))
	}
	if p.Month > 0 && strings.HasSuffix(p.Type, "Yearly") {
		add("BYMONTH", strconv.Itoa(p.Month))
	}
	if strings.HasPrefix(p.Type, "absolute") && p.DayOfMonth > 0 {
		add("BYMONTHDAY", strconv.Itoa(p.DayOfMonth))
	}
	if len(p.DaysOfWeek) > 0 && (p.Type == "weekly" || strings.HasPrefix(p.Type, "relative")) {
		days := make([]string, 0, len(p.DaysOfWeek))
		for _, d := range p.DaysOfWeek {
			code, ok := weekdayToRRule[strings.ToLower(d)]
			if !ok {
				return nil, fmt.Errorf("unknown weekday %q", d)
			}
			days = append(days, code)
		}
		add("BYDAY", strings.Join(days, ","))
	}
	if strings.HasPrefix(p.Type, "relative") {
		pos, ok := indexToSetPos[p.Index]
		if !ok {
			pos = "1"
		}
		add("BYSETPOS", pos)
	}

	switch rec.Range.Type {
	case "endDate":
		end, err := time.Parse(time.DateOnly, rec.Range.EndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid recurrence end date %q: %w", rec.Range.EndDate, err)
		}
		add("UNTIL", end.Format("20060102"))
	case "numbered":
		add("COUNT", strconv.Itoa(rec.Range.NumberOfOccurrences))
	}

	return []string{"RRULE:" + strings.Join(fields, ";")}, nil
}

// fromRRule builds a Graph recurrence from the first RRULE line. start
// anchors the range and supplies defaults the rule leaves out.
func fromRRule(lines []string, start time.Time, timeZone string) (*patternedRecurrence, error) {
	r, ok := rrule.First(lines)
	if !ok {
		return nil, fmt.Errorf("no RRULE line in recurrence")
	}

	rec := &patternedRecurrence{
		Pattern: recurrencePattern{Interval: 1},
		Range: recurrenceRange{
			Type:               "noEnd",
			StartDate:          start.Format(time.DateOnly),
			RecurrenceTimeZone: timeZone,
		},
	}
	if v := r.Get("INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid INTERVAL %q", v)
		}
		rec.Pattern.Interval = n
	}

	days, err := parseByDay(r.Get("BYDAY"))
	if err != nil {
		return nil, err
	}
	setPos := r.Get("BYSETPOS")
	if setPos == "" {
		setPos = byDayPosition(r.Get("BYDAY"))
	}

	switch r.Get("FREQ") {
	case "DAILY":
		rec.Pattern.Type = "daily"
	case "WEEKLY":
		rec.Pattern.Type = "weekly"
		if len(days) == 0 {
			days = []string{strings.ToLower(start.Weekday().String())}
		}
		rec.Pattern.DaysOfWeek = days
	case "MONTHLY":
		if len(days) > 0 {
			rec.Pattern.Type = "relativeMonthly"
			rec.Pattern.DaysOfWeek = days
			rec.Pattern.Index = setPosToIndex[setPos]
		} else {
			rec.Pattern.Type = "absoluteMonthly"
			rec.Pattern.DayOfMonth = intOr(r.Get("BYMONTHDAY"), start.Day())
		}
	case "YEARLY":
		rec.Pattern.Month = intOr(r.Get("BYMONTH"), int(start.Month()))
		if len(days) > 0 {
			rec.Pattern.Type = "relativeYearly"
			rec.Pattern.DaysOfWeek = days
			rec.Pattern.Index = setPosToIndex[setPos]
		} else {
			rec.Pattern.Type = "absoluteYearly"
			rec.Pattern.DayOfMonth = intOr(r.Get("BYMONTHDAY"), start.Day())
		}
	default:
		return nil, fmt.Errorf("unsupported FREQ %q", r.Get("FREQ"))
	}
	if rec.Pattern.Index == "" && strings.HasPrefix(rec.Pattern.Type, "relative") {
		rec.Pattern.Index = "first"
	}

	if v := r.Get("UNTIL"); v != "" {
		until, err := rrule.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("invalid UNTIL %q: %w", v, err)
		}
		rec.Range.Type = "endDate"
		rec.Range.EndDate = until.Format(time.DateOnly)
	} else if v := r.Get("COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid COUNT %q", v)
		}
		rec.Range.Type = "numbered"
		rec.Range.NumberOfOccurrences = n
	}
	return rec, nil
}

// parseByDay reads BYDAY codes, ignoring any numeric prefix (1MO, -1FR)
func parseByDay(v string) ([]string, error) {
	if v == "" {
		return nil, nil
	}
	var days []string
	for _, code := range strings.Split(v, ",") {
		code = strings.TrimLeft(code, "+-0123456789")
		day, ok := rruleToWeekday[code]
		if !ok {
			return nil, fmt.Errorf("invalid BYDAY %q", v)
		}
		days = append(days, day)
	}
	return days, nil
}

// byDayPosition returns the numeric prefix of the first BYDAY code
func byDayPosition(v string) string {
	first, _, _ := strings.Cut(v, ",")
	day := strings.TrimLeft(first, "+-0123456789")
	return strings.TrimPrefix(first[:len(first)-len(day)], "+")
}

func intOr(v string, fallback int) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return fallback
}
