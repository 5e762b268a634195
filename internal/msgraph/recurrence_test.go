package msgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRRule(t *testing.T) {
	tests := []struct {
		name string
		rec  patternedRecurrence
		want string
	}{
		{
			name: "daily forever",
			rec:  patternedRecurrence{Pattern: recurrencePattern{Type: "daily", Interval: 1}, Range: recurrenceRange{Type: "noEnd"}},
			want: "RRULE:FREQ=DAILY",
		},
		{
			name: "weekly with interval and end date",
			rec: patternedRecurrence{
				Pattern: recurrencePattern{Type: "weekly", Interval: 2, DaysOfWeek: []string{"monday", "wednesday"}},
				Range:   recurrenceRange{Type: "endDate", StartDate: "2024-03-04", EndDate: "2024-06-30"},
			},
			want: "RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;UNTIL=20240630",
		},
		{
			name: "absolute monthly numbered",
			rec: patternedRecurrence{
				Pattern: recurrencePattern{Type: "absoluteMonthly", Interval: 1, DayOfMonth: 15},
				Range:   recurrenceRange{Type: "numbered", NumberOfOccurrences: 6},
			},
			want: "RRULE:FREQ=MONTHLY;BYMONTHDAY=15;COUNT=6",
		},
		{
			name: "relative monthly last friday",
			rec: patternedRecurrence{
				Pattern: recurrencePattern{Type: "relativeMonthly", Interval: 1, DaysOfWeek: []string{"friday"}, Index: "last"},
				Range:   recurrenceRange{Type: "noEnd"},
			},
			want: "RRULE:FREQ=MONTHLY;BYDAY=FR;BYSETPOS=-1",
		},
		{
			name: "absolute yearly",
			rec: patternedRecurrence{
				Pattern: recurrencePattern{Type: "absoluteYearly", Interval: 1, Month: 7, DayOfMonth: 4},
				Range:   recurrenceRange{Type: "noEnd"},
			},
			want: "RRULE:FREQ=YEARLY;BYMONTH=7;BYMONTHDAY=4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			got, err := toRRule(&rec)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, got)
		})
	}
}

func TestToRRule_Unsupported(t *testing.T) {
	_, err := toRRule(&patternedRecurrence{Pattern: recurrencePattern{Type: "hourly"}})
	assert.Error(t, err)

	rules, err := toRRule(nil)
	assert.NoError(t, err)
	assert.Nil(t, rules)
}

func TestFromRRule(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) // a Monday

	tests := []struct {
		name string
		rule string
		want recurrencePattern
		rng  recurrenceRange
	}{
		{
			name: "weekly defaults to the start weekday",
			rule: "RRULE:FREQ=WEEKLY",
			want: recurrencePattern{Type: "weekly", Interval: 1, DaysOfWeek: []string{"monday"}},
			rng:  recurrenceRange{Type: "noEnd", StartDate: "2024-03-04", RecurrenceTimeZone: "UTC"},
		},
		{
			name: "weekly until",
			rule: "RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=TU,TH;UNTIL=20240630T235959Z",
			want: recurrencePattern{Type: "weekly", Interval: 2, DaysOfWeek: []string{"tuesday", "thursday"}},
			rng:  recurrenceRange{Type: "endDate", StartDate: "2024-03-04", EndDate: "2024-06-30", RecurrenceTimeZone: "UTC"},
		},
		{
			name: "monthly by day with prefix",
			rule: "RRULE:FREQ=MONTHLY;BYDAY=-1FR;COUNT=3",
			want: recurrencePattern{Type: "relativeMonthly", Interval: 1, DaysOfWeek: []string{"friday"}, Index: "last"},
			rng:  recurrenceRange{Type: "numbered", StartDate: "2024-03-04", NumberOfOccurrences: 3, RecurrenceTimeZone: "UTC"},
		},
		{
			name: "monthly defaults to the start day",
			rule: "RRULE:FREQ=MONTHLY",
			want: recurrencePattern{Type: "absoluteMonthly", Interval: 1, DayOfMonth: 4},
			rng:  recurrenceRange{Type: "noEnd", StartDate: "2024-03-04", RecurrenceTimeZone: "UTC"},
		},
		{
			name: "yearly",
			rule: "RRULE:FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25",
			want: recurrencePattern{Type: "absoluteYearly", Interval: 1, Month: 12, DayOfMonth: 25},
			rng:  recurrenceRange{Type: "noEnd", StartDate: "2024-03-04", RecurrenceTimeZone: "UTC"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fromRRule([]string{"EXDATE:20240311T090000Z", tt.rule}, start, "UTC")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Pattern)
			assert.Equal(t, tt.rng, got.Range)
		})
	}
}

func TestFromRRule_Errors(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	for _, lines := range [][]string{
		{"EXDATE:20240311"},
		{"RRULE:FREQ=SECONDLY"},
		{"RRULE:FREQ=WEEKLY;BYDAY=XX"},
		{"RRULE:FREQ=DAILY;INTERVAL=0"},
		{"RRULE:FREQ=DAILY;COUNT=abc"},
	} {
		_, err := fromRRule(lines, start, "UTC")
		assert.Error(t, err, lines)
	}
}

func TestRRuleRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	rule := "RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;COUNT=8"

	rec, err := fromRRule([]string{rule}, start, "UTC")
	require.NoError(t, err)
	back, err := toRRule(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{rule}, back)
}
