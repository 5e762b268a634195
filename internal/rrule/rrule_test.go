package rrule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	cutoff := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		rules  []string
		allDay bool
		want   []string
	}{
		{
			name:  "open ended weekly",
			rules: []string{"RRULE:FREQ=WEEKLY;BYDAY=MO"},
			want:  []string{"RRULE:FREQ=WEEKLY;BYDAY=MO;UNTIL=20240310T235959Z"},
		},
		{
			name:  "count replaced",
			rules: []string{"RRULE:FREQ=DAILY;COUNT=10;INTERVAL=2"},
			want:  []string{"RRULE:FREQ=DAILY;INTERVAL=2;UNTIL=20240310T235959Z"},
		},
		{
			name:   "existing until replaced in place, all day",
			rules:  []string{"RRULE:FREQ=DAILY;UNTIL=20250101;WKST=SU"},
			allDay: true,
			want:   []string{"RRULE:FREQ=DAILY;UNTIL=20240310;WKST=SU"},
		},
		{
			name:  "exdate kept",
			rules: []string{"EXDATE;TZID=UTC:20240301T090000", "RRULE:FREQ=DAILY"},
			want:  []string{"EXDATE;TZID=UTC:20240301T090000", "RRULE:FREQ=DAILY;UNTIL=20240310T235959Z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.rules, cutoff, tt.allDay))
		})
	}
}

func TestUntilBefore(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	newYork := time.FixedZone("EST", -5*60*60)

	tests := []struct {
		name   string
		cutoff time.Time
		allDay bool
		want   string
	}{
		{name: "utc", cutoff: time.Date(2024, 3, 18, 17, 0, 0, 0, time.UTC), want: "20240318T165959Z"},
		// 08:00 in Tokyo is 23:00 the previous day in UTC
		{name: "east of utc before the offset hour", cutoff: time.Date(2024, 3, 19, 8, 0, 0, 0, tokyo), want: "20240318T225959Z"},
		{name: "west of utc late evening", cutoff: time.Date(2024, 3, 18, 21, 0, 0, 0, newYork), want: "20240319T015959Z"},
		{name: "all day", cutoff: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), allDay: true, want: "20240229"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UntilBefore(tt.cutoff, tt.allDay)
			assert.Equal(t, tt.want, got)

			if !tt.allDay {
				until, err := ParseDate(got)
				require.NoError(t, err)
				assert.True(t, until.Before(tt.cutoff), "occurrence at the cutoff is excluded")
				assert.Equal(t, time.Second, tt.cutoff.Sub(until), "nothing earlier is excluded")
			}
		})
	}
}

func TestStripTermination(t *testing.T) {
	got := StripTermination([]string{
		"RRULE:FREQ=WEEKLY;COUNT=5;BYDAY=TU,TH",
		"EXDATE:20240305T100000Z",
	})
	assert.Equal(t, []string{"RRULE:FREQ=WEEKLY;BYDAY=TU,TH"}, got)
}

func TestParse(t *testing.T) {
	_, ok := Parse("EXDATE:20240101")
	assert.False(t, ok)

	r, ok := Parse("RRULE:FREQ=MONTHLY;BYMONTHDAY=15")
	require.True(t, ok)
	assert.Equal(t, "MONTHLY", r.Get("FREQ"))
	assert.Equal(t, "15", r.Get("BYMONTHDAY"))
	assert.Equal(t, "", r.Get("COUNT"))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("20240310T235959Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC), got)

	got, err = ParseDate("20240310")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("not-a-date")
	assert.EqualError(t, err, `invalid date "not-a-date"`)
}
