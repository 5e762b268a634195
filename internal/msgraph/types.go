package msgraph

// Graph resource shapes, limited to the fields the adapter reads or writes.

type dateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type location struct {
	DisplayName string `json:"displayName"`
}

type recurrencePattern struct {
	Type           string   `json:"type"`
	Interval       int      `json:"interval"`
	DaysOfWeek     []string `json:"daysOfWeek,omitempty"`
	DayOfMonth     int      `json:"dayOfMonth,omitempty"`
	Month          int      `json:"month,omitempty"`
	Index          string   `json:"index,omitempty"`
	FirstDayOfWeek string   `json:"firstDayOfWeek,omitempty"`
}

type recurrenceRange struct {
	Type                string `json:"type"`
	StartDate           string `json:"startDate,omitempty"`
	EndDate             string `json:"endDate,omitempty"`
	NumberOfOccurrences int    `json:"numberOfOccurrences,omitempty"`
	RecurrenceTimeZone  string `json:"recurrenceTimeZone,omitempty"`
}

type patternedRecurrence struct {
	Pattern recurrencePattern `json:"pattern"`
	Range   recurrenceRange   `json:"range"`
}

type event struct {
	ID             string               `json:"id,omitempty"`
	Subject        string               `json:"subject"`
	BodyPreview    string               `json:"bodyPreview,omitempty"`
	Body           *itemBody            `json:"body,omitempty"`
	Location       *location            `json:"location,omitempty"`
	Start          *dateTimeZone        `json:"start,omitempty"`
	End            *dateTimeZone        `json:"end,omitempty"`
	IsAllDay       bool                 `json:"isAllDay"`
	IsCancelled    bool                 `json:"isCancelled,omitempty"`
	Type           string               `json:"type,omitempty"`
	SeriesMasterID string               `json:"seriesMasterId,omitempty"`
	OriginalStart  string               `json:"originalStart,omitempty"`
	Recurrence     *patternedRecurrence `json:"recurrence,omitempty"`

	OriginalStartTimeZone string `json:"originalStartTimeZone,omitempty"`
}

type eventPage struct {
	Value    []event `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	typeSeriesMaster = "seriesMaster"
	typeOccurrence   = "occurrence"
	typeException    = "exception"
)
