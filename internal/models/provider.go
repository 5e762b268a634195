package models

// Provider identifies the remote service an integration talks to.
type Provider string

const (
	ProviderGoogleCalendar Provider = "google_calendar"
	ProviderGmail          Provider = "gmail"
	ProviderGoogleTasks    Provider = "google_tasks"
	ProviderMicrosoftGraph Provider = "microsoft_graph"
)

// Valid reports whether p is one of the known providers
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogleCalendar, ProviderGmail, ProviderGoogleTasks, ProviderMicrosoftGraph:
		return true
	}
	return false
}

// Source tags where a synced entity originated.
type Source string

const (
	SourceUser     Source = "user"     // Authored locally
	SourceProvider Source = "provider" // Mirrored from a remote provider
)
