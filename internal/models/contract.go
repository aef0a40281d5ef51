package models

import "time"

// Contract is the published record read by the map and list views.
// Every field holds a real value or an explicit sentinel.
type Contract struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Value        string  `json:"value"`
	DueDate      string  `json:"dueDate"`
	PostedDate   string  `json:"postedDate"`
	Location     string  `json:"location"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Agency       string  `json:"agency"`
	Category     string  `json:"category"`
	ContactEmail string  `json:"contactEmail"`
	Description  string  `json:"description"`
	Source       string  `json:"source"`
	URL          string  `json:"url"`
}

// RefreshMetadata is the single row describing the last successful snapshot.
type RefreshMetadata struct {
	Timestamp        time.Time `json:"timestamp"`
	ContractCount    int       `json:"contractCount"`
	ProcessingTimeMs int64     `json:"processingTime"`
}

// RefreshRun is one entry of the refresh history.
type RefreshRun struct {
	ID               string     `json:"id"`
	Trigger          string     `json:"trigger"`
	Status           string     `json:"status"` // running, completed, failed
	Regions          int        `json:"regions"`
	Fetched          int        `json:"fetched"`
	Published        int        `json:"published"`
	GeocodeCalls     int        `json:"geocodeCalls"`
	GeocodeFallbacks int        `json:"geocodeFallbacks"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	DurationMs       int64      `json:"durationMs"`
}

// Preferences is the per-user filter document. Only States drives ingestion.
type Preferences struct {
	States     []string `json:"states,omitempty"`
	Industries []string `json:"industries,omitempty"`
}
