package model

import "time"

// Status is the tag a run leaves on every record.
type Status string

const (
	StatusOK              Status = "ok"
	StatusFail            Status = "fail"
	StatusValidationError Status = "validation_error"
)

const (
	ChangedYes = "yes"
	ChangedNo  = "no"
)

// TimestampLayout is the textual form of LastUpdated.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one tracked product. URL is the key within a run.
// Price is kept as the stored text so a failed or rejected record can be
// written back exactly as it was read.
type Record struct {
	URL         string
	Locator     string
	Price       string
	LastUpdated string
	Changed     string
	Status      Status
}

// AlertEvent is a significant price movement.
type AlertEvent struct {
	URL       string
	OldPrice  string
	NewPrice  string
	Percent   string
	Increased bool
	At        time.Time
}

// Direction returns "increased" or "decreased".
func (e AlertEvent) Direction() string {
	if e.Increased {
		return "increased"
	}
	return "decreased"
}
