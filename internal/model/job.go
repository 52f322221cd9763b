package model

// Column headers of the persisted market values table, in file order.
const (
	ColName               = "Player"
	ColAffiliation        = "Squad"
	ColMatchedAffiliation = "Matched Club"
	ColURL                = "Transfermarkt URL"
	ColRawValue           = "Market Value (raw)"
	ColValue              = "Market Value (int)"
	ColUpdatedAt          = "Updated At"
	ColStatus             = "Status"
)

// Headers lists every persisted column in order.
var Headers = []string{
	ColName,
	ColAffiliation,
	ColMatchedAffiliation,
	ColURL,
	ColRawValue,
	ColValue,
	ColUpdatedAt,
	ColStatus,
}

// EditableHeaders are the columns resolution logic may write. Name and
// affiliation are seeded once and never touched again.
var EditableHeaders = Headers[2:]

// TimestampLayout is the format of the Updated At column.
const TimestampLayout = "2006-01-02 15:04:05"

// Job is one row to resolve. Index is the 0-based row position in the
// persisted table and the only stable identity across a run.
type Job struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

// Row returns the 1-based row number used in logs.
func (j Job) Row() int { return j.Index + 1 }

// Candidate is a single search result considered during one resolution.
// Candidates are scored and discarded; they are never persisted.
type Candidate struct {
	ProfileURL  string   `json:"profile_url"`
	DisplayName string   `json:"displayed_name"`
	Labels      []string `json:"affiliation_labels,omitempty"`
	RawValue    string   `json:"raw_value,omitempty"`
}

// HasLabels reports whether the candidate carries any affiliation label.
func (c Candidate) HasLabels() bool {
	for _, l := range c.Labels {
		if l != "" {
			return true
		}
	}
	return false
}
