package model

import (
	"strconv"
	"strings"
	"time"
)

// Status is the outcome of one resolution attempt. It is one of StatusOK,
// StatusValueNotFound, StatusNotFound or an error status built by ErrorStatus.
type Status string

const (
	StatusOK            Status = "ok"
	StatusValueNotFound Status = "value_not_found"
	StatusNotFound      Status = "not_found"

	errorPrefix = "error:"
)

// ErrorStatus returns the error variant of Status for the given failure kind.
func ErrorStatus(kind string) Status {
	if kind == "" {
		kind = "unexpected"
	}
	return Status(errorPrefix + kind)
}

// IsError reports whether s is an error status.
func (s Status) IsError() bool {
	return strings.HasPrefix(string(s), errorPrefix)
}

// Kind returns the failure kind of an error status, or "" otherwise.
func (s Status) Kind() string {
	if !s.IsError() {
		return ""
	}
	return strings.TrimPrefix(string(s), errorPrefix)
}

func (s Status) String() string { return string(s) }

// Tier identifies which fetch strategy produced a result.
type Tier string

const (
	TierNone     Tier = "none"
	TierFast     Tier = "fast"
	TierFallback Tier = "fallback"
)

// Result is the resolved record for one job. Use NewResult or ErrorResult;
// the status is always derived from the other fields.
type Result struct {
	MatchedAffiliation string    `json:"matched_affiliation"`
	URL                string    `json:"canonical_url"`
	RawValue           string    `json:"raw_value_text"`
	Value              *int64    `json:"parsed_value,omitempty"`
	UpdatedAt          time.Time `json:"timestamp"`
	Status             Status    `json:"status"`
}

// NewResult classifies a selected candidate (nil when nothing matched).
// parse turns raw value text into an integer.
func NewResult(best *Candidate, matched string, parse func(string) (int64, bool), now time.Time) Result {
	if best == nil {
		return Result{UpdatedAt: now, Status: StatusNotFound}
	}
	r := Result{
		MatchedAffiliation: matched,
		URL:                best.ProfileURL,
		RawValue:           best.RawValue,
		UpdatedAt:          now,
		Status:             StatusValueNotFound,
	}
	if r.RawValue != "" {
		r.Status = StatusOK
		if v, ok := parse(r.RawValue); ok {
			r.Value = &v
		}
	}
	return r
}

// ErrorResult is the result recorded when a job failed with the given kind.
func ErrorResult(kind string, now time.Time) Result {
	return Result{UpdatedAt: now, Status: ErrorStatus(kind)}
}

// Fields renders the result as persisted cells for the given job.
func (r Result) Fields(job Job) map[string]string {
	value := ""
	if r.Value != nil {
		value = strconv.FormatInt(*r.Value, 10)
	}
	return map[string]string{
		ColName:               job.Name,
		ColAffiliation:        job.Affiliation,
		ColMatchedAffiliation: r.MatchedAffiliation,
		ColURL:                r.URL,
		ColRawValue:           r.RawValue,
		ColValue:              value,
		ColUpdatedAt:          r.UpdatedAt.Format(TimestampLayout),
		ColStatus:             string(r.Status),
	}
}

// JobResult pairs a job with its outcome as it travels from a worker to the
// aggregator.
type JobResult struct {
	Job      Job
	Result   Result
	Tier     Tier
	Duration time.Duration
	Err      error
}
