package model

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

func TestStatus_ErrorVariant(t *testing.T) {
	t.Parallel()

	s := ErrorStatus("transport")
	assert.Equal(t, "error:transport", s.String())
	assert.True(t, s.IsError())
	assert.Equal(t, "transport", s.Kind())

	assert.False(t, StatusOK.IsError())
	assert.Empty(t, StatusNotFound.Kind())
	assert.Equal(t, Status("error:unexpected"), ErrorStatus(""))
}

func TestNewResult_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		best   *Candidate
		want   Status
		hasVal bool
	}{
		{"no candidate", nil, StatusNotFound, false},
		{"no value text", &Candidate{ProfileURL: "https://x/profil/spieler/1"}, StatusValueNotFound, false},
		{"value text", &Candidate{ProfileURL: "https://x/profil/spieler/1", RawValue: "42"}, StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewResult(tt.best, "Club", parseInt, fixedNow)
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, tt.hasVal, r.Value != nil)
			assert.Equal(t, fixedNow, r.UpdatedAt)
		})
	}
}

func TestNewResult_OKWithUnparseableValue(t *testing.T) {
	t.Parallel()

	r := NewResult(&Candidate{ProfileURL: "u", RawValue: "n/a"}, "", parseInt, fixedNow)
	assert.Equal(t, StatusOK, r.Status)
	assert.Nil(t, r.Value)
}

func TestResult_Fields(t *testing.T) {
	t.Parallel()

	job := Job{Index: 3, Name: "Lionel Messi", Affiliation: "Inter Miami"}
	r := NewResult(&Candidate{ProfileURL: "https://x/p", RawValue: "30"}, "Inter Miami CF", parseInt, fixedNow)

	fields := r.Fields(job)
	require.Len(t, fields, len(Headers))
	assert.Equal(t, "Lionel Messi", fields[ColName])
	assert.Equal(t, "Inter Miami", fields[ColAffiliation])
	assert.Equal(t, "Inter Miami CF", fields[ColMatchedAffiliation])
	assert.Equal(t, "30", fields[ColValue])
	assert.Equal(t, "2025-03-14 09:26:53", fields[ColUpdatedAt])
	assert.Equal(t, "ok", fields[ColStatus])

	empty := ErrorResult("panic", fixedNow).Fields(job)
	assert.Equal(t, "", empty[ColValue])
	assert.Equal(t, "error:panic", empty[ColStatus])
}

func TestSummary_Count(t *testing.T) {
	t.Parallel()

	var s Summary
	s.Count(StatusOK, TierFast)
	s.Count(StatusOK, TierFallback)
	s.Count(ErrorStatus("transport"), TierNone)
	s.Count(ErrorStatus("panic"), TierNone)

	assert.Equal(t, 2, s.StatusCounts["ok"])
	assert.Equal(t, 2, s.StatusCounts["error"])
	assert.Equal(t, 1, s.TierCounts["fast"])
	assert.Equal(t, 2, s.TierCounts["none"])
}

func TestCandidate_HasLabels(t *testing.T) {
	t.Parallel()

	assert.False(t, Candidate{}.HasLabels())
	assert.False(t, Candidate{Labels: []string{""}}.HasLabels())
	assert.True(t, Candidate{Labels: []string{"", "Inter Miami CF"}}.HasLabels())
}
