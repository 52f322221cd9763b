package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.5m", 12_500_000, true},
		{"750k", 750_000, true},
		{"€200.00m", 200_000_000, true},
		{"12,500,000", 12_500_000, true},
		{"€14.00m", 14_000_000, true},
		{"â‚¬30.00m", 30_000_000, true},
		{"Â£1.5M", 1_500_000, true},
		{"$900K", 900_000, true},
		{"12,5m", 12_500_000, true},
		{"€ 500k", 500_000, true},
		{"  1234  ", 1234, true},
		{"0.4k", 400, true},
		{"1.25", 1, true},
		{"", 0, false},
		{"   ", 0, false},
		{"null", 0, false},
		{"NULL", 0, false},
		{"None", 0, false},
		{"nan", 0, false},
		{"-", 0, false},
		{"€", 0, false},
		{"unknown", 0, false},
		{"99999999999999999999999", 0, false},
		{"9223372036854775807", math.MaxInt64, true},
		{"9223372036854775808", 0, false},
		{"9223372036854.775807m", 0, false},
		{"9223372036854775.808k", 0, false},
		{"9300000000000m", 0, false},
		{"9000000000000m", 9_000_000_000_000_000_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"€30.00m", "12,500,000", "n/a", "", "7.5k"} {
		v1, ok1 := Parse(in)
		v2, ok2 := Parse(in)
		assert.Equal(t, ok1, ok2, in)
		assert.Equal(t, v1, v2, in)
	}
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	v, ok := FromAny(42)
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	v, ok = FromAny(2.5)
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)

	v, ok = FromAny(int64(7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	v, ok = FromAny("1.2m")
	assert.True(t, ok)
	assert.Equal(t, int64(1_200_000), v)

	_, ok = FromAny(nil)
	assert.False(t, ok)
	_, ok = FromAny(math.NaN())
	assert.False(t, ok)
	_, ok = FromAny(struct{}{})
	assert.False(t, ok)

	_, ok = FromAny(1e19)
	assert.False(t, ok)
	_, ok = FromAny(float64(math.MaxInt64))
	assert.False(t, ok)
	_, ok = FromAny(math.Inf(1))
	assert.False(t, ok)
	v, ok = FromAny(-2.5e18)
	assert.True(t, ok)
	assert.Equal(t, int64(-2_500_000_000_000_000_000), v)
}
