package numbering

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "TKT-2026-000001", Format(2026, 1))
	assert.Equal(t, "TKT-2026-123456", Format(2026, 123456))
	assert.True(t, strings.HasPrefix(Format(2027, 9), YearPrefix(2027)))
}

func TestParse_RoundTrip(t *testing.T) {
	for _, counter := range []int64{1, 42, 999999} {
		year, got, err := Parse(Format(2026, counter))
		require.NoError(t, err)
		assert.Equal(t, 2026, year)
		assert.Equal(t, counter, got)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{"", "TKT-2026", "TCK-2026-000001", "TKT-20x6-000001", "TKT-2026-abc", "TKT-2026-000000"} {
		_, _, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestFormat_SortsWithinYear(t *testing.T) {
	prev := Format(2026, 1)
	for c := int64(2); c < 2000; c++ {
		next := Format(2026, c)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestMaxCounter(t *testing.T) {
	numbers := []string{"TKT-2025-000900", "TKT-2026-000003", "garbage", "TKT-2026-000011", "TKT-2026-000007"}

	assert.Equal(t, int64(11), MaxCounter(numbers, 2026))
	assert.Equal(t, int64(900), MaxCounter(numbers, 2025))
	assert.Zero(t, MaxCounter(numbers, 2024))
}
