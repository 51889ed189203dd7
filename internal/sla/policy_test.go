package sla

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadline_Table(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		level      int
		response   time.Duration
		resolution time.Duration
	}{
		{1, 24 * time.Hour, 120 * time.Hour},
		{2, 8 * time.Hour, 48 * time.Hour},
		{3, 4 * time.Hour, 24 * time.Hour},
		{4, time.Hour, 8 * time.Hour},
	}

	for _, tt := range tests {
		resp, err := Deadline(Response, tt.level, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(tt.response), resp, "response level %d", tt.level)

		res, err := Deadline(Resolution, tt.level, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(tt.resolution), res, "resolution level %d", tt.level)
	}
}

func TestDeadlines_Critical(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	resp, res, err := Deadlines(4, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), resp)
	assert.Equal(t, t0.Add(8*time.Hour), res)
}

func TestDuration_UnknownLevel(t *testing.T) {
	for _, level := range []int{0, 5, -1} {
		_, err := Duration(Response, level)
		var invalid ErrInvalidPriority
		require.True(t, errors.As(err, &invalid), "level %d", level)
		assert.Equal(t, level, invalid.Level)
	}
}

func TestDuration_UnknownKind(t *testing.T) {
	_, err := Duration(Kind("escalation"), 2)
	assert.Error(t, err)
}
