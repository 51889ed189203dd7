// Package sla maps ticket priority levels to response and resolution targets.
package sla

import (
	"fmt"
	"time"
)

// Kind selects which deadline is being computed.
type Kind string

const (
	Response   Kind = "response"
	Resolution Kind = "resolution"
)

// ErrInvalidPriority is returned for a priority level without a policy row.
type ErrInvalidPriority struct {
	Level int
}

func (e ErrInvalidPriority) Error() string {
	return fmt.Sprintf("no SLA policy for priority level %d", e.Level)
}

type target struct {
	response   time.Duration
	resolution time.Duration
}

var table = map[int]target{
	1: {response: 24 * time.Hour, resolution: 120 * time.Hour},
	2: {response: 8 * time.Hour, resolution: 48 * time.Hour},
	3: {response: 4 * time.Hour, resolution: 24 * time.Hour},
	4: {response: 1 * time.Hour, resolution: 8 * time.Hour},
}

// Duration returns the target for kind at the given priority level.
func Duration(kind Kind, level int) (time.Duration, error) {
	row, ok := table[level]
	if !ok {
		return 0, ErrInvalidPriority{Level: level}
	}
	switch kind {
	case Response:
		return row.response, nil
	case Resolution:
		return row.resolution, nil
	default:
		return 0, fmt.Errorf("unknown SLA kind %q", kind)
	}
}

// Deadline returns now plus the target for kind at level.
func Deadline(kind Kind, level int, now time.Time) (time.Time, error) {
	d, err := Duration(kind, level)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}

// Deadlines computes both deadlines for a ticket created at now.
func Deadlines(level int, now time.Time) (response, resolution time.Time, err error) {
	if response, err = Deadline(Response, level, now); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if resolution, err = Deadline(Resolution, level, now); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return response, resolution, nil
}
