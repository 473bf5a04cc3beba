package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Timeframe is a bar interval such as "5m", "1h" or "1d".
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
)

func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, err := tf.StepSeconds(); err != nil {
		return "", err
	}

	return tf, nil
}

// StepSeconds returns the length of one bar in seconds.
func (tf Timeframe) StepSeconds() (int64, error) {
	s := string(tf)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}

	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}

	switch s[len(s)-1] {
	case 'm':
		return n * 60, nil
	case 'h':
		return n * 3600, nil
	case 'd':
		return n * 86400, nil
	case 'w':
		return n * 7 * 86400, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
}

// IsDaily reports whether bars of this timeframe count as daily bars for readiness.
func (tf Timeframe) IsDaily() bool {
	step, err := tf.StepSeconds()
	return err == nil && step >= 86400
}

func (tf Timeframe) String() string {
	return string(tf)
}
