package models

import "errors"

var (
	ErrNotReady                 = errors.New("import readiness check failed")
	ErrBusy                     = errors.New("simulation is running")
	ErrNotRunning               = errors.New("simulation is not running")
	ErrRunCompleted             = errors.New("simulation completed: reset required")
	ErrInsufficientBudget       = errors.New("insufficient budget")
	ErrPositionExists           = errors.New("position already open")
	ErrNoPosition               = errors.New("no open position")
	ErrBarFeed                  = errors.New("bar feed error")
	ErrBarFeedTimeout           = errors.New("bar feed timeout")
	ErrBrokerInvariantViolation = errors.New("broker invariant violation")
	ErrRunnerNotFound           = errors.New("runner not found")
	ErrOpenPosition             = errors.New("runner has an open position")
	ErrInvalidRunner            = errors.New("invalid runner")
	ErrInvalidTimeframe         = errors.New("invalid timeframe")
	ErrResetJobNotFound         = errors.New("reset job not found")
	ErrUnknownStrategy          = errors.New("unknown strategy")
)
