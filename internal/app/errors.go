package service

import "errors"

// Sentinel errors returned by Service operations.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("scoring queue is full")
	ErrInvalidPlan  = errors.New("invalid plan")
	ErrInProgress   = errors.New("request is still being scored")
)
