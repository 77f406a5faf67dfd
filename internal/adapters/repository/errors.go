package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrPlanExists    = errors.New("plan already stored")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrUnknownDriver = errors.New("unknown store driver")
)
