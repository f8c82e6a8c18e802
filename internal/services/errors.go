package services

import "errors"

var (
	// ErrValidation marks a message or call whose required fields are missing
	// or inconsistent. Permanent; no provisioning or retry is attempted.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup that failed hard, including an explicit
	// conversation id that does not belong to the resolved user and org.
	ErrNotFound = errors.New("not found")
)
