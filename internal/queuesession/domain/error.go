package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("queue_session_not_found")
	ErrSessionExists   = errors.New("queue_session_exists")
	ErrEntryNotFound   = errors.New("queue_entry_not_found")
	ErrInvalidJoin     = errors.New("invalid_join_request")
)
