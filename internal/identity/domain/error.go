package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrActorNotFound      = errors.New("actor_not_found")
	ErrActorInactive      = errors.New("account_inactive")
	ErrActorExists        = errors.New("actor_exists")
)
