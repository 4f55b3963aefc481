package httpapi

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing or invalid bearer token")
	ErrDisabled     = errors.New("endpoint disabled: no admin token configured")
)
