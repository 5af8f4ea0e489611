package domain

import "errors"

// Error taxonomy. Only ErrQuotaExceeded, ErrNotFound, ErrUnauthenticated and
// ErrForbidden shape the caller-visible error; the rest degrade into a
// still-successful response at the orchestrator.
var (
	ErrQuotaExceeded           = errors.New("query limit exceeded")
	ErrNotFound                = errors.New("not found")
	ErrUnauthenticated         = errors.New("could not validate credentials")
	ErrForbidden               = errors.New("account is inactive")
	ErrAllCredentialsExhausted = errors.New("all credentials exhausted")
	ErrRetrievalUnavailable    = errors.New("retrieval unavailable")
	ErrPersistence             = errors.New("persistence failure")
	ErrEmailTaken              = errors.New("email already registered")
)
