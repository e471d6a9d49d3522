package domain

import "errors"

var (
	ErrProviderTimeout        = errors.New("provider timeout")
	ErrProviderRejected       = errors.New("provider rejected")
	ErrAllProvidersExhausted  = errors.New("all providers exhausted")
	ErrDriftMethodUnavailable = errors.New("drift method unavailable")
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrReferenceUnavailable   = errors.New("reference artifact unavailable")
	ErrPolicyDenied           = errors.New("request denied by policy")
	ErrNotFound               = errors.New("not found")
)
