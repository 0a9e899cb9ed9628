package swarmhttp

import (
	"github.com/pkg/errors"
)

// Conditions surfaced by request execution. Callers match them with errors.Is
// (or errors.Cause), since they are usually wrapped with request context.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrTooManyRedirects   = errors.New("too many redirects")
	ErrMalformedChallenge = errors.New("malformed digest challenge")
)
