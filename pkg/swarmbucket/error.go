package swarmbucket

import (
	"github.com/pkg/errors"
)

// Errors returned for invalid arguments before any request is sent.
var (
	ErrEmptyDomain = errors.New("domain not provided")
	ErrEmptyBucket = errors.New("bucket not provided")
	ErrEmptyName   = errors.New("object name not provided")
)
