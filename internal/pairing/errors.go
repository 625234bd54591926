package pairing

import (
	"errors"

	"github.com/alfredjeanlab/pairing/internal/store"
)

var (
	// ErrNotFound means the request is absent, expired, or purged. The
	// three cases are indistinguishable to callers.
	ErrNotFound = store.ErrNotFound

	// ErrDuplicateID means a minted id collided with an existing request.
	// Ids are never reused; the caller retries Init.
	ErrDuplicateID = store.ErrDuplicateID

	// ErrClaimRejected covers every failed claim precondition.
	ErrClaimRejected = errors.New("claim rejected")

	// ErrInvalidRequest wraps a *model.ValidationError describing bad input.
	ErrInvalidRequest = errors.New("invalid request")
)
