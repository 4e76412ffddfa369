package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of all entity validation errors. Callers
// can match it with errors.Is to classify any of the specific
// validation failures below.
var ErrValidation = errors.New("validation failed")

// Specific validation errors, all wrapping ErrValidation.
var (
	// ErrEmptyPostSlug is returned when a task references no post.
	ErrEmptyPostSlug = fmt.Errorf("%w: post slug cannot be empty", ErrValidation)

	// ErrInvalidTaskKind is returned when a task kind is outside the
	// allowed set.
	ErrInvalidTaskKind = fmt.Errorf("%w: invalid task kind", ErrValidation)

	// ErrEmptyBody is returned when a task body is empty.
	ErrEmptyBody = fmt.Errorf("%w: body cannot be empty", ErrValidation)

	// ErrBodyTooLong is returned when a task body exceeds MaxBodyLength.
	ErrBodyTooLong = fmt.Errorf("%w: body exceeds maximum length", ErrValidation)

	// ErrEmptyFingerprint is returned when a submitter fingerprint is missing.
	ErrEmptyFingerprint = fmt.Errorf("%w: fingerprint cannot be empty", ErrValidation)

	// ErrInvalidTaskStatus is returned when a task status is not valid.
	ErrInvalidTaskStatus = fmt.Errorf("%w: invalid task status", ErrValidation)

	// ErrInvalidTransition is returned when a status change is not an
	// edge of the task state machine.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)

	// ErrInvalidRunStatus is returned when a run status is not valid.
	ErrInvalidRunStatus = fmt.Errorf("%w: invalid run status", ErrValidation)

	// ErrInvalidChunkStream is returned when a chunk carries an unknown
	// stream tag.
	ErrInvalidChunkStream = fmt.Errorf("%w: invalid chunk stream", ErrValidation)
)
