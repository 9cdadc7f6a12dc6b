// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package attrsync

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is an invalid parameter error
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Kind classifies a failed attribute sync.
type Kind uint

const (
	// KindUnknown is an unclassified failure.
	KindUnknown Kind = iota

	// KindUnauthorized means the directory rejected the access token. Not
	// retriable without re-authenticating.
	KindUnauthorized

	// KindInvalidAttribute means an attribute name or value was rejected,
	// either locally before any request or by the directory. Retrying the
	// same payload cannot succeed.
	KindInvalidAttribute

	// KindTransient is a network failure or a directory-side error that is
	// safe to retry with backoff.
	KindTransient
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidAttribute:
		return "invalid attribute"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// SyncError represents a failed attribute sync with its failure
// classification. StatusCode carries the directory's http status when the
// failure came from a response; it is zero for local validation and
// network failures.
type SyncError struct {
	Kind       Kind
	StatusCode int

	err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("attribute sync failed (%s): %s", e.Kind, e.err.Error())
	}
	return fmt.Sprintf("attribute sync failed (%s)", e.Kind)
}

// Unwrap returns the underlying cause, if there is one.
func (e *SyncError) Unwrap() error {
	return e.err
}

// Retriable reports whether another attempt with the same token and
// payload could succeed.
func (e *SyncError) Retriable() bool {
	return e.Kind == KindTransient
}
