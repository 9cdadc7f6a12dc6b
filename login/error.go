// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package login

import (
	"errors"
)

var (
	// ErrInvalidParameter is an invalid parameter error
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter is a nil parameter error
	ErrNilParameter = errors.New("nil parameter")

	// ErrSessionInError means the session is in the error state and must be
	// reset with Retry or Logout before a new login can start.
	ErrSessionInError = errors.New("session is in an error state")

	// ErrNoPendingLogin means a callback arrived while no login was
	// pending. Stray or replayed callbacks fail with this error without
	// touching the session.
	ErrNoPendingLogin = errors.New("no login is pending")

	// ErrNoFailedLogin means Retry was called while the session was not in
	// the error state.
	ErrNoFailedLogin = errors.New("no failed login to retry")

	// ErrNotAuthenticated means the operation needs an authenticated
	// session.
	ErrNotAuthenticated = errors.New("session is not authenticated")

	// ErrMalformedCallback means the callback parameters carried neither an
	// authorization response nor an error response.
	ErrMalformedCallback = errors.New("callback parameters are malformed")

	// ErrSyncNotConfigured means no attribute sync service was configured
	// with WithAttributeSync.
	ErrSyncNotConfigured = errors.New("attribute sync is not configured")
)
