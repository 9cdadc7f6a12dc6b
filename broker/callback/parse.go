// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import "net/url"

// Kind classifies what a callback's parameters represent.
type Kind int

const (
	// KindMalformed is a callback missing the parameters a code flow
	// requires. A malformed callback can't be correlated with a pending
	// login request and must not change any session's status.
	KindMalformed Kind = iota

	// KindAuthorizationError is a callback carrying the broker's error
	// response.
	KindAuthorizationError

	// KindSuccess is a callback carrying an authorization code and the
	// state that correlates it with a pending login request.
	KindSuccess
)

// Result is the interpretation of one authorization callback.
type Result struct {
	Kind Kind

	// State correlates the callback with a pending login request. It's
	// empty for malformed callbacks that omitted it.
	State string

	// Code is a successful callback's authorization code.
	Code string

	// AuthErr carries the broker's error response for
	// KindAuthorizationError and is nil otherwise.
	AuthErr *AuthError
}

// Parse interprets an authorization callback's query parameters. It's pure
// and makes no network calls.
//
// Interpretation is error-first: when the "error" parameter is present the
// result is KindAuthorizationError even if the callback also carries a code,
// and such a code must never be exchanged. A missing state is reported as
// KindMalformed rather than treated as a lookup key, so it can never match
// anything a store might hold under an empty key.
func Parse(q url.Values) Result {
	if q.Has("error") {
		return Result{
			Kind:  KindAuthorizationError,
			State: q.Get("state"),
			AuthErr: &AuthError{
				Code:        q.Get("error"),
				Description: q.Get("error_description"),
				URI:         q.Get("error_uri"),
			},
		}
	}
	state := q.Get("state")
	if state == "" {
		return Result{Kind: KindMalformed}
	}
	code := q.Get("code")
	if code == "" {
		return Result{Kind: KindMalformed, State: state}
	}
	return Result{Kind: KindSuccess, State: state, Code: code}
}
