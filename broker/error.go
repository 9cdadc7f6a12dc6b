// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrInvalidIssuer              = errors.New("invalid issuer")
	ErrExpiredRequest             = errors.New("login request is expired")
	ErrRequestNotFound            = errors.New("login request not found")
	ErrResponseStateInvalid       = errors.New("login request state and response state are not equal")
	ErrMissingIDToken             = errors.New("id_token is missing")
	ErrIDTokenVerification        = errors.New("id_token verification failed")
	ErrInvalidNonce               = errors.New("invalid nonce")
	ErrInvalidAudience            = errors.New("invalid audience")
	ErrInvalidSubject             = errors.New("invalid subject")
	ErrMissingRefreshToken        = errors.New("refresh_token is missing")
	ErrEndSessionNotSupported     = errors.New("provider does not support an end session endpoint")
	ErrUnsupportedChallengeMethod = errors.New("unsupported PKCE challenge method")
)

// ExchangeError represents a failed exchange with the provider's token
// endpoint. When the provider returned an OAuth2 error response, Code and
// Description carry its error and error_description fields; for transport
// failures they are empty and the underlying error is available via Unwrap.
type ExchangeError struct {
	Code        string
	Description string

	err error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("token exchange failed: %s: %s", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("token exchange failed: %s", e.Code)
	case e.err != nil:
		return fmt.Sprintf("token exchange failed: %s", e.err.Error())
	default:
		return "token exchange failed"
	}
}

// Unwrap returns the underlying cause, if there is one.
func (e *ExchangeError) Unwrap() error {
	return e.err
}
