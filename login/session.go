// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package login

import (
	"time"

	"github.com/meadowgate/rely/attrsync"
	"github.com/meadowgate/rely/broker"
)

// State is the session's position in the login state machine.
type State uint

const (
	// StateAnonymous means no login has completed and none is in flight.
	StateAnonymous State = iota

	// StatePending means a login was initiated and the flow is suspended in
	// the browser round trip, waiting for the broker's callback.
	StatePending

	// StateAuthenticated means a callback completed, the token set was
	// verified and the session holds trusted claims.
	StateAuthenticated

	// StateError means the last login attempt failed. The failure is kept
	// in Session.LastError until Retry or Logout resets the session.
	StateError
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StatePending:
		return "pending"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorKind classifies why a login attempt failed.
type ErrorKind uint

const (
	// KindUnknown is an unclassified failure.
	KindUnknown ErrorKind = iota

	// KindConfiguration means the flow was attempted with invalid inputs.
	KindConfiguration

	// KindMalformedCallback means the callback carried neither an
	// authorization response nor an error response.
	KindMalformedCallback

	// KindCSRFValidation means the callback's state matched no pending
	// login. The token endpoint is never contacted for such callbacks.
	KindCSRFValidation

	// KindExpiredRequest means the pending login expired before its
	// callback arrived.
	KindExpiredRequest

	// KindAuthorization means the broker or the federated directory
	// declined the authorization. The broker's description is surfaced
	// verbatim.
	KindAuthorization

	// KindTokenExchange means the authorization code could not be exchanged
	// for tokens. Re-initiating the login gets a fresh single-use code;
	// retrying the exchange itself cannot succeed.
	KindTokenExchange

	// KindInvalidToken means the id_token failed signature, issuer,
	// audience, expiry or nonce verification. The session never becomes
	// authenticated with such a token.
	KindInvalidToken
)

// String implements the fmt.Stringer interface.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindMalformedCallback:
		return "malformed callback"
	case KindCSRFValidation:
		return "csrf validation"
	case KindExpiredRequest:
		return "expired request"
	case KindAuthorization:
		return "authorization"
	case KindTokenExchange:
		return "token exchange"
	case KindInvalidToken:
		return "invalid token"
	default:
		return "unknown"
	}
}

// ErrorInfo records why a login attempt failed. For KindAuthorization the
// Message is the broker's error_description, surfaced verbatim; for every
// other kind it describes the local failure. Err carries the underlying
// error for errors.Is/As inspection.
type ErrorInfo struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// SyncWarning records a failed post-login attribute sync. The session
// stays authenticated; the warning is replaced by the next sync outcome
// and cleared on logout or re-login.
type SyncWarning struct {
	// Kind is the sync failure classification, attrsync.KindUnknown when
	// the failure was not a classified delivery failure.
	Kind attrsync.Kind

	Err error

	// Time is when the sync attempt failed.
	Time time.Time
}

// Session is a point-in-time snapshot of the login session. TokenSet and
// Claims are set while the session is authenticated; LastError is set
// while it is in the error state; SyncWarning may be set while
// authenticated.
type Session struct {
	State       State
	TokenSet    broker.Token
	Claims      map[string]interface{}
	LastError   *ErrorInfo
	SyncWarning *SyncWarning
}

// Transition describes one session change, delivered synchronously to
// subscribers after the change commits. From equals To when the session's
// content changed without a state change (a superseded pending login, a
// refreshed token set, a sync outcome). Session is a snapshot taken right
// after the change; by the time a handler runs, later changes may already
// have happened.
type Transition struct {
	From    State
	To      State
	Session Session
}
