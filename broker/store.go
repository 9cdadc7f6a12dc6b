// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import "context"

// RequestStore holds pending login Requests between the redirect to the
// broker's authorization endpoint and the callback that completes the flow.
//
// Implementations must be concurrently safe and must make Consume an atomic
// get-and-delete, so a request can never be completed twice.
type RequestStore interface {
	// Store persists a pending Request, keyed by its State. Storing a
	// request with a state that's already present replaces the earlier
	// entry.
	Store(ctx context.Context, r Request) error

	// Consume removes and returns the pending Request for state. It returns
	// ErrRequestNotFound when no request is stored for the state and
	// ErrExpiredRequest when the stored request expired before it was
	// consumed. In both cases no request remains consumable for the state
	// afterwards.
	Consume(ctx context.Context, state string) (Request, error)

	// Delete removes the pending Request for state, if there is one.
	// Deleting an unknown state is not an error.
	Delete(ctx context.Context, state string) error
}
