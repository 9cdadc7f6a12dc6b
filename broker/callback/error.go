// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import "fmt"

// AuthError represents an error response the broker's authorization endpoint
// delivered through the callback's query parameters, which is how the broker
// reports failures that happen on its side of the flow (the user declined,
// the request was malformed, the broker timed out upstream, etc).
//
// See: https://www.rfc-editor.org/rfc/rfc6749#section-4.1.2.1
type AuthError struct {
	// Code is the response's "error" parameter (access_denied,
	// server_error, ...)
	Code string

	// Description is the response's optional human readable
	// "error_description" parameter
	Description string

	// URI is the response's optional "error_uri" parameter pointing at a
	// human readable web page about the error
	URI string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}
