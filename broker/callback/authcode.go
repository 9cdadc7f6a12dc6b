// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/meadowgate/rely/broker"
)

// CompleteFunc is called with a callback's raw parameters to finish the
// login they correlate to. It returns nil when a session became
// authenticated. The login orchestrator's CompleteLogin satisfies this
// signature.
type CompleteFunc func(ctx context.Context, q url.Values) error

// AuthCode creates an http.HandlerFunc that handles the broker's redirect
// ending the browser leg of an authorization code flow. The handler passes
// the callback's parameters to complete and renders the outcome with sFn or
// eFn. When the failure originated as the broker's own error response, eFn
// receives it as an *AuthError.
//
// The ctx is used for completing logins, not for serving requests; it
// typically spans the life of the application so a login already talking to
// the broker's token endpoint isn't abandoned because the user's browser
// hung up.
func AuthCode(ctx context.Context, complete CompleteFunc, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case complete == nil:
		return nil, fmt.Errorf("%s: complete func is nil: %w", op, broker.ErrNilParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, broker.ErrNilParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, broker.ErrNilParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		const op = "callback.AuthCodeResponse"
		if err := req.ParseForm(); err != nil {
			eFn("", nil, fmt.Errorf("%s: unable to parse form: %w", op, err), w, req)
			return
		}
		// get parameters from either the body or query parameters.
		// req.Form prioritizes body values, if found
		state := req.Form.Get("state")
		if err := complete(ctx, req.Form); err != nil {
			var authErr *AuthError
			errors.As(err, &authErr)
			eFn(state, authErr, err, w, req)
			return
		}
		sFn(state, w, req)
	}, nil
}
