// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"html/template"
	"net/http"
)

// SuccessResponseFunc is used to create a response when the callback
// completed a login successfully.
type SuccessResponseFunc func(state string, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used to create a response when the callback failed.
// authErr is not nil when the broker itself delivered an error response; e
// always carries the failure.
type ErrorResponseFunc func(state string, authErr *AuthError, e error, w http.ResponseWriter, req *http.Request)

var successTemplate = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body>
<h1>Signed in</h1>
<p>You can close this window and return to the application.</p>
</body>
</html>
`))

var errorTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Login failed</title></head>
<body>
<h1>Login failed</h1>
<p id="error-code">{{.Code}}</p>
<p id="error-description">{{.Description}}</p>
</body>
</html>
`))

// DefaultSuccessResponseFunc returns a SuccessResponseFunc that renders a
// minimal html page telling the user the login completed.
func DefaultSuccessResponseFunc() SuccessResponseFunc {
	return func(state string, w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = successTemplate.Execute(w, nil)
	}
}

// DefaultErrorResponseFunc returns an ErrorResponseFunc that renders a
// minimal html page describing the failure. Broker-delivered authorization
// errors render with a 403 status; everything else (an unknown or expired
// login request, a failed exchange, a failed verification) renders with a
// 400.
func DefaultErrorResponseFunc() ErrorResponseFunc {
	return func(state string, authErr *AuthError, e error, w http.ResponseWriter, req *http.Request) {
		data := struct {
			Code        string
			Description string
		}{
			Code:        "login_failed",
			Description: "The login could not be completed.",
		}
		status := http.StatusBadRequest
		if authErr != nil {
			status = http.StatusForbidden
			data.Code = authErr.Code
			if authErr.Description != "" {
				data.Description = authErr.Description
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = errorTemplate.Execute(w, data)
	}
}
