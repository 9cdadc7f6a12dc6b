// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		q    url.Values
		want Result
	}{
		{
			name: "success",
			q:    url.Values{"state": {"st_1"}, "code": {"c_1"}},
			want: Result{Kind: KindSuccess, State: "st_1", Code: "c_1"},
		},
		{
			name: "error-response",
			q:    url.Values{"state": {"st_1"}, "error": {"access_denied"}, "error_description": {"user declined"}},
			want: Result{
				Kind:  KindAuthorizationError,
				State: "st_1",
				AuthErr: &AuthError{
					Code:        "access_denied",
					Description: "user declined",
				},
			},
		},
		{
			name: "error-wins-over-code",
			q:    url.Values{"state": {"st_1"}, "code": {"c_1"}, "error": {"server_error"}},
			want: Result{
				Kind:    KindAuthorizationError,
				State:   "st_1",
				AuthErr: &AuthError{Code: "server_error"},
			},
		},
		{
			name: "error-uri",
			q:    url.Values{"error": {"temporarily_unavailable"}, "error_uri": {"https://broker.example.com/errors/tmp"}},
			want: Result{
				Kind: KindAuthorizationError,
				AuthErr: &AuthError{
					Code: "temporarily_unavailable",
					URI:  "https://broker.example.com/errors/tmp",
				},
			},
		},
		{
			name: "missing-state",
			q:    url.Values{"code": {"c_1"}},
			want: Result{Kind: KindMalformed},
		},
		{
			name: "empty-state",
			q:    url.Values{"state": {""}, "code": {"c_1"}},
			want: Result{Kind: KindMalformed},
		},
		{
			name: "missing-code",
			q:    url.Values{"state": {"st_1"}},
			want: Result{Kind: KindMalformed, State: "st_1"},
		},
		{
			name: "no-params",
			q:    url.Values{},
			want: Result{Kind: KindMalformed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tt.want, Parse(tt.q))
		})
	}
}

func TestAuthError_Error(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	e := &AuthError{Code: "access_denied"}
	assert.Equal("authorization failed: access_denied", e.Error())

	e = &AuthError{Code: "access_denied", Description: "user declined"}
	assert.Equal("authorization failed: access_denied: user declined", e.Error())
}
