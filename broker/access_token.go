// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import "encoding/json"

// AccessToken is the bearer token the broker issues with a token set. It
// authenticates attribute sync and UserInfo requests and redacts itself
// when printed or marshaled; read the raw value with a string conversion.
type AccessToken string

// RedactedAccessToken is printed and marshaled in place of an AccessToken's
// value.
const RedactedAccessToken = "[REDACTED: access_token]"

// String implements the fmt.Stringer interface, redacting the token.
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON implements the json.Marshaler interface, redacting the token.
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}
