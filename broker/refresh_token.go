// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import "encoding/json"

// RefreshToken is the long-lived credential the broker may issue alongside
// a token set, consumed by Client.Refresh to obtain a replacement set. It
// redacts itself when printed or marshaled; read the raw value with a
// string conversion.
type RefreshToken string

// RedactedRefreshToken is printed and marshaled in place of a
// RefreshToken's value.
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String implements the fmt.Stringer interface, redacting the token.
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON implements the json.Marshaler interface, redacting the token.
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}
