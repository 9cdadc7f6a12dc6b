// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IDToken is an oidc id_token.
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDToken
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token
func (t IDToken) String() string {
	return RedactedIDToken
}

// MarshalJSON will redact the token
func (t IDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIDToken)
}

// Claims retrieves the IDToken claims. It does not verify the token's
// signature; only decode claims from tokens that have already been verified.
func (t IDToken) Claims(claims interface{}) error {
	const op = "IDToken.Claims"
	if len(t) == 0 {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	return UnmarshalClaims(string(t), claims)
}

// UnmarshalClaims will retrieve the claims from the raw JWT. The token's
// signature is not verified.
func UnmarshalClaims(rawToken string, claims interface{}) error {
	const op = "broker.UnmarshalClaims"
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	parser := jwt.NewParser()
	mapClaims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(rawToken, mapClaims); err != nil {
		return fmt.Errorf("%s: unable to parse jwt: %v: %w", op, err, ErrInvalidParameter)
	}
	data, err := json.Marshal(mapClaims)
	if err != nil {
		return fmt.Errorf("%s: unable to marshal jwt claims: %w", op, err)
	}
	if err := json.Unmarshal(data, claims); err != nil {
		return fmt.Errorf("%s: unable to unmarshal jwt claims: %w", op, err)
	}
	return nil
}
