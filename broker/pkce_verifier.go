// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/meadowgate/rely/broker/internal/base62"
)

// ChallengeMethod represents PKCE code challenge methods as defined by RFC
// 7636.
type ChallengeMethod string

const (
	// S256 is the "SHA256" challenge method, the only method currently
	// supported.
	S256 ChallengeMethod = "S256"
)

// CodeVerifier represents an OAuth PKCE code verifier.
// See: https://tools.ietf.org/html/rfc7636#section-4.1
type CodeVerifier interface {
	// Verifier returns the code verifier
	Verifier() string

	// Challenge returns the code challenge derived from the verifier
	Challenge() string

	// Method returns the challenge method used to derive the challenge
	Method() ChallengeMethod
}

// min length of 43 chars per https://tools.ietf.org/html/rfc7636#section-4.1
const verifierLen = 43

// S256Verifier represents an OAuth PKCE code verifier that uses the S256
// challenge method.
type S256Verifier struct {
	verifier  string
	challenge string
	method    ChallengeMethod
}

var _ CodeVerifier = (*S256Verifier)(nil)

// NewCodeVerifier creates a new CodeVerifier (*S256Verifier).
func NewCodeVerifier() (*S256Verifier, error) {
	const op = "broker.NewCodeVerifier"
	data, err := base62.Random(verifierLen)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate verifier data: %w", op, err)
	}
	v := &S256Verifier{
		verifier: data,
		method:   S256,
	}
	if v.challenge, err = CreateCodeChallenge(S256, v); err != nil {
		return nil, fmt.Errorf("%s: unable to create code challenge: %w", op, err)
	}
	return v, nil
}

// Verifier implements the CodeVerifier.Verifier() interface function.
func (v *S256Verifier) Verifier() string { return v.verifier }

// Challenge implements the CodeVerifier.Challenge() interface function.
func (v *S256Verifier) Challenge() string { return v.challenge }

// Method implements the CodeVerifier.Method() interface function.
func (v *S256Verifier) Method() ChallengeMethod { return v.method }

// CreateCodeChallenge creates a code challenge from the verifier. Supported
// ChallengeMethods: S256
func CreateCodeChallenge(m ChallengeMethod, v CodeVerifier) (string, error) {
	// currently, only the S256 method is supported
	const op = "broker.CreateCodeChallenge"
	if m != S256 {
		return "", fmt.Errorf("%s: %s is invalid: %w", op, m, ErrUnsupportedChallengeMethod)
	}
	h := sha256.New()
	_, _ = h.Write([]byte(v.Verifier())) // hash documents that Write will never return an error
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
