// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Token interface represents an OIDC id_token, as well as an oauth2
// access_token and refresh_token. The token set is immutable once issued;
// refreshing a session replaces the whole set.
type Token interface {
	// RefreshToken returns the token's refresh_token, which is empty when the
	// provider did not grant one
	RefreshToken() RefreshToken

	// AccessToken returns the token's access_token
	AccessToken() AccessToken

	// IDToken returns the token's id_token
	IDToken() IDToken

	// Expiry returns the expiration of the access_token
	Expiry() time.Time

	// Valid will ensure that the access_token is not empty or expired
	Valid() bool

	// IsExpired returns true when the token's access_token is expired
	IsExpired() bool
}

// DefaultTokenExpirySkew defines a default time skew when checking a Token's
// expiration.
const DefaultTokenExpirySkew = 10 * time.Second

// Tk satisfies the Token interface and represents the set of tokens issued
// for one login.
type Tk struct {
	idToken      IDToken
	accessToken  AccessToken
	refreshToken RefreshToken

	expiry time.Time

	// nowFunc is an optional function that returns the current time
	nowFunc func() time.Time
}

var _ Token = (*Tk)(nil)

// NewToken creates a new Token (*Tk). The id_token is required and the
// underlying oauth2.Token is optional. If the oauth2.Token doesn't carry an
// access_token expiry, the id_token's "exp" claim is used instead.
func NewToken(i IDToken, t *oauth2.Token, opt ...Option) (*Tk, error) {
	const op = "broker.NewToken"
	if i == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	opts := getTokenOpts(opt...)
	tk := &Tk{
		idToken: i,
		nowFunc: opts.withNowFunc,
	}
	if t != nil {
		tk.accessToken = AccessToken(t.AccessToken)
		tk.refreshToken = RefreshToken(t.RefreshToken)
		tk.expiry = t.Expiry
	}
	if tk.expiry.IsZero() {
		var claims struct {
			Exp int64 `json:"exp"`
		}
		if err := i.Claims(&claims); err != nil {
			return nil, fmt.Errorf("%s: unable to read id_token expiration: %w", op, err)
		}
		if claims.Exp != 0 {
			tk.expiry = time.Unix(claims.Exp, 0)
		}
	}
	return tk, nil
}

// RefreshToken implements the Token.RefreshToken() interface function and may
// return an empty RefreshToken when the provider did not grant one.
func (t *Tk) RefreshToken() RefreshToken { return t.refreshToken }

// AccessToken implements the Token.AccessToken() interface function.
func (t *Tk) AccessToken() AccessToken { return t.accessToken }

// IDToken implements the Token.IDToken() interface function.
func (t *Tk) IDToken() IDToken { return t.idToken }

// Expiry implements the Token.Expiry() interface function and may return a
// zero value when the provider did not report an expiration.
func (t *Tk) Expiry() time.Time { return t.expiry }

// StaticTokenSource returns a TokenSource that always returns the same token.
// Because the provided token t is never refreshed, it's handy for things like
// UserInfo requests that need a single, valid token.
func (t *Tk) StaticTokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: string(t.accessToken),
		Expiry:      t.expiry,
	})
}

// IsExpired implements the Token.IsExpired() interface function, allowing for
// a DefaultTokenExpirySkew.
func (t *Tk) IsExpired() bool {
	if t.expiry.IsZero() {
		return false
	}
	return t.expiry.Round(0).Before(t.now().Add(DefaultTokenExpirySkew))
}

// Valid implements the Token.Valid() interface function. It ensures the
// access_token is not empty or expired.
func (t *Tk) Valid() bool {
	if t == nil {
		return false
	}
	if t.accessToken == "" {
		return false
	}
	return !t.IsExpired()
}

func (t *Tk) now() time.Time {
	if t.nowFunc != nil {
		return t.nowFunc()
	}
	return time.Now()
}

// tokenOptions is the set of available options for Token functions
type tokenOptions struct {
	withNowFunc func() time.Time
}

// tokenDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed in
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
