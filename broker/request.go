// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Request basically represents one pending OIDC authentication flow for a
// user. It contains the data needed to uniquely represent that one-time flow
// across the multiple interactions needed to complete it. State() is passed
// throughout the flow to uniquely identify the attempt, and together with
// Nonce() is used to prevent CSRF and replay attacks (see the oidc spec for
// specifics).
//
// A Request is handed to a RequestStore when the flow begins and consumed
// exactly once when the authorization response arrives.
type Request interface {
	// State is a unique identifier and an opaque value used to maintain state
	// between the authorization request and the callback. State cannot equal
	// the Nonce.
	State() string

	// Nonce is a unique value used to associate a client session with an
	// id_token and to mitigate replay attacks. Nonce cannot equal the State.
	Nonce() string

	// IsExpired returns true if the request has expired, allowing for a small
	// clock skew.
	IsExpired() bool

	// Expiration returns the request's expiration time.
	Expiration() time.Time

	// RedirectURL is the URL the provider should redirect to after the user
	// completes (or declines) authentication. It must exactly match one of
	// the client's registered redirect URLs.
	RedirectURL() string

	// Audiences is an optional list of case-sensitive strings to use when
	// verifying an id_token's "aud" claim. When empty, the Config's
	// Audiences are used.
	Audiences() []string

	// Scopes is an optional list of scopes to request of the provider. When
	// empty, the Config's Scopes are used. The "openid" scope is always
	// present.
	Scopes() []string

	// PKCEVerifier returns the request's CodeVerifier when the flow uses
	// PKCE, and nil otherwise.
	PKCEVerifier() CodeVerifier

	// ProviderHint returns an optional identity provider selector which the
	// broker uses to pick a federated directory for the login, bypassing its
	// own account chooser.
	ProviderHint() string

	// UILocales optionally requests that the provider render its pages in
	// the given languages, in order of preference.
	UILocales() []language.Tag

	// AdditionalParams returns optional extra query parameters for the
	// authorization URL, for broker features the typed options don't cover.
	// Names that collide with the parameters the flow sets itself are
	// rejected by Client.AuthURL.
	AdditionalParams() map[string]string
}

// RequestExpirySkew defines a small time skew allowed when checking a
// Request's expiration.
const RequestExpirySkew = 1 * time.Second

// Req represents a pending login request and satisfies the Request interface.
type Req struct {
	// state is a unique identifier and an opaque value used to maintain state
	// between the authorization request and the callback
	state string

	// nonce is a unique value suitable for the oidc nonce param
	nonce string

	// expiration is when the request can no longer be completed
	expiration time.Time

	// redirectURL the provider redirects back to
	redirectURL string

	audiences        []string
	scopes           []string
	verifier         CodeVerifier
	providerHint     string
	uiLocales        []language.Tag
	additionalParams map[string]string

	// nowFunc is an optional function that returns the current time
	nowFunc func() time.Time
}

// ensure that Req implements the Request interface
var _ Request = (*Req)(nil)

// NewRequest creates a new Request (*Req). The expireIn bounds how long the
// user has to complete the login with the provider before the request can no
// longer be consumed; minutes, not hours, is the sensible range for a
// browser round trip.
//
// Supported options: WithNow, WithState, WithNonce, WithAudiences,
// WithScopes, WithPKCE, WithProviderHint, WithUILocales,
// WithAdditionalParams
func NewRequest(expireIn time.Duration, redirectURL string, opt ...Option) (*Req, error) {
	const op = "broker.NewRequest"
	opts := getReqOpts(opt...)
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	if redirectURL == "" {
		return nil, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}

	state := opts.withState
	if state == "" {
		var err error
		state, err = NewID(WithPrefix("st"))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate a request's state: %w", op, err)
		}
	}
	nonce := opts.withNonce
	if nonce == "" {
		var err error
		nonce, err = NewID(WithPrefix("n"))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate a request's nonce: %w", op, err)
		}
	}
	if state == nonce {
		return nil, fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}

	r := &Req{
		state:            state,
		nonce:            nonce,
		redirectURL:      redirectURL,
		audiences:        opts.withAudiences,
		scopes:           opts.withScopes,
		verifier:         opts.withVerifier,
		providerHint:     opts.withProviderHint,
		uiLocales:        opts.withUILocales,
		additionalParams: opts.withAdditionalParams,
		nowFunc:          opts.withNowFunc,
	}
	r.expiration = r.now().Add(expireIn)
	return r, nil
}

// State implements the Request.State() interface function.
func (r *Req) State() string { return r.state }

// Nonce implements the Request.Nonce() interface function.
func (r *Req) Nonce() string { return r.nonce }

// Expiration implements the Request.Expiration() interface function.
func (r *Req) Expiration() time.Time { return r.expiration }

// RedirectURL implements the Request.RedirectURL() interface function.
func (r *Req) RedirectURL() string { return r.redirectURL }

// Audiences implements the Request.Audiences() interface function.
func (r *Req) Audiences() []string { return r.audiences }

// Scopes implements the Request.Scopes() interface function.
func (r *Req) Scopes() []string { return r.scopes }

// PKCEVerifier implements the Request.PKCEVerifier() interface function.
func (r *Req) PKCEVerifier() CodeVerifier { return r.verifier }

// ProviderHint implements the Request.ProviderHint() interface function.
func (r *Req) ProviderHint() string { return r.providerHint }

// UILocales implements the Request.UILocales() interface function.
func (r *Req) UILocales() []language.Tag { return r.uiLocales }

// AdditionalParams implements the Request.AdditionalParams() interface
// function.
func (r *Req) AdditionalParams() map[string]string { return r.additionalParams }

// IsExpired implements the Request.IsExpired() interface function, allowing
// for the RequestExpirySkew.
func (r *Req) IsExpired() bool {
	return r.expiration.Before(time.Now().Add(RequestExpirySkew))
}

func (r *Req) now() time.Time {
	if r.nowFunc != nil {
		return r.nowFunc()
	}
	return time.Now()
}

// reqOptions is the set of available options for Req functions
type reqOptions struct {
	withNowFunc          func() time.Time
	withState            string
	withNonce            string
	withAudiences        []string
	withScopes           []string
	withVerifier         CodeVerifier
	withProviderHint     string
	withUILocales        []language.Tag
	withAdditionalParams map[string]string
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{}
}

// getReqOpts gets the request defaults and applies the opt overrides passed
// in
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNow provides an optional func for determining what the current time it
// is. Valid for: Request and Token.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *reqOptions:
			v.withNowFunc = now
		case *tokenOptions:
			v.withNowFunc = now
		}
	}
}

// WithState provides an optional state for a request, instead of a generated
// one. Callers that provide their own state must guarantee it's unguessable
// and single use.
func WithState(s string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withState = s
		}
	}
}

// WithNonce provides an optional nonce for a request, instead of a generated
// one.
func WithNonce(n string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withNonce = n
		}
	}
}

// WithPKCE provides an optional CodeVerifier for a request, enabling the
// PKCE flow.
func WithPKCE(v CodeVerifier) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withVerifier = v
		}
	}
}

// WithProviderHint provides an optional identity provider selector for a
// request. The broker passes it upstream so the user lands directly on the
// hinted directory's login page.
func WithProviderHint(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withProviderHint = name
		}
	}
}

// WithUILocales optionally requests that the provider render its pages in
// the given languages, in order of preference.
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withUILocales = locales
		}
	}
}

// WithAdditionalParams provides optional extra query parameters to pass
// through to the authorization URL, for broker features the typed options
// don't cover (a login_hint, for example). Names that collide with the
// parameters the flow sets itself are rejected by Client.AuthURL.
func WithAdditionalParams(params map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withAdditionalParams = params
		}
	}
}
