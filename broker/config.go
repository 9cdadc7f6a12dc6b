// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/meadowgate/rely/broker/internal/strutils"
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for the managed identity broker used
// in a typical 3-legged OIDC authorization code flow.
type Config struct {
	// ClientID is the relying party ID registered with the broker
	ClientID string

	// ClientSecret is the relying party secret. It may be empty when the
	// client is public and the flow relies on PKCE instead.
	ClientSecret ClientSecret

	// Scopes is a list of default oidc scopes to request of the broker. The
	// required "openid" scope is always requested and doesn't need to be
	// part of this optional list.
	Scopes []string

	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components.
	Issuer string

	// SupportedSigningAlgs is a list of supported signing algorithms. List of
	// currently supported algs: RS256, RS384, RS512, ES256, ES384, ES512,
	// PS256, PS384, PS512, EdDSA
	SupportedSigningAlgs []Alg

	// AllowedRedirectURLs is a list of allowed URLs the broker will redirect
	// to after authentication. A login request's RedirectURL must exactly
	// match one of them; there is no wildcard matching.
	AllowedRedirectURLs []string

	// Audiences is an optional default list of case-sensitive strings to use
	// when verifying an id_token's "aud" claim.
	Audiences []string

	// ProviderCA is an optional CA cert PEM to use when sending requests to
	// the broker.
	ProviderCA string

	// PostLogoutRedirectURL is an optional URL the broker should redirect to
	// after it ends the user's session.
	PostLogoutRedirectURL string

	// EndSessionEndpoint is an optional override for the broker's logout
	// endpoint, for brokers whose discovery metadata omits
	// end_session_endpoint.
	EndSessionEndpoint string
}

// NewConfig composes a new config for a broker client.
//
// Supported options: WithProviderCA, WithScopes, WithAudiences,
// WithPostLogoutRedirectURL, WithEndSessionEndpoint
func NewConfig(issuer string, clientID string, clientSecret ClientSecret, supported []Alg, allowedRedirectURLs []string, opt ...Option) (*Config, error) {
	const op = "broker.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:                issuer,
		ClientID:              clientID,
		ClientSecret:          clientSecret,
		SupportedSigningAlgs:  supported,
		AllowedRedirectURLs:   allowedRedirectURLs,
		Scopes:                opts.withScopes,
		Audiences:             opts.withAudiences,
		ProviderCA:            opts.withProviderCA,
		PostLogoutRedirectURL: opts.withPostLogoutRedirectURL,
		EndSessionEndpoint:    opts.withEndSessionEndpoint,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid broker config: %w", op, err)
	}
	return c, nil
}

// Validate the broker configuration. Among other validations, it verifies
// the issuer is not empty, but it doesn't verify the Issuer is discoverable
// via an http request. SupportedSigningAlgs are validated against the list
// of currently supported algs: RS256, RS384, RS512, ES256, ES384, ES512,
// PS256, PS384, PS512, EdDSA
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client ID is empty: %w", op, ErrInvalidParameter)
	}
	if c.Issuer == "" {
		return fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("%s: issuer %s is invalid (%s): %w", op, c.Issuer, err, ErrInvalidIssuer)
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
		return fmt.Errorf("%s: issuer %s scheme is not http or https: %w", op, c.Issuer, ErrInvalidIssuer)
	}
	if len(c.AllowedRedirectURLs) == 0 {
		return fmt.Errorf("%s: allowed redirect URLs are empty: %w", op, ErrInvalidParameter)
	}
	for _, allowed := range c.AllowedRedirectURLs {
		if _, err := url.Parse(allowed); err != nil {
			return fmt.Errorf("%s: allowed redirect URL %s is invalid (%s): %w", op, allowed, err, ErrInvalidParameter)
		}
	}
	if len(c.SupportedSigningAlgs) == 0 {
		return fmt.Errorf("%s: supported algorithms are empty: %w", op, ErrInvalidParameter)
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			return fmt.Errorf("%s: unsupported algorithm %s: %w", op, a, ErrInvalidParameter)
		}
	}
	return nil
}

// HTTPClient returns a new http client for the broker, using the optional
// ProviderCA if it's set, otherwise the installed system CA chain.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	tr := cleanhttp.DefaultPooledTransport()

	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key
// used by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so
// the returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options for Config functions
type configOptions struct {
	withScopes                []string
	withAudiences             []string
	withProviderCA            string
	withPostLogoutRedirectURL string
	withEndSessionEndpoint    string
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the config defaults and applies the opt overrides
// passed in
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithProviderCA provides an optional CA cert PEM for the broker's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithPostLogoutRedirectURL provides an optional URL for the broker to
// redirect to after it ends the user's session.
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostLogoutRedirectURL = u
		}
	}
}

// WithEndSessionEndpoint provides an optional override for the broker's
// logout endpoint, for brokers whose discovery metadata omits
// end_session_endpoint.
func WithEndSessionEndpoint(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withEndSessionEndpoint = u
		}
	}
}
