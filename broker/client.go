// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/meadowgate/rely/broker/internal/strutils"
)

// Client provides integration with a managed identity broker using the
// typical 3-legged OIDC authorization code flow: building authorization
// URLs, exchanging authorization codes for verified tokens, fetching
// UserInfo claims, refreshing token sets and building end session URLs.
type Client struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client

	mu sync.Mutex

	// backgroundCtx is the context used by the client for background
	// activities like refreshing JWKs key sets
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewClient creates and initializes a Client for the OIDC authorization code
// flow. Initializing the client includes making an http request to the
// broker's issuer for discovery.
//
// See Client.Done() which must be called to release client resources.
func NewClient(c *Config) (*Client, error) {
	const op = "broker.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: client config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Client with its background ctx/cancel allows
	// using client.Done() to release resources when returning errors from
	// this function.
	client := &Client{
		config:              c,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	hc, err := c.HTTPClient()
	if err != nil {
		client.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	client.client = hc

	provider, err := oidc.NewProvider(HTTPClientContext(client.backgroundCtx, hc), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		client.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to discover broker issuer: %w", op, err)
	}
	client.provider = provider

	return client, nil
}

// Done with the client's background resources and must be called for every
// Client created.
func (c *Client) Done() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backgroundCtxCancel != nil {
		c.backgroundCtxCancel()
		c.backgroundCtxCancel = nil
	}
}

// reservedAuthParams are the authorization URL parameters the flow sets
// itself; a Request's AdditionalParams cannot override them.
var reservedAuthParams = map[string]bool{
	"response_type":         true,
	"client_id":             true,
	"redirect_uri":          true,
	"scope":                 true,
	"state":                 true,
	"nonce":                 true,
	"code_challenge":        true,
	"code_challenge_method": true,
	"identity_provider":     true,
	"ui_locales":            true,
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with the broker. No network call is made; the URL
// embeds response_type=code, the client ID, the request's redirect URL,
// scopes (always including openid), state and nonce, plus the optional
// identity provider hint, PKCE challenge, ui_locales and additional params
// the Request carries.
//
// See NewRequest() to create a Request with a valid State and Nonce that
// will uniquely identify the user's authentication attempt throughout the
// flow.
func (c *Client) AuthURL(ctx context.Context, r Request) (string, error) {
	const op = "Client.AuthURL"
	if r == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.State() == "" {
		return "", fmt.Errorf("%s: request state is empty: %w", op, ErrInvalidParameter)
	}
	if r.Nonce() == "" {
		return "", fmt.Errorf("%s: request nonce is empty: %w", op, ErrInvalidParameter)
	}
	if r.State() == r.Nonce() {
		return "", fmt.Errorf("%s: request state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	if !strutils.StrListContains(c.config.AllowedRedirectURLs, r.RedirectURL()) {
		return "", fmt.Errorf("%s: redirect URL %s is not allowed: %w", op, r.RedirectURL(), ErrInvalidParameter)
	}
	for k := range r.AdditionalParams() {
		if reservedAuthParams[k] {
			return "", fmt.Errorf("%s: additional param %s is reserved: %w", op, k, ErrInvalidParameter)
		}
	}

	oauth2Config := c.oauth2Config(r)
	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(r.Nonce()),
	}
	for k, v := range r.AdditionalParams() {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam(k, v))
	}
	if hint := r.ProviderHint(); hint != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("identity_provider", hint))
	}
	if locales := r.UILocales(); len(locales) > 0 {
		tags := make([]string, 0, len(locales))
		for _, l := range locales {
			tags = append(tags, l.String())
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("ui_locales", strings.Join(tags, " ")))
	}
	if v := r.PKCEVerifier(); v != nil {
		authCodeOpts = append(authCodeOpts,
			oauth2.SetAuthURLParam("code_challenge", v.Challenge()),
			oauth2.SetAuthURLParam("code_challenge_method", string(v.Method())),
		)
	}
	return oauth2Config.AuthCodeURL(r.State(), authCodeOpts...), nil
}

// Exchange will request a token from the broker's token endpoint, using the
// authorizationCode and authorizationState it received in an earlier
// successful authentication response.
//
// It will validate the authorizationState against the Request's State before
// making any network call, and it will verify the returned id_token
// (signature, issuer, audience, expiry and nonce) before returning. A flow
// whose id_token fails verification never produces a Token.
//
// On success, the Token returned will include an IDToken and AccessToken,
// and, based on the broker, it may include a RefreshToken.
func (c *Client) Exchange(ctx context.Context, r Request, authorizationState string, authorizationCode string) (*Tk, error) {
	const op = "Client.Exchange"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if authorizationState != r.State() {
		return nil, fmt.Errorf("%s: %w", op, ErrResponseStateInvalid)
	}
	if r.IsExpired() {
		return nil, fmt.Errorf("%s: login request is expired: %w", op, ErrExpiredRequest)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	oidcCtx := HTTPClientContext(ctx, c.client)

	oauth2Config := c.oauth2Config(r)
	var exchangeOpts []oauth2.AuthCodeOption
	if v := r.PKCEVerifier(); v != nil {
		exchangeOpts = append(exchangeOpts, oauth2.SetAuthURLParam("code_verifier", v.Verifier()))
	}

	oauth2Token, err := oauth2Config.Exchange(oidcCtx, authorizationCode, exchangeOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, asExchangeError(err))
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIDToken)
	}
	t, err := NewToken(IDToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new token: %w", op, err)
	}
	if _, err := c.verifyIDToken(ctx, t.IDToken(), r.Nonce(), r.Audiences()); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	return t, nil
}

// Refresh requests a brand-new token set from the broker using the Token's
// refresh_token. The existing set is never mutated; callers replace it
// wholesale with the returned one. When the broker issues a fresh id_token
// with the grant, it is verified (without a nonce, which refresh responses
// don't carry) before being returned; otherwise the previous id_token is
// carried over.
func (c *Client) Refresh(ctx context.Context, t Token) (*Tk, error) {
	const op = "Client.Refresh"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	if t.RefreshToken() == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingRefreshToken)
	}
	oidcCtx := HTTPClientContext(ctx, c.client)

	oauth2Config := oauth2.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: string(c.config.ClientSecret),
		Endpoint:     c.provider.Endpoint(),
	}
	ts := oauth2Config.TokenSource(oidcCtx, &oauth2.Token{
		RefreshToken: string(t.RefreshToken()),
	})
	oauth2Token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, asExchangeError(err))
	}

	idToken := t.IDToken()
	if raw, ok := oauth2Token.Extra("id_token").(string); ok && raw != "" {
		if _, err := c.verifyIDToken(ctx, IDToken(raw), "", nil); err != nil {
			return nil, fmt.Errorf("%s: refreshed id_token failed verification: %w", op, err)
		}
		idToken = IDToken(raw)
	}
	newTk, err := NewToken(idToken, oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new token: %w", op, err)
	}
	return newTk, nil
}

// UserInfo gets the UserInfo claims from the broker using the token produced
// by the tokenSource. The broker's response must be for the subject
// validSubject or an ErrInvalidSubject is returned.
func (c *Client) UserInfo(ctx context.Context, tokenSource oauth2.TokenSource, validSubject string, claims interface{}) error {
	const op = "Client.UserInfo"
	if tokenSource == nil {
		return fmt.Errorf("%s: token source is nil: %w", op, ErrNilParameter)
	}
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	oidcCtx := HTTPClientContext(ctx, c.client)

	userinfo, err := c.provider.UserInfo(oidcCtx, tokenSource)
	if err != nil {
		return fmt.Errorf("%s: broker UserInfo request failed: %w", op, err)
	}
	if userinfo.Subject == "" {
		return fmt.Errorf("%s: UserInfo response is missing a subject: %w", op, ErrInvalidSubject)
	}
	if userinfo.Subject != validSubject {
		return fmt.Errorf("%s: UserInfo response has an invalid subject: %w", op, ErrInvalidSubject)
	}
	if err := userinfo.Claims(claims); err != nil {
		return fmt.Errorf("%s: unable to get UserInfo claims: %w", op, err)
	}
	return nil
}

// VerifyIDToken will verify the inbound IDToken and return its claims. It
// verifies the token has been signed by the broker, it validates the nonce,
// and performs checks any additional checks depending on the client's config
// (audiences, etc).
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (c *Client) VerifyIDToken(ctx context.Context, t IDToken, nonce string, opt ...Option) (map[string]interface{}, error) {
	const op = "Client.VerifyIDToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	return c.verifyIDToken(ctx, t, nonce, nil)
}

// verifyIDToken implements the verification sequence. An empty nonce skips
// the nonce check, which is only correct for refresh grant responses. An
// empty audiences list falls back to the config's Audiences.
func (c *Client) verifyIDToken(ctx context.Context, t IDToken, nonce string, audiences []string) (map[string]interface{}, error) {
	const op = "Client.verifyIDToken"
	algs := make([]string, 0, len(c.config.SupportedSigningAlgs))
	for _, a := range c.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	if len(audiences) == 0 {
		audiences = c.config.Audiences
	}
	oidcConfig := &oidc.Config{
		SupportedSigningAlgs: algs,
	}
	switch {
	case len(audiences) > 0:
		// the custom audience check below replaces the client ID check
		oidcConfig.SkipClientIDCheck = true
	default:
		oidcConfig.ClientID = c.config.ClientID
	}
	verifier := c.provider.Verifier(oidcConfig)

	oidcIDToken, err := verifier.Verify(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid id_token: %v: %w", op, err, ErrIDTokenVerification)
	}

	if nonce != "" && oidcIDToken.Nonce != nonce {
		return nil, fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}

	if len(audiences) > 0 {
		found := false
		for _, v := range audiences {
			if strutils.StrListContains(oidcIDToken.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: invalid id_token audiences: %w", op, ErrInvalidAudience)
		}
	}

	var claims map[string]interface{}
	if err := oidcIDToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to get id_token claims: %w", op, err)
	}
	return claims, nil
}

// LogoutURL builds the broker's end session URL: the end_session_endpoint
// from discovery (or the config's override) with the client ID, the config's
// post logout redirect URL and the provided id_token hint. It makes no
// network call and performs no navigation; the caller sends the browser
// there.
func (c *Client) LogoutURL(idTokenHint IDToken) (string, error) {
	const op = "Client.LogoutURL"
	endpoint := c.config.EndSessionEndpoint
	if endpoint == "" {
		var discovery struct {
			EndSessionEndpoint string `json:"end_session_endpoint"`
		}
		if err := c.provider.Claims(&discovery); err != nil {
			return "", fmt.Errorf("%s: unable to read discovery claims: %w", op, err)
		}
		endpoint = discovery.EndSessionEndpoint
	}
	if endpoint == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEndSessionNotSupported)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%s: end session endpoint %s is invalid (%s): %w", op, endpoint, err, ErrInvalidParameter)
	}
	q := u.Query()
	q.Set("client_id", c.config.ClientID)
	if c.config.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", c.config.PostLogoutRedirectURL)
	}
	if idTokenHint != "" {
		q.Set("id_token_hint", string(idTokenHint))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// oauth2Config assembles the OpenID Connect aware OAuth2 client config for a
// request.
func (c *Client) oauth2Config(r Request) oauth2.Config {
	scopes := r.Scopes()
	if len(scopes) == 0 {
		scopes = c.config.Scopes
	}
	// the "openid" scope is required for oidc flows
	scopes = strutils.RemoveDuplicatesStable(append([]string{oidc.ScopeOpenID}, scopes...), false)
	return oauth2.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: string(c.config.ClientSecret),
		RedirectURL:  r.RedirectURL(),
		Endpoint:     c.provider.Endpoint(),
		Scopes:       scopes,
	}
}

// asExchangeError maps an oauth2 token endpoint failure to an
// *ExchangeError, carrying the broker's error code and description when the
// response included them.
func asExchangeError(err error) *ExchangeError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &ExchangeError{
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
			err:         err,
		}
	}
	return &ExchangeError{err: err}
}
