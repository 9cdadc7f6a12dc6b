// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/stretchr/testify/require"
	jose "gopkg.in/square/go-jose.v2"

	"github.com/meadowgate/rely/broker/internal/strutils"
)

// TestBroker is a local http server that stands in for a managed identity
// broker in tests. It serves:
//
//   - GET  /.well-known/openid-configuration: discovery
//   - GET  /authorize:                        authorization endpoint
//   - POST /token:                            token endpoint (authorization_code
//     and refresh_token grants)
//   - GET  /.well-known/jwks.json:            signing keys
//   - GET  /userinfo:                         user claims
//   - GET  /logout:                           end session endpoint
//   - POST /directory/attributes:             directory attribute updates
//
// The broker records every attribute update request it receives and counts
// code exchanges, refresh grants, userinfo reads and logout hits, so tests
// can assert on exactly what traffic a flow produced. Behavior is adjusted
// through the Set* methods (expected auth codes, custom claims, induced
// failures and so on).
//
// By default the server runs TLS with a self-signed cert; use CACert() with
// WithProviderCA, or HTTPClient() for a pre-wired client. See WithNoTLS to
// run plain http.
type TestBroker struct {
	httpServer *httptest.Server
	caCert     string

	startTLS bool

	jwks *jose.JSONWebKeySet

	mu                   sync.Mutex
	clientID             string
	clientSecret         string
	allowedRedirectURIs  []string
	expectedAuthCode     string
	expectedAuthNonce    string
	expectedCodeVerifier CodeVerifier
	recordedChallenge    string
	replyAuthError       string
	replySubject         string
	replyUserinfo        map[string]interface{}
	replyExpiry          time.Duration
	replyAccessToken     string
	replyRefreshToken    string
	customClaims         map[string]interface{}
	customAudiences      []string
	omitAuthTime         bool
	omitIDTokens         bool
	omitAccessTokens     bool
	omitRefreshTokens    bool
	disableUserInfo      bool
	disableJWKs          bool
	invalidJWKs          bool
	disableEndSession    bool
	attributesStatus     int
	attributeRequests    []TestAttributeRequest
	exchangeCount        int
	refreshCount         int
	userInfoCount        int
	logoutCount          int
	nowFunc              func() time.Time

	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey
	keyID   string
	alg     Alg

	t *testing.T

	client *http.Client
}

// TestAttributeRequest is one request the TestBroker's directory attributes
// endpoint received.
type TestAttributeRequest struct {
	Method        string
	Authorization string
	Body          []byte
}

// Endpoint paths served by the TestBroker.
const (
	testDiscoveryPath  = "/.well-known/openid-configuration"
	testAuthorizePath  = "/authorize"
	testTokenPath      = "/token"
	testJWKSPath       = "/.well-known/jwks.json"
	testUserInfoPath   = "/userinfo"
	testLogoutPath     = "/logout"
	testAttributesPath = "/directory/attributes"
)

// StartTestBroker creates and starts a running TestBroker http server. The
// server is stopped via t.Cleanup, though tests may stop it earlier with
// Stop().
//
// Supported options: WithNoTLS, WithTestPort.
func StartTestBroker(t *testing.T, opt ...Option) *TestBroker {
	t.Helper()
	require := require.New(t)
	opts := getTestBrokerOpts(opt...)

	b := &TestBroker{
		t:            t,
		startTLS:     !opts.withNoTLS,
		replySubject: "alice@example.com",
		replyUserinfo: map[string]interface{}{
			"email":          "alice@example.com",
			"email_verified": true,
			"name":           "Alice Example",
			"custom:locale":  "en-CA",
			"custom:team":    "identity",
		},
		replyExpiry: 1 * time.Hour,
		alg:         ES256,
	}

	clientID, err := NewID(WithPrefix("client-id"))
	require.NoError(err)
	b.clientID = clientID
	clientSecret, err := NewID(WithPrefix("secret"))
	require.NoError(err)
	b.clientSecret = clientSecret
	b.replyAccessToken, err = NewID(WithPrefix("at"))
	require.NoError(err)
	b.replyRefreshToken, err = NewID(WithPrefix("rt"))
	require.NoError(err)
	b.keyID, err = NewID(WithPrefix("kid"))
	require.NoError(err)

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	b.privKey = priv
	b.pubKey = &priv.PublicKey
	b.jwks = &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       b.pubKey,
				KeyID:     b.keyID,
				Algorithm: string(b.alg),
				Use:       "sig",
			},
		},
	}

	b.httpServer = httptest.NewUnstartedServer(b)
	if opts.withPort != 0 {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", opts.withPort))
		require.NoError(err)
		_ = b.httpServer.Listener.Close()
		b.httpServer.Listener = l
	}
	if b.startTLS {
		b.httpServer.StartTLS()
		cert := b.httpServer.Certificate()
		require.NotNil(cert)
		b.caCert = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
	} else {
		b.httpServer.Start()
	}
	b.allowedRedirectURIs = []string{b.httpServer.URL + "/callback"}
	t.Cleanup(b.Stop)
	return b
}

// Stop the TestBroker's http server.
func (b *TestBroker) Stop() {
	b.t.Helper()
	b.httpServer.Close()
}

// Addr returns the TestBroker's url, which is also its issuer.
func (b *TestBroker) Addr() string { return b.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the TestBroker's
// TLS server. It is empty when the broker was started with WithNoTLS.
func (b *TestBroker) CACert() string { return b.caCert }

// SigningKeys returns the keys the TestBroker signs id_tokens with, along
// with the alg and key ID it advertises in its JWKS.
func (b *TestBroker) SigningKeys() (crypto.PrivateKey, crypto.PublicKey, Alg, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.privKey, b.pubKey, b.alg, b.keyID
}

// HTTPClient returns an http client that trusts the TestBroker's TLS
// certificate.
func (b *TestBroker) HTTPClient() *http.Client {
	b.t.Helper()
	require := require.New(b.t)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client
	}
	tr := cleanhttp.DefaultPooledTransport()
	if b.caCert != "" {
		pool := x509.NewCertPool()
		require.True(pool.AppendCertsFromPEM([]byte(b.caCert)))
		tr.TLSClientConfig = &tls.Config{RootCAs: pool}
	}
	b.client = &http.Client{Transport: tr}
	return b.client
}

// SetClientCreds sets the client ID/secret the TestBroker requires from its
// token endpoint callers.
func (b *TestBroker) SetClientCreds(clientID, clientSecret string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clientID = clientID
	b.clientSecret = clientSecret
}

// ClientCreds returns the client ID/secret the TestBroker requires.
func (b *TestBroker) ClientCreds() (clientID, clientSecret string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clientID, b.clientSecret
}

// SetAllowedRedirectURIs sets the redirect URIs the authorization endpoint
// accepts.
func (b *TestBroker) SetAllowedRedirectURIs(uris []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowedRedirectURIs = uris
}

// SetExpectedAuthCode sets the authorization code the authorization endpoint
// hands out and the token endpoint requires.
func (b *TestBroker) SetExpectedAuthCode(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expectedAuthCode = code
}

// SetExpectedAuthNonce sets the nonce embedded into issued id_tokens. The
// authorization endpoint overwrites it with the nonce of the last auth
// request it served.
func (b *TestBroker) SetExpectedAuthNonce(nonce string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expectedAuthNonce = nonce
}

// SetExpectedCodeVerifier requires the token endpoint's callers to present a
// code_verifier matching the verifier's challenge.
func (b *TestBroker) SetExpectedCodeVerifier(v CodeVerifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expectedCodeVerifier = v
}

// SetReplyAuthError makes the authorization endpoint respond with the given
// error code instead of an authorization code.
func (b *TestBroker) SetReplyAuthError(errorCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replyAuthError = errorCode
}

// SetReplySubject sets the subject of issued id_tokens and userinfo
// responses.
func (b *TestBroker) SetReplySubject(sub string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replySubject = sub
}

// SetReplyUserinfo sets the claims returned by the userinfo endpoint (the
// subject is always added from the reply subject).
func (b *TestBroker) SetReplyUserinfo(claims map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replyUserinfo = claims
}

// SetReplyExpiry sets the lifetime of issued tokens (both the expires_in of
// access tokens and the exp claim of id_tokens).
func (b *TestBroker) SetReplyExpiry(expireIn time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replyExpiry = expireIn
}

// ReplyAccessToken returns the access token the token endpoint currently
// hands out. Refresh grants rotate it.
func (b *TestBroker) ReplyAccessToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replyAccessToken
}

// ReplyRefreshToken returns the refresh token the token endpoint hands out
// and the refresh grant requires.
func (b *TestBroker) ReplyRefreshToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replyRefreshToken
}

// SetCustomClaims sets additional claims merged into issued id_tokens.
func (b *TestBroker) SetCustomClaims(claims map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.customClaims = claims
}

// SetCustomAudiences overrides the aud claim of issued id_tokens, which is
// the client ID by default.
func (b *TestBroker) SetCustomAudiences(auds ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.customAudiences = auds
}

// SetOmitAuthTime turns the auth_time claim of issued id_tokens on/off
// (on by default).
func (b *TestBroker) SetOmitAuthTime(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitAuthTime = omit
}

// SetOmitIDTokens turns the id_tokens in token endpoint responses on/off
// (on by default).
func (b *TestBroker) SetOmitIDTokens(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitIDTokens = omit
}

// SetOmitAccessTokens turns the access tokens in token endpoint responses
// on/off (on by default).
func (b *TestBroker) SetOmitAccessTokens(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitAccessTokens = omit
}

// SetOmitRefreshTokens turns the refresh tokens in token endpoint responses
// on/off (on by default).
func (b *TestBroker) SetOmitRefreshTokens(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitRefreshTokens = omit
}

// SetDisableUserInfo makes the userinfo endpoint return 404s.
func (b *TestBroker) SetDisableUserInfo(disable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disableUserInfo = disable
}

// SetDisableJWKs makes the JWKS endpoint return 404s.
func (b *TestBroker) SetDisableJWKs(disable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disableJWKs = disable
}

// SetInvalidJWKs makes the JWKS endpoint return data that's not a valid
// JWKS.
func (b *TestBroker) SetInvalidJWKs(invalid bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invalidJWKs = invalid
}

// SetDisableEndSession removes the end_session_endpoint from the discovery
// document.
func (b *TestBroker) SetDisableEndSession(disable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disableEndSession = disable
}

// SetAttributesReplyStatus makes the directory attributes endpoint respond
// with the given http status regardless of the request. A zero status
// restores the default behavior.
func (b *TestBroker) SetAttributesReplyStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attributesStatus = status
}

// AttributeSyncRequests returns a copy of every request the directory
// attributes endpoint has received.
func (b *TestBroker) AttributeSyncRequests() []TestAttributeRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]TestAttributeRequest, len(b.attributeRequests))
	copy(cp, b.attributeRequests)
	return cp
}

// SetNowFunc sets the broker's "now", which anchors the iat/nbf/exp claims
// of issued id_tokens.
func (b *TestBroker) SetNowFunc(n func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowFunc = n
}

// ExchangeCount returns the number of authorization code grants the token
// endpoint has served.
func (b *TestBroker) ExchangeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exchangeCount
}

// RefreshCount returns the number of refresh grants the token endpoint has
// served.
func (b *TestBroker) RefreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCount
}

// UserInfoCount returns the number of userinfo reads served.
func (b *TestBroker) UserInfoCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userInfoCount
}

// LogoutCount returns the number of end session hits served.
func (b *TestBroker) LogoutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logoutCount
}

func (b *TestBroker) now() time.Time {
	if b.nowFunc != nil {
		return b.nowFunc()
	}
	return time.Now()
}

// ServeHTTP implements the TestBroker's http endpoints.
func (b *TestBroker) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b.t.Helper()
	require := require.New(b.t)

	b.mu.Lock()
	defer b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case testDiscoveryPath:
		reply := struct {
			Issuer                string   `json:"issuer"`
			AuthEndpoint          string   `json:"authorization_endpoint"`
			TokenEndpoint         string   `json:"token_endpoint"`
			JWKSURI               string   `json:"jwks_uri"`
			UserinfoEndpoint      string   `json:"userinfo_endpoint"`
			EndSessionEndpoint    string   `json:"end_session_endpoint,omitempty"`
			SupportedAlgs         []string `json:"id_token_signing_alg_values_supported"`
			SupportedScopes       []string `json:"scopes_supported"`
			SupportedGrantTypes   []string `json:"grant_types_supported"`
			SupportedSubjectTypes []string `json:"subject_types_supported"`
		}{
			Issuer:                b.Addr(),
			AuthEndpoint:          b.Addr() + testAuthorizePath,
			TokenEndpoint:         b.Addr() + testTokenPath,
			JWKSURI:               b.Addr() + testJWKSPath,
			UserinfoEndpoint:      b.Addr() + testUserInfoPath,
			EndSessionEndpoint:    b.Addr() + testLogoutPath,
			SupportedAlgs:         []string{string(b.alg)},
			SupportedScopes:       []string{"openid", "profile", "email"},
			SupportedGrantTypes:   []string{"authorization_code", "refresh_token"},
			SupportedSubjectTypes: []string{"public"},
		}
		if b.disableEndSession {
			reply.EndSessionEndpoint = ""
		}
		b.writeJSON(w, &reply)
		return

	case testAuthorizePath:
		require.Equal(http.MethodGet, req.Method)
		q := req.URL.Query()
		state := q.Get("state")
		redirectURI := q.Get("redirect_uri")

		if !strutils.StrListContains(b.allowedRedirectURIs, redirectURI) {
			// an untrusted redirect_uri must never be redirected to
			b.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		}
		switch {
		case q.Get("response_type") != "code":
			b.writeAuthErrorResponse(w, req, redirectURI, state, "unsupported_response_type", "")
			return
		case !strutils.StrListContains(strings.Fields(q.Get("scope")), "openid"):
			b.writeAuthErrorResponse(w, req, redirectURI, state, "invalid_scope", "the openid scope is required")
			return
		case state == "":
			b.writeAuthErrorResponse(w, req, redirectURI, state, "invalid_request", "state is required")
			return
		case b.clientID != "" && q.Get("client_id") != b.clientID:
			b.writeAuthErrorResponse(w, req, redirectURI, state, "unauthorized_client", "")
			return
		}
		if nonce := q.Get("nonce"); nonce != "" {
			b.expectedAuthNonce = nonce
		}
		if challenge := q.Get("code_challenge"); challenge != "" {
			b.recordedChallenge = challenge
		}
		if b.replyAuthError != "" {
			b.writeAuthErrorResponse(w, req, redirectURI, state, b.replyAuthError, "the broker rejected the authorization request")
			return
		}
		redirect := fmt.Sprintf("%s?state=%s&code=%s", redirectURI, url.QueryEscape(state), url.QueryEscape(b.expectedAuthCode))
		http.Redirect(w, req, redirect, http.StatusFound)
		return

	case testTokenPath:
		require.Equal(http.MethodPost, req.Method)
		require.NoError(req.ParseForm())

		clientID, clientSecret, hasBasicAuth := req.BasicAuth()
		if !hasBasicAuth {
			clientID = req.FormValue("client_id")
			clientSecret = req.FormValue("client_secret")
		}
		if b.clientID != "" && (clientID != b.clientID || clientSecret != b.clientSecret) {
			b.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "invalid client credentials")
			return
		}

		switch req.FormValue("grant_type") {
		case "authorization_code":
			b.serveAuthCodeGrant(w, req)
		case "refresh_token":
			b.serveRefreshGrant(w, req)
		default:
			b.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "")
		}
		return

	case testJWKSPath:
		switch {
		case b.disableJWKs:
			w.WriteHeader(http.StatusNotFound)
		case b.invalidJWKs:
			_, err := w.Write([]byte("It's not a JWKS that I would know about"))
			require.NoError(err)
		default:
			b.writeJSON(w, b.jwks)
		}
		return

	case testUserInfoPath:
		if b.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		b.userInfoCount++
		if b.replyAccessToken != "" && req.Header.Get("Authorization") != "Bearer "+b.replyAccessToken {
			b.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}
		reply := map[string]interface{}{
			"sub": b.replySubject,
		}
		for k, v := range b.replyUserinfo {
			reply[k] = v
		}
		b.writeJSON(w, reply)
		return

	case testLogoutPath:
		b.logoutCount++
		if redirect := req.URL.Query().Get("post_logout_redirect_uri"); redirect != "" {
			http.Redirect(w, req, redirect, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return

	case testAttributesPath:
		body, err := io.ReadAll(req.Body)
		require.NoError(err)
		b.attributeRequests = append(b.attributeRequests, TestAttributeRequest{
			Method:        req.Method,
			Authorization: req.Header.Get("Authorization"),
			Body:          body,
		})
		if b.attributesStatus != 0 {
			w.WriteHeader(b.attributesStatus)
			_, err := w.Write([]byte(`{"message":"attribute update rejected"}`))
			require.NoError(err)
			return
		}
		if b.replyAccessToken != "" && req.Header.Get("Authorization") != "Bearer "+b.replyAccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, err := w.Write([]byte(`{"message":"invalid bearer token"}`))
			require.NoError(err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return

	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
}

// serveAuthCodeGrant handles the token endpoint's authorization_code grant.
// The caller must hold b.mu.
func (b *TestBroker) serveAuthCodeGrant(w http.ResponseWriter, req *http.Request) {
	b.t.Helper()
	require := require.New(b.t)
	if code := req.FormValue("code"); b.expectedAuthCode == "" || code != b.expectedAuthCode {
		b.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
		return
	}

	var wantChallenge string
	switch {
	case b.expectedCodeVerifier != nil:
		wantChallenge = b.expectedCodeVerifier.Challenge()
	case b.recordedChallenge != "":
		wantChallenge = b.recordedChallenge
	}
	if wantChallenge != "" {
		verifier := req.FormValue("code_verifier")
		if verifier == "" {
			b.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "code_verifier is required")
			return
		}
		challenge, err := CreateCodeChallenge(S256, &S256Verifier{verifier: verifier, method: S256})
		require.NoError(err)
		if challenge != wantChallenge {
			b.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected code_verifier")
			return
		}
	}

	b.exchangeCount++
	b.writeTokenReply(w, b.expectedAuthNonce)
}

// serveRefreshGrant handles the token endpoint's refresh_token grant. The
// caller must hold b.mu.
func (b *TestBroker) serveRefreshGrant(w http.ResponseWriter, req *http.Request) {
	b.t.Helper()
	require := require.New(b.t)
	refreshToken := req.FormValue("refresh_token")
	switch {
	case refreshToken == "":
		b.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	case refreshToken != b.replyRefreshToken:
		b.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected refresh_token")
		return
	}

	// a refresh grant rotates the access token
	at, err := NewID(WithPrefix("at"))
	require.NoError(err)
	b.replyAccessToken = at

	b.refreshCount++
	// refresh responses don't echo the original auth request nonce
	b.writeTokenReply(w, "")
}

// writeTokenReply writes a token endpoint response issuing the broker's
// current tokens. The caller must hold b.mu.
func (b *TestBroker) writeTokenReply(w http.ResponseWriter, nonce string) {
	b.t.Helper()
	now := b.now()
	claims := map[string]interface{}{
		"iss": b.Addr(),
		"sub": b.replySubject,
		"nbf": float64(now.Unix()),
		"iat": float64(now.Unix()),
		"exp": float64(now.Add(b.replyExpiry).Unix()),
	}
	switch {
	case len(b.customAudiences) > 0:
		claims["aud"] = b.customAudiences
	default:
		claims["aud"] = []string{b.clientID}
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	if !b.omitAuthTime {
		claims["auth_time"] = float64(now.Unix())
	}
	for k, v := range b.customClaims {
		claims[k] = v
	}

	reply := map[string]interface{}{
		"token_type": "Bearer",
		"expires_in": int(b.replyExpiry.Seconds()),
	}
	if !b.omitAccessTokens {
		reply["access_token"] = b.replyAccessToken
	}
	if !b.omitIDTokens {
		reply["id_token"] = TestSignJWT(b.t, b.privKey, string(b.alg), claims, []byte(b.keyID))
	}
	if !b.omitRefreshTokens {
		reply["refresh_token"] = b.replyRefreshToken
	}
	b.writeJSON(w, reply)
}

// writeAuthErrorResponse writes an authorization endpoint error response,
// which is a 302 back to the redirect URI with error parameters.
func (b *TestBroker) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, redirectURL, state, errorCode, errorMessage string) {
	b.t.Helper()
	// state and error are required error response parameters
	redirectURI := redirectURL +
		"?state=" + url.QueryEscape(state) +
		"&error=" + url.QueryEscape(errorCode)
	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}
	http.Redirect(w, req, redirectURI, http.StatusFound)
}

// writeTokenErrorResponse writes a token endpoint error response, which is a
// json body with error parameters.
func (b *TestBroker) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	b.t.Helper()
	body := map[string]string{
		"error": errorCode,
	}
	if errorMessage != "" {
		body["error_description"] = errorMessage
	}
	w.WriteHeader(statusCode)
	b.writeJSON(w, body)
}

func (b *TestBroker) writeJSON(w http.ResponseWriter, out interface{}) {
	b.t.Helper()
	require := require.New(b.t)
	require.NoError(json.NewEncoder(w).Encode(out))
}

// testBrokerOptions is the set of available options for TestBroker
// functions.
type testBrokerOptions struct {
	withNoTLS bool
	withPort  int
}

// testBrokerDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func testBrokerDefaults() testBrokerOptions {
	return testBrokerOptions{}
}

// getTestBrokerOpts gets the test broker defaults and applies the opt
// overrides passed in.
func getTestBrokerOpts(opt ...Option) testBrokerOptions {
	opts := testBrokerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNoTLS provides the option to start the TestBroker without a TLS
// server.
//
// Valid for: StartTestBroker
func WithNoTLS() Option {
	return func(o interface{}) {
		if o, ok := o.(*testBrokerOptions); ok {
			o.withNoTLS = true
		}
	}
}

// WithTestPort provides the option to start the TestBroker on a specific
// local port instead of a random free one.
//
// Valid for: StartTestBroker
func WithTestPort(port int) Option {
	return func(o interface{}) {
		if o, ok := o.(*testBrokerOptions); ok {
			o.withPort = port
		}
	}
}
