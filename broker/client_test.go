// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// testNewClient assembles a Client against the TestBroker with its creds,
// callback URL and CA pre-wired.
func testNewClient(t *testing.T, tb *TestBroker, opt ...Option) *Client {
	t.Helper()
	require := require.New(t)
	clientID, clientSecret := tb.ClientCreds()
	allOpts := append([]Option{WithProviderCA(tb.CACert())}, opt...)
	config, err := NewConfig(
		tb.Addr(),
		clientID,
		ClientSecret(clientSecret),
		[]Alg{ES256},
		[]string{tb.Addr() + "/callback"},
		allOpts...,
	)
	require.NoError(err)
	c, err := NewClient(config)
	require.NoError(err)
	t.Cleanup(c.Done)
	return c
}

// testRequestOverride lets a test present a Request with fields NewRequest
// would refuse to construct.
type testRequestOverride struct {
	*Req
	state string
	nonce string
}

func (r *testRequestOverride) State() string { return r.state }
func (r *testRequestOverride) Nonce() string { return r.nonce }

func TestNewClient(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		require := require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		require.NotNil(c)
	})
	t.Run("nil-config", func(t *testing.T) {
		assert := assert.New(t)
		c, err := NewClient(nil)
		assert.Nil(c)
		assert.ErrorIs(err, ErrNilParameter)
	})
	t.Run("invalid-config", func(t *testing.T) {
		assert := assert.New(t)
		c, err := NewClient(&Config{})
		assert.Nil(c)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("discovery-failure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		clientID, clientSecret := tb.ClientCreds()
		config, err := NewConfig(
			tb.Addr()+"/not-the-issuer",
			clientID,
			ClientSecret(clientSecret),
			[]Alg{ES256},
			[]string{tb.Addr() + "/callback"},
			WithProviderCA(tb.CACert()),
		)
		require.NoError(err)
		c, err := NewClient(config)
		require.Error(err)
		assert.Nil(c)
		assert.Contains(err.Error(), "unable to discover broker issuer")
	})
	t.Run("done-is-idempotent", func(t *testing.T) {
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		c.Done()
		c.Done()
		var nilClient *Client
		nilClient.Done()
	})
}

func TestClient_AuthURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tb := StartTestBroker(t)
	c := testNewClient(t, tb)
	testCallback := tb.Addr() + "/callback"
	clientID, _ := tb.ClientCreds()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(5*time.Minute, testCallback)
		require.NoError(err)
		authURL, err := c.AuthURL(ctx, r)
		require.NoError(err)

		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Equal(testAuthorizePath, u.Path)
		q := u.Query()
		assert.Equal("code", q.Get("response_type"))
		assert.Equal(clientID, q.Get("client_id"))
		assert.Equal(testCallback, q.Get("redirect_uri"))
		assert.Equal(r.State(), q.Get("state"))
		assert.Equal(r.Nonce(), q.Get("nonce"))
		assert.Contains(q.Get("scope"), "openid")
	})
	t.Run("scopes-are-deduplicated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(5*time.Minute, testCallback, WithScopes("openid", "profile", "profile"))
		require.NoError(err)
		authURL, err := c.AuthURL(ctx, r)
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Equal("openid profile", u.Query().Get("scope"))
	})
	t.Run("with-pkce", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		v, err := NewCodeVerifier()
		require.NoError(err)
		r, err := NewRequest(5*time.Minute, testCallback, WithPKCE(v))
		require.NoError(err)
		authURL, err := c.AuthURL(ctx, r)
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Equal(v.Challenge(), u.Query().Get("code_challenge"))
		assert.Equal(string(S256), u.Query().Get("code_challenge_method"))
	})
	t.Run("with-provider-hint", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(5*time.Minute, testCallback, WithProviderHint("corp-directory"))
		require.NoError(err)
		authURL, err := c.AuthURL(ctx, r)
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Equal("corp-directory", u.Query().Get("identity_provider"))
	})
	t.Run("with-ui-locales", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(5*time.Minute, testCallback, WithUILocales(language.CanadianFrench, language.English))
		require.NoError(err)
		authURL, err := c.AuthURL(ctx, r)
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Equal("fr-CA en", u.Query().Get("ui_locales"))
	})
	t.Run("with-additional-params", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(5*time.Minute, testCallback, WithAdditionalParams(map[string]string{
			"login_hint": "alice@example.com",
			"prompt":     "select_account",
		}))
		require.NoError(err)
		authURL, err := c.AuthURL(ctx, r)
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		q := u.Query()
		assert.Equal("alice@example.com", q.Get("login_hint"))
		assert.Equal("select_account", q.Get("prompt"))
		assert.Equal(r.State(), q.Get("state"))
		assert.Equal(r.Nonce(), q.Get("nonce"))
	})
	t.Run("reserved-additional-param", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(5*time.Minute, testCallback, WithAdditionalParams(map[string]string{
			"state": "forged",
		}))
		require.NoError(err)
		_, err = c.AuthURL(ctx, r)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("redirect-url-not-allowed", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(5*time.Minute, "https://attacker.example.com/callback")
		require.NoError(err)
		_, err = c.AuthURL(ctx, r)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("nil-request", func(t *testing.T) {
		assert := assert.New(t)
		_, err := c.AuthURL(ctx, nil)
		assert.ErrorIs(err, ErrNilParameter)
	})
	t.Run("empty-state", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		base, err := NewRequest(5*time.Minute, testCallback)
		require.NoError(err)
		r := &testRequestOverride{Req: base, state: "", nonce: base.Nonce()}
		_, err = c.AuthURL(ctx, r)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("state-equals-nonce", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		base, err := NewRequest(5*time.Minute, testCallback)
		require.NoError(err)
		r := &testRequestOverride{Req: base, state: "same", nonce: "same"}
		_, err = c.AuthURL(ctx, r)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestClient_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		tb.SetExpectedAuthNonce(r.Nonce())

		tk, err := c.Exchange(ctx, r, r.State(), "test-code")
		require.NoError(err)
		require.NotNil(tk)
		assert.NotEmpty(string(tk.IDToken()))
		assert.Equal(AccessToken(tb.ReplyAccessToken()), tk.AccessToken())
		assert.Equal(RefreshToken(tb.ReplyRefreshToken()), tk.RefreshToken())
		assert.True(tk.Valid())
		assert.WithinDuration(time.Now().Add(1*time.Hour), tk.Expiry(), 1*time.Minute)
		assert.Equal(1, tb.ExchangeCount())
	})
	t.Run("response-state-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		_, err = c.Exchange(ctx, r, "some-other-state", "test-code")
		assert.ErrorIs(err, ErrResponseStateInvalid)
		// no network call is made with a mismatched state
		assert.Equal(0, tb.ExchangeCount())
	})
	t.Run("expired-request", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")

		r, err := NewRequest(1*time.Nanosecond, tb.Addr()+"/callback")
		require.NoError(err)
		_, err = c.Exchange(ctx, r, r.State(), "test-code")
		assert.ErrorIs(err, ErrExpiredRequest)
		assert.Equal(0, tb.ExchangeCount())
	})
	t.Run("empty-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		_, err = c.Exchange(ctx, r, r.State(), "")
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("nil-request", func(t *testing.T) {
		assert := assert.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		_, err := c.Exchange(ctx, nil, "state", "code")
		assert.ErrorIs(err, ErrNilParameter)
	})
	t.Run("broker-rejects-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		_, err = c.Exchange(ctx, r, r.State(), "wrong-code")
		require.Error(err)
		var exchangeErr *ExchangeError
		require.ErrorAs(err, &exchangeErr)
		assert.Equal("invalid_grant", exchangeErr.Code)
		assert.Contains(exchangeErr.Description, "unexpected auth code")
	})
	t.Run("missing-id-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")
		tb.SetOmitIDTokens(true)

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		_, err = c.Exchange(ctx, r, r.State(), "test-code")
		assert.ErrorIs(err, ErrMissingIDToken)
	})
	t.Run("nonce-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")
		tb.SetExpectedAuthNonce("a-nonce-from-some-other-flow")

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		_, err = c.Exchange(ctx, r, r.State(), "test-code")
		assert.ErrorIs(err, ErrInvalidNonce)
	})
	t.Run("invalid-signature-keys", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")
		tb.SetInvalidJWKs(true)

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		tb.SetExpectedAuthNonce(r.Nonce())
		_, err = c.Exchange(ctx, r, r.State(), "test-code")
		assert.ErrorIs(err, ErrIDTokenVerification)
	})
	t.Run("custom-audience-accepted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		tb.SetCustomAudiences("directory-api")
		c := testNewClient(t, tb, WithAudiences("directory-api"))
		tb.SetExpectedAuthCode("test-code")

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		tb.SetExpectedAuthNonce(r.Nonce())
		tk, err := c.Exchange(ctx, r, r.State(), "test-code")
		require.NoError(err)
		assert.NotNil(tk)
	})
	t.Run("custom-audience-rejected", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		tb.SetCustomAudiences("some-other-api")
		c := testNewClient(t, tb, WithAudiences("directory-api"))
		tb.SetExpectedAuthCode("test-code")

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		tb.SetExpectedAuthNonce(r.Nonce())
		_, err = c.Exchange(ctx, r, r.State(), "test-code")
		assert.ErrorIs(err, ErrInvalidAudience)
	})
	t.Run("with-pkce", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")

		v, err := NewCodeVerifier()
		require.NoError(err)
		tb.SetExpectedCodeVerifier(v)

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback", WithPKCE(v))
		require.NoError(err)
		tb.SetExpectedAuthNonce(r.Nonce())
		tk, err := c.Exchange(ctx, r, r.State(), "test-code")
		require.NoError(err)
		assert.NotNil(tk)
	})
	t.Run("pkce-verifier-mismatch", func(t *testing.T) {
		require := require.New(t)
		assert := assert.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")

		expected, err := NewCodeVerifier()
		require.NoError(err)
		tb.SetExpectedCodeVerifier(expected)
		other, err := NewCodeVerifier()
		require.NoError(err)

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback", WithPKCE(other))
		require.NoError(err)
		tb.SetExpectedAuthNonce(r.Nonce())
		_, err = c.Exchange(ctx, r, r.State(), "test-code")
		require.Error(err)
		var exchangeErr *ExchangeError
		require.ErrorAs(err, &exchangeErr)
		assert.Equal("invalid_grant", exchangeErr.Code)
	})
}

func TestClient_VerifyIDToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tb := StartTestBroker(t)
	c := testNewClient(t, tb)
	clientID, _ := tb.ClientCreds()
	priv, _, alg, keyID := tb.SigningKeys()

	testClaims := func(overrides map[string]interface{}) map[string]interface{} {
		now := time.Now()
		claims := map[string]interface{}{
			"iss":   tb.Addr(),
			"sub":   "alice@example.com",
			"aud":   []string{clientID},
			"nbf":   float64(now.Unix()),
			"iat":   float64(now.Unix()),
			"exp":   float64(now.Add(5 * time.Minute).Unix()),
			"nonce": "test-nonce",
		}
		for k, v := range overrides {
			claims[k] = v
		}
		return claims
	}

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := TestSignJWT(t, priv, string(alg), testClaims(nil), []byte(keyID))
		claims, err := c.VerifyIDToken(ctx, IDToken(raw), "test-nonce")
		require.NoError(err)
		assert.Equal("alice@example.com", claims["sub"])
	})
	t.Run("wrong-nonce", func(t *testing.T) {
		assert := assert.New(t)
		raw := TestSignJWT(t, priv, string(alg), testClaims(nil), []byte(keyID))
		_, err := c.VerifyIDToken(ctx, IDToken(raw), "some-other-nonce")
		assert.ErrorIs(err, ErrInvalidNonce)
	})
	t.Run("wrong-issuer", func(t *testing.T) {
		assert := assert.New(t)
		raw := TestSignJWT(t, priv, string(alg), testClaims(map[string]interface{}{
			"iss": "https://some-other-issuer.example.com",
		}), []byte(keyID))
		_, err := c.VerifyIDToken(ctx, IDToken(raw), "test-nonce")
		assert.ErrorIs(err, ErrIDTokenVerification)
	})
	t.Run("expired-token", func(t *testing.T) {
		assert := assert.New(t)
		raw := TestSignJWT(t, priv, string(alg), testClaims(map[string]interface{}{
			"exp": float64(time.Now().Add(-5 * time.Minute).Unix()),
		}), []byte(keyID))
		_, err := c.VerifyIDToken(ctx, IDToken(raw), "test-nonce")
		assert.ErrorIs(err, ErrIDTokenVerification)
	})
	t.Run("wrong-audience", func(t *testing.T) {
		assert := assert.New(t)
		raw := TestSignJWT(t, priv, string(alg), testClaims(map[string]interface{}{
			"aud": []string{"some-other-client"},
		}), []byte(keyID))
		_, err := c.VerifyIDToken(ctx, IDToken(raw), "test-nonce")
		assert.ErrorIs(err, ErrIDTokenVerification)
	})
	t.Run("empty-token", func(t *testing.T) {
		assert := assert.New(t)
		_, err := c.VerifyIDToken(ctx, IDToken(""), "test-nonce")
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("empty-nonce", func(t *testing.T) {
		assert := assert.New(t)
		raw := TestSignJWT(t, priv, string(alg), testClaims(nil), []byte(keyID))
		_, err := c.VerifyIDToken(ctx, IDToken(raw), "")
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestClient_UserInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	testExchange := func(t *testing.T, tb *TestBroker, c *Client) *Tk {
		t.Helper()
		require := require.New(t)
		tb.SetExpectedAuthCode("test-code")
		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		tb.SetExpectedAuthNonce(r.Nonce())
		tk, err := c.Exchange(ctx, r, r.State(), "test-code")
		require.NoError(err)
		return tk
	}

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tk := testExchange(t, tb, c)

		var claims map[string]interface{}
		err := c.UserInfo(ctx, tk.StaticTokenSource(), "alice@example.com", &claims)
		require.NoError(err)
		assert.Equal("alice@example.com", claims["sub"])
		assert.Equal("Alice Example", claims["name"])
		assert.Equal(1, tb.UserInfoCount())
	})
	t.Run("subject-mismatch", func(t *testing.T) {
		assert := assert.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tk := testExchange(t, tb, c)

		var claims map[string]interface{}
		err := c.UserInfo(ctx, tk.StaticTokenSource(), "mallory@example.com", &claims)
		assert.ErrorIs(err, ErrInvalidSubject)
	})
	t.Run("endpoint-disabled", func(t *testing.T) {
		assert := assert.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tk := testExchange(t, tb, c)
		tb.SetDisableUserInfo(true)

		var claims map[string]interface{}
		err := c.UserInfo(ctx, tk.StaticTokenSource(), "alice@example.com", &claims)
		assert.Error(err)
	})
	t.Run("nil-token-source", func(t *testing.T) {
		assert := assert.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		var claims map[string]interface{}
		err := c.UserInfo(ctx, nil, "alice@example.com", &claims)
		assert.ErrorIs(err, ErrNilParameter)
	})
	t.Run("nil-claims", func(t *testing.T) {
		assert := assert.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		err := c.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "at"}), "alice@example.com", nil)
		assert.ErrorIs(err, ErrNilParameter)
	})
}

func TestClient_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		tb.SetExpectedAuthCode("test-code")

		r, err := NewRequest(5*time.Minute, tb.Addr()+"/callback")
		require.NoError(err)
		tb.SetExpectedAuthNonce(r.Nonce())
		tk, err := c.Exchange(ctx, r, r.State(), "test-code")
		require.NoError(err)
		oldAccessToken := tk.AccessToken()

		newTk, err := c.Refresh(ctx, tk)
		require.NoError(err)
		require.NotNil(newTk)
		// the whole set is reissued
		assert.NotEqual(oldAccessToken, newTk.AccessToken())
		assert.Equal(AccessToken(tb.ReplyAccessToken()), newTk.AccessToken())
		assert.NotEmpty(string(newTk.IDToken()))
		assert.True(newTk.Valid())
		assert.Equal(1, tb.RefreshCount())
	})
	t.Run("missing-refresh-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		_, priv := TestGenerateKeys(t)
		testJWT := testDefaultJWT(t, priv, 5*time.Minute, "test-nonce", nil)
		tk, err := NewToken(IDToken(testJWT), &oauth2.Token{AccessToken: "at"})
		require.NoError(err)

		_, err = c.Refresh(ctx, tk)
		assert.ErrorIs(err, ErrMissingRefreshToken)
	})
	t.Run("broker-rejects-refresh-token", func(t *testing.T) {
		require := require.New(t)
		assert := assert.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		_, priv := TestGenerateKeys(t)
		testJWT := testDefaultJWT(t, priv, 5*time.Minute, "test-nonce", nil)
		tk, err := NewToken(IDToken(testJWT), &oauth2.Token{
			AccessToken:  "at",
			RefreshToken: "not-a-known-refresh-token",
		})
		require.NoError(err)

		_, err = c.Refresh(ctx, tk)
		require.Error(err)
		var exchangeErr *ExchangeError
		require.ErrorAs(err, &exchangeErr)
		assert.Equal("invalid_grant", exchangeErr.Code)
	})
	t.Run("nil-token", func(t *testing.T) {
		assert := assert.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		_, err := c.Refresh(ctx, nil)
		assert.ErrorIs(err, ErrNilParameter)
	})
}

func TestClient_LogoutURL(t *testing.T) {
	t.Parallel()

	t.Run("from-discovery", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb, WithPostLogoutRedirectURL("https://app.example.com/loggedout"))
		clientID, _ := tb.ClientCreds()

		logoutURL, err := c.LogoutURL(IDToken("raw-id-token"))
		require.NoError(err)
		u, err := url.Parse(logoutURL)
		require.NoError(err)
		assert.Equal(testLogoutPath, u.Path)
		q := u.Query()
		assert.Equal(clientID, q.Get("client_id"))
		assert.Equal("https://app.example.com/loggedout", q.Get("post_logout_redirect_uri"))
		assert.Equal("raw-id-token", q.Get("id_token_hint"))
	})
	t.Run("without-id-token-hint", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		c := testNewClient(t, tb)
		logoutURL, err := c.LogoutURL("")
		require.NoError(err)
		u, err := url.Parse(logoutURL)
		require.NoError(err)
		assert.False(u.Query().Has("id_token_hint"))
	})
	t.Run("not-supported", func(t *testing.T) {
		assert := assert.New(t)
		tb := StartTestBroker(t)
		tb.SetDisableEndSession(true)
		c := testNewClient(t, tb)
		_, err := c.LogoutURL(IDToken("raw-id-token"))
		assert.ErrorIs(err, ErrEndSessionNotSupported)
	})
	t.Run("config-override", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tb := StartTestBroker(t)
		tb.SetDisableEndSession(true)
		c := testNewClient(t, tb, WithEndSessionEndpoint("https://broker.example.com/custom-logout"))

		logoutURL, err := c.LogoutURL(IDToken("raw-id-token"))
		require.NoError(err)
		u, err := url.Parse(logoutURL)
		require.NoError(err)
		assert.Equal("broker.example.com", u.Host)
		assert.Equal("/custom-logout", u.Path)
	})
}
