// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package login

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/meadowgate/rely/broker"
	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOrchestrator_AgainstMockOIDC drives a full login round trip against an
// independent OIDC server implementation, authorization endpoint included,
// rather than the canned broker the other tests use.
func TestOrchestrator_AgainstMockOIDC(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()

	m, err := mockoidc.Run()
	require.NoError(err)
	t.Cleanup(func() { _ = m.Shutdown() })
	m.QueueUser(&mockoidc.MockUser{
		Subject:           "sub-42",
		Email:             "jane@example.com",
		PreferredUsername: "jane",
	})

	redirectURL := "http://127.0.0.1/callback"
	config, err := broker.NewConfig(
		m.Config().Issuer,
		m.Config().ClientID,
		broker.ClientSecret(m.Config().ClientSecret),
		[]broker.Alg{broker.RS256},
		[]string{redirectURL},
		broker.WithScopes("openid", "email", "profile"),
	)
	require.NoError(err)
	client, err := broker.NewClient(config)
	require.NoError(err)
	t.Cleanup(client.Done)

	o, err := New(client, broker.NewMemStore(), redirectURL)
	require.NoError(err)
	t.Cleanup(o.Done)

	authURL, err := o.InitiateLogin(ctx)
	require.NoError(err)

	// follow the authorization redirect by hand to harvest the callback
	// parameters the browser would deliver
	browser := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := browser.Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := resp.Location()
	require.NoError(err)

	sess, err := o.CompleteLogin(ctx, url.Values{
		"state": {loc.Query().Get("state")},
		"code":  {loc.Query().Get("code")},
	})
	require.NoError(err)
	assert.Equal(StateAuthenticated, sess.State)
	require.NotNil(sess.TokenSet)
	assert.True(sess.TokenSet.Valid())
	assert.Equal("sub-42", sess.Claims["sub"])
	assert.Equal("jane@example.com", sess.Claims["email"])

	sess, err = o.Refresh(ctx)
	require.NoError(err)
	assert.Equal(StateAuthenticated, sess.State)
	require.NotNil(sess.TokenSet)
	assert.NotEmpty(sess.TokenSet.AccessToken())
}
