// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDToken_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	tk := IDToken("super secret token")
	assert.Equal(RedactedIDToken, tk.String())
	assert.Equal(RedactedIDToken, IDToken("").String())
}

func TestIDToken_MarshalJSON(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	want := `{"id_token":"[REDACTED: id_token]"}`
	tk := struct {
		IDToken IDToken `json:"id_token"`
	}{
		IDToken: IDToken("super secret token"),
	}
	got, err := json.Marshal(tk)
	require.NoError(err)
	assert.Equal(want, string(got))
}

func TestIDToken_Claims(t *testing.T) {
	t.Parallel()
	_, priv := TestGenerateKeys(t)
	testJWT := testDefaultJWT(t, priv, 1*time.Minute, "test-nonce", map[string]interface{}{
		"name": "Alice Example",
	})

	t.Run("all-claims", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var claims map[string]interface{}
		require.NoError(IDToken(testJWT).Claims(&claims))
		assert.Equal("https://example.com/", claims["iss"])
		assert.Equal("alice@example.com", claims["sub"])
		assert.Equal("test-nonce", claims["nonce"])
		assert.Equal("Alice Example", claims["name"])
	})
	t.Run("typed-claims", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var claims struct {
			Sub  string `json:"sub"`
			Name string `json:"name"`
		}
		require.NoError(IDToken(testJWT).Claims(&claims))
		assert.Equal("alice@example.com", claims.Sub)
		assert.Equal("Alice Example", claims.Name)
	})
	t.Run("empty-token", func(t *testing.T) {
		assert := assert.New(t)
		var claims map[string]interface{}
		err := IDToken("").Claims(&claims)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("nil-claims", func(t *testing.T) {
		assert := assert.New(t)
		err := IDToken(testJWT).Claims(nil)
		assert.ErrorIs(err, ErrNilParameter)
	})
}

func TestUnmarshalClaims(t *testing.T) {
	t.Parallel()
	t.Run("not-a-jwt", func(t *testing.T) {
		assert := assert.New(t)
		var claims map[string]interface{}
		err := UnmarshalClaims("not-a-jwt", &claims)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("nil-claims", func(t *testing.T) {
		assert := assert.New(t)
		err := UnmarshalClaims("not-a-jwt", nil)
		assert.ErrorIs(err, ErrNilParameter)
	})
}
