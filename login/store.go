// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package login

import (
	"sync"

	"github.com/meadowgate/rely/broker"
)

// TokenStore holds the current session's token set and verified profile
// claims. The set is immutable once stored: it is replaced wholesale on
// refresh or re-login and cleared on logout, never partially mutated.
// TokenStore is safe for concurrent use.
type TokenStore struct {
	mu     sync.RWMutex
	tokens broker.Token
	claims map[string]interface{}
}

// NewTokenStore creates an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Set replaces the stored token set and claims.
func (s *TokenStore) Set(t broker.Token, claims map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	s.claims = copyClaims(claims)
}

// Tokens returns the stored token set, nil when the store is empty.
func (s *TokenStore) Tokens() broker.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Claims returns a copy of the stored claims, nil when the store is
// empty.
func (s *TokenStore) Claims() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyClaims(s.claims)
}

// Clear removes the stored token set and claims.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = nil
	s.claims = nil
}

func copyClaims(claims map[string]interface{}) map[string]interface{} {
	if claims == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(claims))
	for k, v := range claims {
		cp[k] = v
	}
	return cp
}
