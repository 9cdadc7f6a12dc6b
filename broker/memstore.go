// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultRetention is how long a MemStore keeps an entry past its Request's
// expiration. A consume within the retention window reports
// ErrExpiredRequest; after the window the entry is evicted and a consume
// reports ErrRequestNotFound.
const DefaultRetention = 1 * time.Minute

// memStoreCleanupInterval bounds how often the underlying cache's janitor
// evicts expired entries.
const memStoreCleanupInterval = 1 * time.Minute

// MemStore is an in-memory RequestStore backed by an expiring cache, so
// abandoned login requests don't accumulate. It's safe for concurrent use.
type MemStore struct {
	// mu makes Consume's get-and-delete atomic; the cache itself is only
	// per-operation safe
	mu sync.Mutex

	cache     *gocache.Cache
	retention time.Duration
}

var _ RequestStore = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
//
// Supported options: WithRetention
func NewMemStore(opt ...Option) *MemStore {
	opts := getMemStoreOpts(opt...)
	return &MemStore{
		cache:     gocache.New(gocache.NoExpiration, memStoreCleanupInterval),
		retention: opts.withRetention,
	}
}

// Store implements the RequestStore.Store() interface function.
func (s *MemStore) Store(ctx context.Context, r Request) error {
	const op = "broker.(MemStore).Store"
	if r == nil {
		return fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.State() == "" {
		return fmt.Errorf("%s: request state is empty: %w", op, ErrInvalidParameter)
	}
	ttl := time.Until(r.Expiration()) + s.retention
	if ttl <= 0 {
		// gocache treats a zero duration as "use the cache default"
		ttl = time.Nanosecond
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(r.State(), r, ttl)
	return nil
}

// Consume implements the RequestStore.Consume() interface function. The
// returned Request's State() always equals the state used to look it up.
func (s *MemStore) Consume(ctx context.Context, state string) (Request, error) {
	const op = "broker.(MemStore).Consume"
	if state == "" {
		return nil, fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(state)
	if !ok {
		return nil, fmt.Errorf("%s: no pending login request for state: %w", op, ErrRequestNotFound)
	}
	s.cache.Delete(state)
	r, ok := v.(Request)
	if !ok {
		return nil, fmt.Errorf("%s: cached value is not a request: %w", op, ErrInvalidParameter)
	}
	if r.IsExpired() {
		return nil, fmt.Errorf("%s: pending login request is expired: %w", op, ErrExpiredRequest)
	}
	return r, nil
}

// Delete implements the RequestStore.Delete() interface function.
func (s *MemStore) Delete(ctx context.Context, state string) error {
	const op = "broker.(MemStore).Delete"
	if state == "" {
		return fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(state)
	return nil
}

// memStoreOptions is the set of available options for MemStore functions
type memStoreOptions struct {
	withRetention time.Duration
}

// memStoreDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func memStoreDefaults() memStoreOptions {
	return memStoreOptions{
		withRetention: DefaultRetention,
	}
}

// getMemStoreOpts gets the defaults and applies the opt overrides passed in
func getMemStoreOpts(opt ...Option) memStoreOptions {
	opts := memStoreDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithRetention provides an optional retention window during which a
// MemStore keeps expired requests so they can still be reported as expired
// rather than unknown.
func WithRetention(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*memStoreOptions); ok {
			o.withRetention = d
		}
	}
}
