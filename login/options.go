// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package login

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/meadowgate/rely/attrsync"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default
// options and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// AttributesFunc derives the attribute payload for the post-login sync
// from the session's verified claims. Names must match the directory's
// custom:<identifier> namespace. The claims are the caller's copy; the
// func may read them freely but gains nothing from mutating them.
type AttributesFunc func(claims map[string]interface{}) (map[string]string, error)

type orchestratorOptions struct {
	withLogger       hclog.Logger
	withRequestTTL   time.Duration
	withProviderHint string
	withPKCE         bool
	withSyncService  *attrsync.Service
	withAttributesFn AttributesFunc
}

func orchestratorDefaults() orchestratorOptions {
	return orchestratorOptions{
		withRequestTTL: DefaultRequestTTL,
	}
}

// getOrchestratorOpts gets the orchestrator defaults and applies the opt
// overrides passed in.
func getOrchestratorOpts(opt ...Option) orchestratorOptions {
	opts := orchestratorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional hclog.Logger. Without one the
// orchestrator is silent; every failure is still recorded and returned.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withLogger = l
		}
	}
}

// WithRequestTTL provides an optional lifetime for pending login requests
// (default: DefaultRequestTTL). The browser round trip must finish within
// it; keep it to minutes, not hours, to bound the replay window of a
// leaked callback URL.
func WithRequestTTL(ttl time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withRequestTTL = ttl
		}
	}
}

// WithProviderHint provides an optional identity-provider selector passed
// to the broker on every login, so the user lands on the federated
// directory's login page without an intermediate chooser. A per-login
// broker.WithProviderHint passed to InitiateLogin overrides it.
func WithProviderHint(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withProviderHint = name
		}
	}
}

// WithPKCE requests a fresh PKCE code verifier for every login.
func WithPKCE() Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withPKCE = true
		}
	}
}

// WithAttributeSync provides an attribute sync service and the func
// deriving its payload from the session's verified claims. After every
// successful login the orchestrator runs the sync asynchronously; its
// failure attaches a SyncWarning to the session and never reverts a
// completed login.
func WithAttributeSync(s *attrsync.Service, f AttributesFunc) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withSyncService = s
			o.withAttributesFn = f
		}
	}
}
