// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package attrsync

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
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

type serviceOptions struct {
	withHTTPClient     *http.Client
	withLogger         hclog.Logger
	withMaxAttempts    uint
	withInitialBackoff time.Duration
}

func serviceDefaults() serviceOptions {
	return serviceOptions{
		withMaxAttempts:    DefaultMaxAttempts,
		withInitialBackoff: DefaultInitialBackoff,
	}
}

// getServiceOpts gets the service defaults and applies the opt overrides
// passed in.
func getServiceOpts(opt ...Option) serviceOptions {
	opts := serviceDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithHTTPClient provides an optional http client for the directory's
// attribute endpoint, replacing the default clean client.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*serviceOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithLogger provides an optional hclog.Logger. Without one the service is
// silent; failures are reported through returned errors either way.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*serviceOptions); ok {
			o.withLogger = l
		}
	}
}

// WithMaxAttempts provides an optional total number of delivery attempts
// for transient failures (default: DefaultMaxAttempts). Zero is ignored.
func WithMaxAttempts(n uint) Option {
	return func(o interface{}) {
		if o, ok := o.(*serviceOptions); ok {
			o.withMaxAttempts = n
		}
	}
}

// WithInitialBackoff provides an optional initial delay between attempts
// (default: DefaultInitialBackoff). The delay grows exponentially on each
// subsequent attempt.
func WithInitialBackoff(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*serviceOptions); ok {
			o.withInitialBackoff = d
		}
	}
}
