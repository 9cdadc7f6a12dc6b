// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package broker

import (
	"fmt"

	"github.com/meadowgate/rely/broker/internal/base62"
)

// DefaultIDLength is the default length for generated IDs. 24 base62
// characters carry a bit over 140 bits of entropy, which keeps generated
// request states and nonces unguessable.
const DefaultIDLength = 24

// NewID generates an ID with an optional prefix. The ID generated is
// suitable for a Request's State or Nonce.
func NewID(opt ...Option) (string, error) {
	const op = "broker.NewID"
	opts := getIDOpts(opt...)
	id, err := base62.Random(DefaultIDLength)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, err)
	}
	switch {
	case opts.withPrefix != "":
		return fmt.Sprintf("%s_%s", opts.withPrefix, id), nil
	default:
		return id, nil
	}
}

// idOptions is the set of available options for NewID
type idOptions struct {
	withPrefix string
}

// idDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func idDefaults() idOptions {
	return idOptions{}
}

// getIDOpts gets the defaults and applies the opt overrides passed in
func getIDOpts(opt ...Option) idOptions {
	opts := idDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPrefix provides an optional prefix for a new ID. When provided, the ID
// will have the format: prefix_ID
func WithPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*idOptions); ok {
			o.withPrefix = prefix
		}
	}
}
