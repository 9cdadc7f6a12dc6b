// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package base62 provides utilities for working with base62 strings.
// base62 strings will only contain characters: 0-9, a-z, A-Z
package base62

import (
	"crypto/rand"
	"io"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const csLen = byte(len(charset))

// Random generates a random string using base-62 characters. Resulting
// entropy is ~5.95 bits per character.
func Random(length int) (string, error) {
	return RandomWithReader(length, rand.Reader)
}

// RandomWithReader generates a random string using base-62 characters and a
// given reader of random bytes.
func RandomWithReader(length int, reader io.Reader) (string, error) {
	if length == 0 {
		return "", nil
	}
	output := make([]byte, 0, length)

	// request a bit more than length to reduce the chance of needing more
	// than one batch of random bytes
	batchSize := length + length/4

	for {
		buf := make([]byte, batchSize)
		if _, err := io.ReadFull(reader, buf); err != nil {
			return "", err
		}

		for _, b := range buf {
			// values above the largest multiple of 62 that fits in a byte
			// would skew the distribution, so they're skipped
			if b < (csLen * 4) {
				output = append(output, charset[b%csLen])

				if len(output) == length {
					return string(output), nil
				}
			}
		}
	}
}
