// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package attrsync writes identity-linking attributes into the broker's
// user profile store after a login has produced a valid access token.
//
// The write is best-effort enrichment, not a login gate: the caller decides
// what a failure means. Failures are classified (see SyncError) so callers
// can tell an expired token from a misconfigured attribute from a directory
// outage, and only the last of those is retried.
package attrsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-uuid"
)

const (
	// DefaultMaxAttempts is the default total number of delivery attempts,
	// including the first.
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the default delay before the second attempt.
	DefaultInitialBackoff = 500 * time.Millisecond
)

// attrNamePattern constrains attribute names to the directory's custom
// attribute namespace.
const attrNamePattern = `^custom:[A-Za-z_][A-Za-z0-9_]*$`

var attrNameRE = regexp.MustCompile(attrNamePattern)

// updateRequest is the wire body of an attribute update.
type updateRequest struct {
	Attributes map[string]string `json:"attributes"`
}

// Service delivers attribute updates to a directory's attribute endpoint.
// It is safe for concurrent use, though callers typically serialize syncs
// per session.
type Service struct {
	endpoint       string
	client         *http.Client
	logger         hclog.Logger
	maxAttempts    uint
	initialBackoff time.Duration
}

// New creates a Service for the given attribute endpoint URL.
//
// Supported options: WithHTTPClient, WithLogger, WithMaxAttempts,
// WithInitialBackoff.
func New(endpoint string, opt ...Option) (*Service, error) {
	const op = "attrsync.New"
	if endpoint == "" {
		return nil, fmt.Errorf("%s: missing endpoint: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s: endpoint %s is not a valid URL (%s): %w", op, endpoint, err, ErrInvalidParameter)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: endpoint %s schema is not http or https: %w", op, endpoint, ErrInvalidParameter)
	}
	opts := getServiceOpts(opt...)
	if opts.withMaxAttempts == 0 {
		opts.withMaxAttempts = DefaultMaxAttempts
	}
	if opts.withInitialBackoff <= 0 {
		opts.withInitialBackoff = DefaultInitialBackoff
	}
	s := &Service{
		endpoint:       endpoint,
		client:         opts.withHTTPClient,
		logger:         opts.withLogger,
		maxAttempts:    opts.withMaxAttempts,
		initialBackoff: opts.withInitialBackoff,
	}
	if s.client == nil {
		s.client = cleanhttp.DefaultClient()
	}
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	return s, nil
}

// Sync delivers the attributes in one authenticated update call,
// retrying transient failures with exponential backoff until ctx is
// canceled or the attempts are exhausted. At most one request is in flight
// at a time.
//
// Attribute names must match custom:<identifier>; violations are
// aggregated into a single *SyncError of KindInvalidAttribute and no
// request is made. Delivery failures are returned as a *SyncError
// classifying whether a retry can help (see Kind). The access token must
// be valid for the life of the call: the service never refreshes it, and
// an expired token surfaces as KindUnauthorized.
func (s *Service) Sync(ctx context.Context, accessToken string, attributes map[string]string) error {
	const op = "attrsync.(Service).Sync"
	switch {
	case accessToken == "":
		return fmt.Errorf("%s: missing access token: %w", op, ErrInvalidParameter)
	case len(attributes) == 0:
		return fmt.Errorf("%s: missing attributes: %w", op, ErrInvalidParameter)
	}
	if err := validAttributeNames(attributes); err != nil {
		return err
	}
	body, err := json.Marshal(updateRequest{Attributes: attributes})
	if err != nil {
		return fmt.Errorf("%s: unable to encode attributes: %w", op, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialBackoff
	bo.MaxInterval = 60 * s.initialBackoff
	bo.Reset()

	attempts := 0
	operation := func() (struct{}, error) {
		attempts++
		err := s.attempt(ctx, accessToken, body)
		if err == nil {
			return struct{}{}, nil
		}
		var syncErr *SyncError
		if errors.As(err, &syncErr) && syncErr.Retriable() {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}
	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.maxAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			s.logger.Debug("retrying attribute sync", "delay", d, "error", err)
		}),
	)
	if err != nil {
		var syncErr *SyncError
		if errors.As(err, &syncErr) {
			return syncErr
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Debug("attribute sync delivered", "attempts", attempts)
	return nil
}

// attempt makes a single authenticated update call. Every attempt carries
// a fresh X-Request-Id so the directory's logs can tell retries apart.
func (s *Service) attempt(ctx context.Context, accessToken string, body []byte) error {
	const op = "attrsync.(Service).attempt"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: unable to create update request: %w", op, err)
	}
	requestID, err := uuid.GenerateUUID()
	if err != nil {
		return fmt.Errorf("%s: unable to generate a request id: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := s.client.Do(req)
	if err != nil {
		return &SyncError{
			Kind: KindTransient,
			err:  fmt.Errorf("%s: %w", op, err),
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return classifyReply(resp.StatusCode, reply)
}

// classifyReply maps a non-2xx attribute endpoint response to a SyncError
// kind: rejected credentials are unauthorized, rejected payloads are
// invalid attributes and everything else is transient.
func classifyReply(status int, reply []byte) *SyncError {
	kind := KindTransient
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = KindInvalidAttribute
	}
	msg := strings.TrimSpace(string(reply))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &SyncError{
		Kind:       kind,
		StatusCode: status,
		err:        fmt.Errorf("attribute endpoint returned %d: %s", status, msg),
	}
}

// validAttributeNames checks every name against attrNamePattern, reporting
// all violations at once.
func validAttributeNames(attributes map[string]string) error {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	var violations *multierror.Error
	for _, name := range names {
		if !attrNameRE.MatchString(name) {
			violations = multierror.Append(violations, fmt.Errorf("attribute name %q does not match %s", name, attrNamePattern))
		}
	}
	if violations != nil {
		return &SyncError{
			Kind: KindInvalidAttribute,
			err:  violations.ErrorOrNil(),
		}
	}
	return nil
}
