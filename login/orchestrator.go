// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

package login

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/meadowgate/rely/attrsync"
	"github.com/meadowgate/rely/broker"
	"github.com/meadowgate/rely/broker/callback"
)

// DefaultRequestTTL bounds the browser round trip between InitiateLogin
// and the callback that completes it.
const DefaultRequestTTL = 10 * time.Minute

// Orchestrator drives the login state machine for one logical session:
// initiate, complete the broker's callback, refresh, logout. All
// transitions are serialized; Session returns consistent snapshots at any
// time. An Orchestrator is safe for concurrent use.
type Orchestrator struct {
	client   *broker.Client
	requests broker.RequestStore
	tokens   *TokenStore

	redirectURL  string
	requestTTL   time.Duration
	providerHint string
	usePKCE      bool
	syncService  *attrsync.Service
	attributesFn AttributesFunc
	logger       hclog.Logger

	mu           sync.Mutex
	state        State
	pendingState string
	lastError    *ErrorInfo
	syncWarning  *SyncWarning

	// loginGen increments whenever the session's identity changes (a
	// completed login, a logout), so work started for an earlier session
	// can tell it's stale.
	loginGen uint64

	subscribers map[uint64]func(Transition)
	nextSubID   uint64

	syncWG              sync.WaitGroup
	backgroundCtx       context.Context
	backgroundCtxCancel context.CancelFunc
}

// New creates an Orchestrator completing logins through the given broker
// client, persisting pending requests in the given store and using
// redirectURL as the flow's callback URL (it must be one of the client's
// allowed redirect URLs).
//
// Supported options: WithLogger, WithRequestTTL, WithProviderHint,
// WithPKCE, WithAttributeSync.
func New(client *broker.Client, requests broker.RequestStore, redirectURL string, opt ...Option) (*Orchestrator, error) {
	const op = "login.New"
	switch {
	case client == nil:
		return nil, fmt.Errorf("%s: broker client is nil: %w", op, ErrNilParameter)
	case requests == nil:
		return nil, fmt.Errorf("%s: request store is nil: %w", op, ErrNilParameter)
	case redirectURL == "":
		return nil, fmt.Errorf("%s: missing redirect URL: %w", op, ErrInvalidParameter)
	}
	opts := getOrchestratorOpts(opt...)
	if opts.withRequestTTL <= 0 {
		opts.withRequestTTL = DefaultRequestTTL
	}
	if (opts.withSyncService == nil) != (opts.withAttributesFn == nil) {
		return nil, fmt.Errorf("%s: attribute sync needs both a service and an attributes func: %w", op, ErrInvalidParameter)
	}
	o := &Orchestrator{
		client:       client,
		requests:     requests,
		tokens:       NewTokenStore(),
		redirectURL:  redirectURL,
		requestTTL:   opts.withRequestTTL,
		providerHint: opts.withProviderHint,
		usePKCE:      opts.withPKCE,
		syncService:  opts.withSyncService,
		attributesFn: opts.withAttributesFn,
		logger:       opts.withLogger,
		state:        StateAnonymous,
		subscribers:  map[uint64]func(Transition){},
	}
	if o.logger == nil {
		o.logger = hclog.NewNullLogger()
	}
	o.backgroundCtx, o.backgroundCtxCancel = context.WithCancel(context.Background())
	return o, nil
}

// Done cancels the orchestrator's background work and waits for an
// in-flight attribute sync to wind down. It's safe to call Done multiple
// times.
func (o *Orchestrator) Done() {
	if o == nil {
		return
	}
	o.mu.Lock()
	if o.backgroundCtxCancel != nil {
		o.backgroundCtxCancel()
		o.backgroundCtxCancel = nil
	}
	o.mu.Unlock()
	o.syncWG.Wait()
}

// InitiateLogin creates a fresh pending login and returns the broker's
// authorization URL for the browser to navigate to. No network call is
// made. Initiating while a login is already pending supersedes it: the
// prior request is removed before the new one is stored, so at most one
// callback is ever consumable. Initiating while authenticated starts a
// re-login; the current token set stays in place until the new login
// completes. A session in the error state must be reset with Retry or
// Logout first.
//
// The request can be tuned per login with broker options such as
// broker.WithScopes, broker.WithProviderHint or broker.WithUILocales.
func (o *Orchestrator) InitiateLogin(ctx context.Context, opt ...broker.Option) (string, error) {
	const op = "login.(Orchestrator).InitiateLogin"
	var notify []func()
	defer func() {
		for _, fn := range notify {
			fn()
		}
	}()
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateError {
		return "", fmt.Errorf("%s: retry or logout first: %w", op, ErrSessionInError)
	}

	reqOpts := make([]broker.Option, 0, len(opt)+2)
	if o.providerHint != "" {
		reqOpts = append(reqOpts, broker.WithProviderHint(o.providerHint))
	}
	if o.usePKCE {
		v, err := broker.NewCodeVerifier()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		reqOpts = append(reqOpts, broker.WithPKCE(v))
	}
	reqOpts = append(reqOpts, opt...)

	r, err := broker.NewRequest(o.requestTTL, o.redirectURL, reqOpts...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	authURL, err := o.client.AuthURL(ctx, r)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// Supersede a pending login before storing the new request, so two
	// consumable requests never exist at once.
	if o.pendingState != "" {
		if err := o.requests.Delete(ctx, o.pendingState); err != nil {
			return "", fmt.Errorf("%s: unable to supersede the pending login: %w", op, err)
		}
		o.pendingState = ""
	}
	if err := o.requests.Store(ctx, r); err != nil {
		return "", fmt.Errorf("%s: unable to store the login request: %w", op, err)
	}

	from := o.state
	o.pendingState = r.State()
	o.state = StatePending
	o.logger.Debug("login initiated", "from", from)
	notify = o.transitionLocked(from, StatePending)
	return authURL, nil
}

// CompleteLogin finishes a pending login from the callback's raw
// parameters, q. The sequence is strict: classify the callback, consume
// the pending request (a state matching no consumable request aborts with
// zero token endpoint calls), exchange the code and verify the id_token.
// Only then does the session become authenticated, the token set and
// claims become visible and the attribute sync start in the background.
//
// Every failure is recorded in the session's LastError, moves the session
// to the error state and is returned; a pending login never silently
// reverts to anonymous. Callbacks arriving while no login is pending
// (including replays of an already-completed callback) fail with
// ErrNoPendingLogin and leave the session untouched.
//
// CompleteLogin satisfies callback.CompleteFunc modulo its Session return,
// which callers of callback.AuthCode can drop with a closure.
func (o *Orchestrator) CompleteLogin(ctx context.Context, q url.Values) (Session, error) {
	const op = "login.(Orchestrator).CompleteLogin"
	var notify []func()
	defer func() {
		for _, fn := range notify {
			fn()
		}
	}()
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StatePending {
		return o.sessionLocked(), fmt.Errorf("%s: %w", op, ErrNoPendingLogin)
	}

	res := callback.Parse(q)
	switch res.Kind {
	case callback.KindAuthorizationError:
		err := fmt.Errorf("%s: %w", op, res.AuthErr)
		notify = o.failLoginLocked(ctx, err)
		return o.sessionLocked(), err
	case callback.KindMalformed:
		err := fmt.Errorf("%s: %w", op, ErrMalformedCallback)
		notify = o.failLoginLocked(ctx, err)
		return o.sessionLocked(), err
	}

	r, err := o.requests.Consume(ctx, res.State)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		notify = o.failLoginLocked(ctx, err)
		return o.sessionLocked(), err
	}
	tk, err := o.client.Exchange(ctx, r, res.State, res.Code)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		notify = o.failLoginLocked(ctx, err)
		return o.sessionLocked(), err
	}
	var claims map[string]interface{}
	if err := tk.IDToken().Claims(&claims); err != nil {
		err = fmt.Errorf("%s: unable to decode id_token claims: %w", op, err)
		notify = o.failLoginLocked(ctx, err)
		return o.sessionLocked(), err
	}

	from := o.state
	o.tokens.Set(tk, claims)
	o.lastError = nil
	o.syncWarning = nil
	o.pendingState = ""
	o.state = StateAuthenticated
	o.loginGen++
	o.logger.Debug("login completed", "subject", claims["sub"])
	o.startSyncLocked()
	notify = o.transitionLocked(from, StateAuthenticated)
	return o.sessionLocked(), nil
}

// Logout resets the session to anonymous from any state and returns the
// broker's post-logout redirect URL for the browser to navigate to. The
// reset always completes; problems along the way (no end session
// endpoint, a failing request store) are aggregated into the returned
// error alongside whatever URL could be built.
func (o *Orchestrator) Logout(ctx context.Context) (string, error) {
	const op = "login.(Orchestrator).Logout"
	var notify []func()
	defer func() {
		for _, fn := range notify {
			fn()
		}
	}()
	o.mu.Lock()
	defer o.mu.Unlock()

	var result *multierror.Error
	var hint broker.IDToken
	if t := o.tokens.Tokens(); t != nil {
		hint = t.IDToken()
	}
	logoutURL, err := o.client.LogoutURL(hint)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if o.pendingState != "" {
		if err := o.requests.Delete(ctx, o.pendingState); err != nil {
			result = multierror.Append(result, err)
		}
		o.pendingState = ""
	}
	from := o.state
	o.tokens.Clear()
	o.lastError = nil
	o.syncWarning = nil
	o.state = StateAnonymous
	o.loginGen++
	o.logger.Debug("logged out", "from", from)
	if from != StateAnonymous {
		notify = o.transitionLocked(from, StateAnonymous)
	}
	if err := result.ErrorOrNil(); err != nil {
		return logoutURL, fmt.Errorf("%s: %w", op, err)
	}
	return logoutURL, nil
}

// Retry resets a failed login back to anonymous, discarding the recorded
// failure so a new login can start.
func (o *Orchestrator) Retry() error {
	const op = "login.(Orchestrator).Retry"
	var notify []func()
	defer func() {
		for _, fn := range notify {
			fn()
		}
	}()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateError {
		return fmt.Errorf("%s: %w", op, ErrNoFailedLogin)
	}
	o.lastError = nil
	o.state = StateAnonymous
	notify = o.transitionLocked(StateError, StateAnonymous)
	return nil
}

// RetrySync re-runs the attribute sync for the authenticated session and
// waits for its outcome, which also replaces the session's SyncWarning.
// It is how a user recovers from a failed post-login sync without logging
// in again.
func (o *Orchestrator) RetrySync(ctx context.Context) error {
	const op = "login.(Orchestrator).RetrySync"
	o.mu.Lock()
	if o.syncService == nil {
		o.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrSyncNotConfigured)
	}
	if o.state != StateAuthenticated {
		o.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	gen := o.loginGen
	token := o.tokens.Tokens().AccessToken()
	claims := o.tokens.Claims()
	o.mu.Unlock()

	err := o.deliverSync(ctx, string(token), claims)

	var notify []func()
	defer func() {
		for _, fn := range notify {
			fn()
		}
	}()
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.loginGen && o.state == StateAuthenticated {
		notify = o.recordSyncLocked(err)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Refresh replaces the session's token set wholesale via a refresh grant.
// Failure leaves the current set in place and the session authenticated;
// deciding when an expiring session must log in again instead is the
// caller's policy.
func (o *Orchestrator) Refresh(ctx context.Context) (Session, error) {
	const op = "login.(Orchestrator).Refresh"
	o.mu.Lock()
	if o.state != StateAuthenticated {
		s := o.sessionLocked()
		o.mu.Unlock()
		return s, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	gen := o.loginGen
	current := o.tokens.Tokens()
	o.mu.Unlock()

	tk, err := o.client.Refresh(ctx, current)
	if err != nil {
		return o.Session(), fmt.Errorf("%s: %w", op, err)
	}
	var claims map[string]interface{}
	if err := tk.IDToken().Claims(&claims); err != nil {
		return o.Session(), fmt.Errorf("%s: unable to decode id_token claims: %w", op, err)
	}

	var notify []func()
	defer func() {
		for _, fn := range notify {
			fn()
		}
	}()
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.loginGen || o.state != StateAuthenticated {
		return o.sessionLocked(), fmt.Errorf("%s: session changed during refresh: %w", op, ErrNotAuthenticated)
	}
	o.tokens.Set(tk, claims)
	notify = o.transitionLocked(StateAuthenticated, StateAuthenticated)
	return o.sessionLocked(), nil
}

// Session returns a defensive snapshot of the current session.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionLocked()
}

// Subscribe registers fn for synchronous notification after every session
// change. The returned cancel func removes the subscription. Handlers run
// on the goroutine that made the change, after its lock is released; a
// handler needing the latest session should call Session rather than
// trust its Transition to still be current.
func (o *Orchestrator) Subscribe(fn func(Transition)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subscribers, id)
	}
}

// failLoginLocked records a failed login attempt, abandons the pending
// request and moves the session to the error state.
func (o *Orchestrator) failLoginLocked(ctx context.Context, err error) []func() {
	kind, msg := classify(err)
	if o.pendingState != "" {
		if derr := o.requests.Delete(ctx, o.pendingState); derr != nil {
			o.logger.Error("unable to delete the pending login request", "error", derr)
		}
		o.pendingState = ""
	}
	from := o.state
	o.lastError = &ErrorInfo{Kind: kind, Message: msg, Err: err}
	o.state = StateError
	o.logger.Error("login failed", "kind", kind, "error", err)
	return o.transitionLocked(from, StateError)
}

// startSyncLocked launches the post-login attribute sync for the session
// the caller just authenticated.
func (o *Orchestrator) startSyncLocked() {
	if o.syncService == nil {
		return
	}
	gen := o.loginGen
	token := o.tokens.Tokens().AccessToken()
	claims := o.tokens.Claims()
	o.syncWG.Add(1)
	go func() {
		defer o.syncWG.Done()
		err := o.deliverSync(o.backgroundCtx, string(token), claims)
		if o.backgroundCtx.Err() != nil {
			return
		}
		var notify []func()
		defer func() {
			for _, fn := range notify {
				fn()
			}
		}()
		o.mu.Lock()
		defer o.mu.Unlock()
		// the session this sync belongs to may be gone
		if gen != o.loginGen || o.state != StateAuthenticated {
			return
		}
		notify = o.recordSyncLocked(err)
	}()
}

// deliverSync derives the attribute payload and makes the sync call.
func (o *Orchestrator) deliverSync(ctx context.Context, accessToken string, claims map[string]interface{}) error {
	const op = "login.(Orchestrator).deliverSync"
	attrs, err := o.attributesFn(claims)
	if err != nil {
		return fmt.Errorf("%s: unable to derive attributes: %w", op, err)
	}
	return o.syncService.Sync(ctx, accessToken, attrs)
}

// recordSyncLocked replaces the session's sync warning with the latest
// sync outcome and notifies subscribers either way, so waiting on a sync
// doesn't require polling.
func (o *Orchestrator) recordSyncLocked(err error) []func() {
	if err == nil {
		o.syncWarning = nil
		o.logger.Debug("attribute sync completed")
	} else {
		kind := attrsync.KindUnknown
		var syncErr *attrsync.SyncError
		if errors.As(err, &syncErr) {
			kind = syncErr.Kind
		}
		o.syncWarning = &SyncWarning{Kind: kind, Err: err, Time: time.Now()}
		o.logger.Warn("attribute sync failed", "kind", kind, "error", err)
	}
	return o.transitionLocked(StateAuthenticated, StateAuthenticated)
}

// transitionLocked snapshots the session and builds the subscriber
// notifications for the caller to run after unlocking.
func (o *Orchestrator) transitionLocked(from, to State) []func() {
	tr := Transition{From: from, To: to, Session: o.sessionLocked()}
	fns := make([]func(), 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		fn := fn
		fns = append(fns, func() { fn(tr) })
	}
	return fns
}

func (o *Orchestrator) sessionLocked() Session {
	s := Session{
		State:    o.state,
		TokenSet: o.tokens.Tokens(),
		Claims:   o.tokens.Claims(),
	}
	if o.lastError != nil {
		e := *o.lastError
		s.LastError = &e
	}
	if o.syncWarning != nil {
		w := *o.syncWarning
		s.SyncWarning = &w
	}
	return s
}

// classify maps a login failure to its taxonomy kind and a user-facing
// message. Authorization failures surface the broker's description
// verbatim.
func classify(err error) (ErrorKind, string) {
	var authErr *callback.AuthError
	var exchangeErr *broker.ExchangeError
	switch {
	case errors.As(err, &authErr):
		msg := authErr.Description
		if msg == "" {
			msg = authErr.Code
		}
		return KindAuthorization, msg
	case errors.Is(err, ErrMalformedCallback):
		return KindMalformedCallback, ErrMalformedCallback.Error()
	case errors.Is(err, broker.ErrRequestNotFound),
		errors.Is(err, broker.ErrResponseStateInvalid):
		return KindCSRFValidation, "callback state does not match a pending login"
	case errors.Is(err, broker.ErrExpiredRequest):
		return KindExpiredRequest, "the login request expired before its callback arrived"
	case errors.Is(err, broker.ErrMissingIDToken),
		errors.Is(err, broker.ErrIDTokenVerification),
		errors.Is(err, broker.ErrInvalidNonce),
		errors.Is(err, broker.ErrInvalidAudience),
		errors.Is(err, broker.ErrInvalidSubject):
		return KindInvalidToken, err.Error()
	case errors.As(err, &exchangeErr):
		return KindTokenExchange, exchangeErr.Error()
	case errors.Is(err, broker.ErrInvalidParameter),
		errors.Is(err, broker.ErrNilParameter):
		return KindConfiguration, err.Error()
	default:
		return KindUnknown, err.Error()
	}
}
