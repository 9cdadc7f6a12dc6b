// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

// broker is a package for writing clients that authenticate end users
// against a managed identity broker using the OIDC authorization code flow,
// and that talk to the broker's adjacent endpoints (UserInfo, end session)
// once authenticated.
//
// Primary types provided by the package:
//
//   - Config: provides the broker's basic client configuration: issuer,
//     client ID/secret, allowed redirect URLs, supported signing algorithms
//     and an optional CA bundle for the broker's TLS endpoints.
//
//   - Client: provides integration with a broker, including discovery,
//     building authorization URLs (AuthURL), exchanging authorization codes
//     for verified tokens (Exchange), reading UserInfo claims, refreshing
//     token sets (Refresh) and building end session URLs (LogoutURL).
//
//   - Request: represents one in-flight authentication attempt: its state,
//     nonce, redirect URL, expiry and per-request overrides like scopes,
//     audiences, a PKCE verifier or an identity provider hint.
//
//   - RequestStore / MemStore: hold pending Requests between the moment a
//     flow starts and the moment its callback arrives, keyed by state with
//     atomic consume-once semantics.
//
//   - Token: represents the bundle issued at the end of a successful flow:
//     a verified IDToken, an AccessToken and an optional RefreshToken.
//     The token secrets are typed and print redacted.
//
// The TestBroker and the Test* helper functions make it straightforward to
// test flows end to end against a local broker without standing up real
// infrastructure.
package broker
