// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package login drives a browser-side OIDC authorization code flow
// against a managed identity broker as an explicit state machine:
//
//	Anonymous -> Pending -> Authenticated
//	                 \-> Error -> (Retry/Logout) -> Anonymous
//
// InitiateLogin creates a pending request and the authorization URL;
// CompleteLogin correlates the broker's callback to it, exchanges the
// code, verifies the id_token and only then makes the session
// authenticated. A post-login attribute sync runs as a best-effort side
// effect: its failure attaches a SyncWarning and never reverts a
// completed login.
//
// The Orchestrator owns the Session exclusively. UIs observe it through
// Session snapshots or Subscribe notifications instead of shared mutable
// state, so multiple independent sessions (and tests) can coexist.
package login
