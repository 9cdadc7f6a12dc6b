// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

// rely provides the packages a browser-facing application needs to run its
// sign-in against a managed identity broker: an OIDC authorization-code
// client (broker), an http.HandlerFunc factory for the broker's redirect
// (broker/callback), a session state machine owning the login lifecycle
// (login), and a best-effort directory attribute writer that runs after each
// completed login (attrsync).
//
// See README.md
package rely
