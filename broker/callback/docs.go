// Copyright (c) Meadowgate, Inc.
// SPDX-License-Identifier: MPL-2.0

// callback is a package for handling the redirect that ends the browser leg
// of an OIDC authorization code flow against a managed identity broker.
//
// Parse interprets a callback's query parameters error-first: when the
// broker delivered an error response, the result reports it and any
// authorization code the callback also carried must never be exchanged.
//
// AuthCode composes an http.HandlerFunc from a CompleteFunc (typically the
// login orchestrator's CompleteLogin) and a pair of response funcs that
// render the outcome to the user's browser. Default HTML response funcs are
// provided for applications that don't need custom pages.
package callback
