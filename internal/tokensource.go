// Copyright 2015 The Google Genomics Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package internal holds credential descriptors and the token sources that
// back the public gauth package.
//
// Nothing here is covered by any API stability promise. Use the top-level
// gauth package instead.
package internal

import (
	"context"

	"golang.org/x/oauth2"
)

// OAuth scopes understood by the token sources.
const (
	// ScopeGenomics grants read/write access to the Genomics API.
	ScopeGenomics = "https://www.googleapis.com/auth/genomics"

	// ScopeCloudPlatform is the universal scope covering every Cloud API,
	// Genomics included. An account granted it is always good enough.
	ScopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"
)

// TokenSource produces and refreshes the bearer access token of a single
// authentication method.
//
// Implementations are not safe for concurrent use on their own. The State
// that owns a source serializes all calls to it.
type TokenSource interface {
	// Kind identifies the authentication method, e.g. "service_account".
	Kind() string

	// AccessToken returns the cached access token, or nil if no token has
	// been minted yet. It never performs network I/O.
	AccessToken() *oauth2.Token

	// RefreshToken performs the network exchange that mints or renews the
	// cached access token. It blocks no longer than ctx allows.
	RefreshToken(ctx context.Context) error
}
