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

package gauth

import (
	"context"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/googlegenomics/gauth/internal"
)

// Mode says which flavor of credential a State holds.
type Mode int

const (
	// ModeUnauthenticated: no credential; authenticated operations fail.
	ModeUnauthenticated Mode = iota
	// ModeAPIKey: a static public API key; no tokens, no refreshes.
	ModeAPIKey
	// ModeToken: a token source minting bearer access tokens.
	ModeToken
)

// refreshFraction is how far into a token's lifetime EnsureFresh waits
// before refreshing. Refreshing at 80% instead of at expiry avoids racing
// in-flight requests that still carry the old token.
const refreshFraction = 0.8

// State is the authentication state of one client. Resolve installs it,
// every outgoing call consults it.
//
// All methods are safe for concurrent use; one mutex serializes every read
// and refresh so two callers can never race on the same token. A State
// lives for the process lifetime and is only ever replaced wholesale by
// another Resolve call, never patched in place.
type State struct {
	mu          sync.Mutex
	mode        Mode
	source      internal.TokenSource
	lastRefresh time.Time // zero until the first successful refresh
	tokenTTL    time.Duration
	suspended   bool
	preferGRPC  bool
	now         func() time.Time
}

func newState(opts *Options) *State {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &State{now: now, preferGRPC: opts.PreferGRPC}
}

func (s *State) install(mode Mode, src internal.TokenSource) {
	s.mode = mode
	s.source = src
}

// IsAuthenticated reports whether any credential is configured.
func (s *State) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode != ModeUnauthenticated
}

// Mode returns the flavor of the configured credential.
func (s *State) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// PreferGRPC reports the transport preference after resolution. It differs
// from the requested one only when API-key auth forced REST.
func (s *State) PreferGRPC() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferGRPC
}

// APIKey returns the configured API key, or "" in other modes.
func (s *State) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKeyLocked()
}

func (s *State) apiKeyLocked() string {
	if c, ok := s.source.(interface{ APIKey() string }); ok {
		return c.APIKey()
	}
	return ""
}

// EnsureFresh refreshes the access token if it is missing or past 80% of
// its lifetime. It is idempotent and a no-op in API-key mode.
//
// A failed refresh permanently suspends further attempts on this State;
// hammering a broken credential helps nobody. The failure is surfaced once,
// here, while any cached (possibly stale) token is kept: callers can still
// send it and let the API reject it, or treat the error as fatal.
func (s *State) EnsureFresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureFreshLocked(ctx)
}

func (s *State) ensureFreshLocked(ctx context.Context) error {
	if s.mode != ModeToken || s.suspended {
		return nil
	}
	if !s.refreshDueLocked() {
		return nil
	}
	if err := s.source.RefreshToken(ctx); err != nil {
		s.suspended = true
		log.WithError(err).Warn("token refresh failed, suspending further refresh attempts")
		return err
	}
	now := s.now()
	s.lastRefresh = now
	s.tokenTTL = 0
	if tok := s.source.AccessToken(); tok != nil && !tok.Expiry.IsZero() {
		s.tokenTTL = tok.Expiry.Sub(now)
	}
	return nil
}

func (s *State) refreshDueLocked() bool {
	tok := s.source.AccessToken()
	switch {
	case tok == nil:
		return true
	case tok.Expiry.IsZero():
		// A token without an expiry never goes stale.
		return false
	case s.lastRefresh.IsZero():
		return true
	case s.tokenTTL <= 0:
		return true
	}
	age := s.now().Sub(s.lastRefresh)
	return age >= time.Duration(refreshFraction*float64(s.tokenTTL))
}

// BearerToken returns the access token for an Authorization header,
// refreshing it first when needed. It is empty in API-key mode: API keys
// travel as a query parameter, not a header.
func (s *State) BearerToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModeUnauthenticated:
		return "", ErrUnauthenticated
	case ModeAPIKey:
		return "", nil
	}
	if err := s.ensureFreshLocked(ctx); err != nil {
		return "", err
	}
	tok := s.source.AccessToken()
	if tok == nil {
		// Suspended before any token was ever minted.
		return "", ErrRefreshSuspended
	}
	return tok.AccessToken, nil
}

// Bundle is structured credential material for transports that cannot use a
// plain Authorization header, such as per-RPC gRPC credentials.
type Bundle struct {
	APIKey           string
	AccessToken      string
	RefreshTokenJSON string
}

// CredentialBundle returns whatever credential material the configured
// method has: the API key, the current access token, and, for refresh-token
// based methods, the refresh credential in the gcloud authorized_user JSON
// format.
func (s *State) CredentialBundle(ctx context.Context) (Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModeUnauthenticated:
		return Bundle{}, ErrUnauthenticated
	case ModeAPIKey:
		return Bundle{APIKey: s.apiKeyLocked()}, nil
	}
	if err := s.ensureFreshLocked(ctx); err != nil {
		return Bundle{}, err
	}
	var b Bundle
	if tok := s.source.AccessToken(); tok != nil {
		b.AccessToken = tok.AccessToken
	}
	if c, ok := s.source.(interface{ RefreshTokenJSON() string }); ok {
		b.RefreshTokenJSON = c.RefreshTokenJSON()
	}
	if b.AccessToken == "" && b.RefreshTokenJSON == "" {
		return Bundle{}, ErrRefreshSuspended
	}
	return b, nil
}

// AuthorizedClient returns an http.Client that authenticates every request
// with this State: a Bearer header in token mode, a `key` query parameter
// in API-key mode. A nil base means http.DefaultTransport.
func (s *State) AuthorizedClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &authTransport{state: s, base: base}}
}

type authTransport struct {
	state *State
	base  http.RoundTripper
}

// RoundTrip authenticates and forwards the request. The request is cloned
// first: round trippers must not mutate the caller's request.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.state.Mode() == ModeAPIKey {
		req = req.Clone(req.Context())
		q := req.URL.Query()
		q.Set("key", t.state.APIKey())
		req.URL.RawQuery = q.Encode()
		return t.base.RoundTrip(req)
	}
	tok, err := t.state.BearerToken(req.Context())
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+tok)
	return t.base.RoundTrip(req)
}
