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

package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// gceRequestTimeout bounds individual metadata server requests. The server
// is link-local, so anything slower than this means we are not on GCE.
const gceRequestTimeout = 2 * time.Second

type gceTokenSource struct {
	client  *metadata.Client
	account string
	now     func() time.Time
	tok     *oauth2.Token
}

// NewGCETokenSource looks for an instance service account whose granted
// scopes cover the required scope and returns a TokenSource backed by the
// instance metadata server. A nil now means time.Now.
//
// A nil, nil return means no metadata credential is available: the server is
// unreachable, answered non-200, or no account is scoped widely enough.
// Running off GCE is a normal outcome here, not an error. The only error
// ever returned is a ctx one: an aborted probe must not be mistaken for
// "not on GCE".
func NewGCETokenSource(ctx context.Context, client *metadata.Client, scope string, now func() time.Time) (TokenSource, error) {
	if client == nil {
		client = metadata.NewClient(&http.Client{Timeout: gceRequestTimeout})
	}
	if now == nil {
		now = time.Now
	}

	listing, err := client.GetWithContext(ctx, "instance/service-accounts/")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Debug("metadata server not reachable, skipping GCE credentials")
		return nil, nil
	}

	for _, line := range strings.Split(listing, "\n") {
		account := strings.TrimSuffix(strings.TrimSpace(line), "/")
		if account == "" {
			continue
		}
		scopes, err := client.GetWithContext(ctx, "instance/service-accounts/"+account+"/scopes")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("account", account).Debug("cannot list scopes of instance service account")
			continue
		}
		if !scopesCover(scopes, scope) {
			continue
		}
		log.WithField("account", account).Debug("using GCE instance service account")
		return &gceTokenSource{client: client, account: account, now: now}, nil
	}

	// Reachable but unscoped. Same outcome as unreachable, only the log
	// message tells the two apart.
	log.WithField("scope", scope).Debug("metadata server is reachable but no account has the required scope")
	return nil, nil
}

// scopesCover reports whether the newline-delimited scope listing contains
// the required scope or the universal cloud-platform scope.
func scopesCover(listing, scope string) bool {
	for _, s := range strings.Fields(listing) {
		if s == scope || s == ScopeCloudPlatform {
			return true
		}
	}
	return false
}

func (s *gceTokenSource) Kind() string {
	return "gce"
}

func (s *gceTokenSource) AccessToken() *oauth2.Token {
	return s.tok
}

func (s *gceTokenSource) RefreshToken(ctx context.Context) error {
	raw, err := s.client.GetWithContext(ctx, "instance/service-accounts/"+s.account+"/token")
	if err != nil {
		return err
	}
	var reply struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return err
	}
	if reply.AccessToken == "" {
		return errors.New("metadata server returned no access token")
	}
	s.tok = &oauth2.Token{
		AccessToken: reply.AccessToken,
		TokenType:   reply.TokenType,
		Expiry:      s.now().Add(time.Duration(reply.ExpiresIn) * time.Second),
	}
	return nil
}
