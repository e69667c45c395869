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
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrBadRefreshToken means the token endpoint rejected the refresh token,
// e.g. because the user revoked the grant. Retrying will not help.
var ErrBadRefreshToken = errors.New("refresh token is not valid")

type authorizedUserTokenSource struct {
	cfg          *oauth2.Config
	refreshToken string
	tok          *oauth2.Token
}

// NewAuthorizedUserTokenSource returns a TokenSource seeded with the refresh
// token of a gcloud-style authorized_user credential file.
//
// No access token is cached initially, so the first use forces a refresh.
func NewAuthorizedUserTokenSource(creds *Credentials, scopes ...string) (TokenSource, error) {
	if creds.Kind != AuthorizedUser {
		return nil, fmt.Errorf("%w: expected an %s file, got %s", ErrInvalidCredentialFile, AuthorizedUser, creds.Kind)
	}
	if creds.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s file has no refresh token", ErrInvalidCredentialFile, AuthorizedUser)
	}
	return &authorizedUserTokenSource{
		cfg: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		},
		refreshToken: creds.RefreshToken,
	}, nil
}

func (s *authorizedUserTokenSource) Kind() string {
	return string(AuthorizedUser)
}

func (s *authorizedUserTokenSource) AccessToken() *oauth2.Token {
	return s.tok
}

func (s *authorizedUserTokenSource) RefreshToken(ctx context.Context) error {
	tok, err := exchangeRefreshToken(ctx, s.cfg, s.refreshToken)
	if err != nil {
		return err
	}
	s.tok = tok
	return nil
}

// RefreshTokenJSON renders the credential in the gcloud authorized_user file
// format, for transports that want a structured refresh credential instead of
// a bearer header.
func (s *authorizedUserTokenSource) RefreshTokenJSON() string {
	return refreshTokenJSON(s.cfg, s.refreshToken)
}

func refreshTokenJSON(cfg *oauth2.Config, refreshToken string) string {
	blob, _ := json.Marshal(map[string]string{
		"type":          string(AuthorizedUser),
		"client_id":     cfg.ClientID,
		"client_secret": cfg.ClientSecret,
		"refresh_token": refreshToken,
	})
	return string(blob)
}

// exchangeRefreshToken trades a refresh token for a new access token.
//
// The refresh token itself is never rotated: the endpoint keeps it valid
// until the grant is revoked, and any rotated value in the reply is ignored.
func exchangeRefreshToken(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	// Expiry in the past forces the oauth2 machinery to do the exchange
	// instead of returning the seed token. Not zero: zero means the token
	// never expires.
	seed := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	tok, err := cfg.TokenSource(ctx, seed).Token()
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) && retrieve.Response != nil && retrieve.Response.StatusCode < 500 {
			log.WithError(err).Warn("token endpoint rejected the refresh token")
			return nil, ErrBadRefreshToken
		}
		log.WithError(err).Warn("transient error when refreshing the token")
		return nil, err
	}
	tok.RefreshToken = refreshToken
	return tok, nil
}
