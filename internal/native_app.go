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
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/googlegenomics/gauth/googleoauth"
)

// ErrUserCancelled means the user abandoned an interactive login flow.
var ErrUserCancelled = errors.New("login flow cancelled")

// LoginPrompt obtains an authorization code interactively. It should present
// authURL to the user and block until a code is available or ctx is done.
type LoginPrompt func(ctx context.Context, authURL string) (code string, err error)

type nativeAppTokenSource struct {
	cfg          *oauth2.Config
	prompt       LoginPrompt
	infoEndpoint string // overridden in tests
	refreshToken string
	tok          *oauth2.Token
}

// NewNativeAppTokenSource returns a TokenSource for installed-app OAuth
// clients.
//
// The first refresh runs a 3-legged authorization flow through prompt (a
// stdin code-paste prompt when nil). Once a refresh token has been obtained,
// later refreshes are plain refresh-token exchanges.
func NewNativeAppTokenSource(clientID, clientSecret string, prompt LoginPrompt, scopes ...string) TokenSource {
	if prompt == nil {
		prompt = StdinLoginPrompt
	}
	return &nativeAppTokenSource{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       scopes,
		},
		prompt: prompt,
	}
}

func (s *nativeAppTokenSource) Kind() string {
	return string(NativeApp)
}

func (s *nativeAppTokenSource) AccessToken() *oauth2.Token {
	return s.tok
}

func (s *nativeAppTokenSource) RefreshToken(ctx context.Context) error {
	if s.refreshToken == "" {
		return s.grant(ctx)
	}
	tok, err := exchangeRefreshToken(ctx, s.cfg, s.refreshToken)
	if err != nil {
		return err
	}
	s.tok = tok
	return nil
}

// RefreshTokenJSON is empty until the interactive grant has completed.
func (s *nativeAppTokenSource) RefreshTokenJSON() string {
	if s.refreshToken == "" {
		return ""
	}
	return refreshTokenJSON(s.cfg, s.refreshToken)
}

// grant redirects the user to a consent screen and exchanges the resulting
// authorization code for refresh and access tokens.
//
// Cancelling ctx is the way out of an abandoned flow; the caller should
// bound it with a timeout rather than wait on the user forever.
func (s *nativeAppTokenSource) grant(ctx context.Context) error {
	authURL := s.cfg.AuthCodeURL("", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	code, err := s.prompt(ctx, authURL)
	switch {
	case errors.Is(err, context.Canceled):
		return ErrUserCancelled
	case err != nil:
		return err
	}

	tok, err := s.cfg.Exchange(ctx, code)
	if err != nil {
		return err
	}
	if tok.RefreshToken == "" {
		return errors.New("token endpoint returned no refresh token")
	}
	s.refreshToken = tok.RefreshToken
	s.tok = tok

	// Best effort: tell the user who they just logged in as.
	info, err := googleoauth.GetTokenInfo(ctx, googleoauth.TokenInfoParams{
		AccessToken: tok.AccessToken,
		Endpoint:    s.infoEndpoint,
	})
	if err == nil && info.Email != "" {
		log.WithField("email", info.Email).Info("logged in")
	}
	return nil
}

// StdinLoginPrompt prints the consent URL and reads the authorization code
// from stdin.
//
// Cancelling ctx abandons the flow, but the pending stdin read itself leaks
// until process exit: there is no portable way to interrupt it.
func StdinLoginPrompt(ctx context.Context, authURL string) (string, error) {
	fmt.Printf("Visit the following URL to get the authorization code and paste it below.\n\n%s\n\n", authURL)
	fmt.Printf("Authorization code: ")

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		var code string
		if _, err := fmt.Scan(&code); err != nil {
			errCh <- err
			return
		}
		codeCh <- code
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case code := <-codeCh:
		return code, nil
	}
}
