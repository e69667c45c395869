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
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

type serviceAccountTokenSource struct {
	cfg *jwt.Config
	tok *oauth2.Token
}

// NewServiceAccountTokenSource returns a TokenSource that mints access tokens
// with a service account private key.
//
// A signed JWT assertion is self-sufficient: there is no refresh token, and
// minting a token and "refreshing" it are the same operation.
func NewServiceAccountTokenSource(creds *Credentials, scopes ...string) (TokenSource, error) {
	if creds.Kind != ServiceAccount {
		return nil, fmt.Errorf("%w: expected a %s file, got %s", ErrInvalidCredentialFile, ServiceAccount, creds.Kind)
	}
	cfg, err := google.JWTConfigFromJSON(creds.Raw, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentialFile, err)
	}
	return &serviceAccountTokenSource{cfg: cfg}, nil
}

func (s *serviceAccountTokenSource) Kind() string {
	return string(ServiceAccount)
}

func (s *serviceAccountTokenSource) AccessToken() *oauth2.Token {
	return s.tok
}

func (s *serviceAccountTokenSource) RefreshToken(ctx context.Context) error {
	tok, err := s.cfg.TokenSource(ctx).Token()
	if err != nil {
		return err
	}
	s.tok = tok
	return nil
}
