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

	"golang.org/x/oauth2"
)

// apiKeyTokenSource is the degenerate variant: there is no token to mint or
// refresh, the credential material is the static key itself.
type apiKeyTokenSource struct {
	key string
}

// NewAPIKeyTokenSource returns the TokenSource holding a public API key.
func NewAPIKeyTokenSource(key string) TokenSource {
	return &apiKeyTokenSource{key: key}
}

func (s *apiKeyTokenSource) Kind() string {
	return "api_key"
}

func (s *apiKeyTokenSource) AccessToken() *oauth2.Token {
	return nil
}

func (s *apiKeyTokenSource) RefreshToken(ctx context.Context) error {
	return nil
}

// APIKey returns the key itself.
func (s *apiKeyTokenSource) APIKey() string {
	return s.key
}
