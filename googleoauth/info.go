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

// Package googleoauth queries Google's OAuth token info endpoint.
package googleoauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/context/ctxhttp"
	"google.golang.org/api/googleapi"
)

// TokeninfoEndpoint is Google's token info endpoint.
const TokeninfoEndpoint = "https://oauth2.googleapis.com/tokeninfo"

// ErrBadToken is returned by GetTokenInfo if the passed token is invalid.
var ErrBadToken = errors.New("bad token")

// TokenInfoParams are parameters for a GetTokenInfo call.
type TokenInfoParams struct {
	AccessToken string // the access token to introspect

	Client   *http.Client // non-authenticating client to use for the call
	Endpoint string       // endpoint to use instead of TokeninfoEndpoint
}

// TokenInfo is information reported about an access token.
type TokenInfo struct {
	Aud           string `json:"aud"`
	Scope         string `json:"scope"`
	Exp           int64  `json:"exp,string"`
	ExpiresIn     int64  `json:"expires_in,string"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified,string"`
}

// GetTokenInfo queries the token info endpoint and returns what it knows
// about the token.
//
// Returns ErrBadToken if the endpoint does not recognize the token (any
// 4** reply). Other failures are returned as is.
func GetTokenInfo(ctx context.Context, params TokenInfoParams) (*TokenInfo, error) {
	if params.Client == nil {
		params.Client = http.DefaultClient
	}
	if params.Endpoint == "" {
		params.Endpoint = TokeninfoEndpoint
	}

	// Pass the token in the request body, not the URL, to keep it out of
	// whatever logs URLs end up in.
	v := url.Values{"access_token": {params.AccessToken}}
	resp, err := ctxhttp.PostForm(ctx, params.Client, params.Endpoint, v)
	if err != nil {
		return nil, err
	}
	defer googleapi.CloseBody(resp)
	if err := googleapi.CheckResponse(resp); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code < 500 {
			return nil, ErrBadToken
		}
		return nil, err
	}

	info := &TokenInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		log.WithError(err).Error("bad token info endpoint response")
		return nil, err
	}
	return info, nil
}
