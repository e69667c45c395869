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
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeTokenEndpoint records refresh-token grants and serves canned tokens.
// When reject is true it answers like Google does for a revoked grant.
type fakeTokenEndpoint struct {
	srv       *httptest.Server
	grants    []string // refresh tokens seen, in order
	exchanges int      // authorization-code exchanges seen
	reject    bool
}

func newFakeTokenEndpoint(t *testing.T) *fakeTokenEndpoint {
	t.Helper()
	f := &fakeTokenEndpoint{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.reject {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		switch r.PostForm.Get("grant_type") {
		case "refresh_token":
			f.grants = append(f.grants, r.PostForm.Get("refresh_token"))
		case "authorization_code":
			f.exchanges++
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "rotated-refresh-token",
		})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTokenEndpoint) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  f.srv.URL + "/auth",
		TokenURL: f.srv.URL + "/token",
	}
}

func TestAuthorizedUserTokenSource(t *testing.T) {
	ctx := context.Background()

	creds := &Credentials{
		Kind:         AuthorizedUser,
		ClientID:     "cid",
		ClientSecret: "csecret",
		RefreshToken: "1/refresh",
	}

	Convey("Construction requires the right kind and a refresh token", t, func() {
		_, err := NewAuthorizedUserTokenSource(&Credentials{Kind: ServiceAccount}, ScopeGenomics)
		So(errors.Is(err, ErrInvalidCredentialFile), ShouldBeTrue)

		_, err = NewAuthorizedUserTokenSource(&Credentials{Kind: AuthorizedUser}, ScopeGenomics)
		So(errors.Is(err, ErrInvalidCredentialFile), ShouldBeTrue)
	})

	Convey("With a fake token endpoint", t, func() {
		ep := newFakeTokenEndpoint(t)

		src, err := NewAuthorizedUserTokenSource(creds, ScopeGenomics)
		So(err, ShouldBeNil)
		src.(*authorizedUserTokenSource).cfg.Endpoint = ep.endpoint()

		Convey("No token is cached before the first refresh", func() {
			So(src.AccessToken(), ShouldBeNil)
		})

		Convey("Refresh mints a token and never rotates the refresh token", func() {
			So(src.RefreshToken(ctx), ShouldBeNil)
			So(src.AccessToken().AccessToken, ShouldEqual, "fresh-token")
			So(ep.grants, ShouldResemble, []string{"1/refresh"})

			// The endpoint offered "rotated-refresh-token"; it is ignored
			// and the next refresh still presents the original.
			So(src.RefreshToken(ctx), ShouldBeNil)
			So(ep.grants, ShouldResemble, []string{"1/refresh", "1/refresh"})
		})

		Convey("A rejected grant maps to ErrBadRefreshToken", func() {
			ep.reject = true
			err := src.RefreshToken(ctx)
			So(errors.Is(err, ErrBadRefreshToken), ShouldBeTrue)
			So(src.AccessToken(), ShouldBeNil)
		})

		Convey("RefreshTokenJSON renders the gcloud file format", func() {
			var out map[string]string
			So(json.Unmarshal([]byte(src.(*authorizedUserTokenSource).RefreshTokenJSON()), &out), ShouldBeNil)
			So(out, ShouldResemble, map[string]string{
				"type":          "authorized_user",
				"client_id":     "cid",
				"client_secret": "csecret",
				"refresh_token": "1/refresh",
			})
		})
	})
}
