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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/googlegenomics/gauth/internal"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// stubTokenSource mints counted tokens with a fixed TTL, or fails on demand.
// A zero ttl produces tokens without an expiry.
type stubTokenSource struct {
	clk        *fakeClock
	ttl        time.Duration
	refreshErr error
	refreshes  int
	tok        *oauth2.Token
}

func (s *stubTokenSource) Kind() string               { return "stub" }
func (s *stubTokenSource) AccessToken() *oauth2.Token { return s.tok }
func (s *stubTokenSource) RefreshToken(context.Context) error {
	s.refreshes++
	if s.refreshErr != nil {
		return s.refreshErr
	}
	tok := &oauth2.Token{AccessToken: fmt.Sprintf("tok-%d", s.refreshes)}
	if s.ttl > 0 {
		tok.Expiry = s.clk.now().Add(s.ttl)
	}
	s.tok = tok
	return nil
}

func newTokenState(clk *fakeClock, src internal.TokenSource) *State {
	return &State{mode: ModeToken, source: src, now: clk.now}
}

func TestEnsureFresh(t *testing.T) {
	ctx := context.Background()

	Convey("With a working token source", t, func() {
		clk := &fakeClock{t: time.Date(2015, time.March, 14, 9, 26, 0, 0, time.UTC)}
		src := &stubTokenSource{clk: clk, ttl: time.Hour}
		s := newTokenState(clk, src)

		Convey("First use refreshes, an immediate second use does not", func() {
			So(s.EnsureFresh(ctx), ShouldBeNil)
			So(src.refreshes, ShouldEqual, 1)
			So(s.EnsureFresh(ctx), ShouldBeNil)
			So(src.refreshes, ShouldEqual, 1)
		})

		Convey("No refresh before 80% of the token lifetime", func() {
			So(s.EnsureFresh(ctx), ShouldBeNil)
			clk.advance(47 * time.Minute)
			So(s.EnsureFresh(ctx), ShouldBeNil)
			So(src.refreshes, ShouldEqual, 1)
		})

		Convey("Exactly one refresh once 80% of the lifetime has passed", func() {
			So(s.EnsureFresh(ctx), ShouldBeNil)
			clk.advance(48 * time.Minute)
			So(s.EnsureFresh(ctx), ShouldBeNil)
			So(src.refreshes, ShouldEqual, 2)
			So(s.EnsureFresh(ctx), ShouldBeNil)
			So(src.refreshes, ShouldEqual, 2)
		})

		Convey("BearerToken returns the cached token", func() {
			tok, err := s.BearerToken(ctx)
			So(err, ShouldBeNil)
			So(tok, ShouldEqual, "tok-1")
		})
	})

	Convey("A token without an expiry is refreshed exactly once", t, func() {
		clk := &fakeClock{t: time.Date(2015, time.March, 14, 9, 26, 0, 0, time.UTC)}
		src := &stubTokenSource{clk: clk}
		s := newTokenState(clk, src)

		So(s.EnsureFresh(ctx), ShouldBeNil)
		So(src.refreshes, ShouldEqual, 1)

		// No amount of elapsed time makes it stale.
		clk.advance(1000 * time.Hour)
		So(s.EnsureFresh(ctx), ShouldBeNil)
		So(src.refreshes, ShouldEqual, 1)

		tok, err := s.BearerToken(ctx)
		So(err, ShouldBeNil)
		So(tok, ShouldEqual, "tok-1")
	})

	Convey("With a failing token source", t, func() {
		clk := &fakeClock{t: time.Date(2015, time.March, 14, 9, 26, 0, 0, time.UTC)}
		src := &stubTokenSource{clk: clk, ttl: time.Hour}
		s := newTokenState(clk, src)

		Convey("A failed refresh latches the suspension flag", func() {
			So(s.EnsureFresh(ctx), ShouldBeNil)
			clk.advance(time.Hour)
			src.refreshErr = errors.New("token endpoint exploded")
			So(s.EnsureFresh(ctx), ShouldNotBeNil)
			So(src.refreshes, ShouldEqual, 2)

			// The source works again, but the suspension stays latched.
			src.refreshErr = nil
			So(s.EnsureFresh(ctx), ShouldBeNil)
			So(src.refreshes, ShouldEqual, 2)

			// The stale token is still served.
			tok, err := s.BearerToken(ctx)
			So(err, ShouldBeNil)
			So(tok, ShouldEqual, "tok-1")
		})

		Convey("Suspension before any token was minted", func() {
			src.refreshErr = errors.New("token endpoint exploded")
			_, err := s.BearerToken(ctx)
			So(err, ShouldNotBeNil)
			_, err = s.BearerToken(ctx)
			So(errors.Is(err, ErrRefreshSuspended), ShouldBeTrue)
		})
	})

	Convey("API-key mode never refreshes", t, func() {
		clk := &fakeClock{t: time.Date(2015, time.March, 14, 9, 26, 0, 0, time.UTC)}
		s := &State{mode: ModeAPIKey, source: internal.NewAPIKeyTokenSource("XYZ"), now: clk.now}

		So(s.EnsureFresh(ctx), ShouldBeNil)
		So(s.IsAuthenticated(), ShouldBeTrue)
		So(s.APIKey(), ShouldEqual, "XYZ")

		tok, err := s.BearerToken(ctx)
		So(err, ShouldBeNil)
		So(tok, ShouldEqual, "")

		b, err := s.CredentialBundle(ctx)
		So(err, ShouldBeNil)
		So(b, ShouldResemble, Bundle{APIKey: "XYZ"})
	})

	Convey("Unauthenticated state rejects credential reads", t, func() {
		s := &State{now: time.Now}

		So(s.IsAuthenticated(), ShouldBeFalse)

		_, err := s.BearerToken(ctx)
		So(errors.Is(err, ErrUnauthenticated), ShouldBeTrue)

		_, err = s.CredentialBundle(ctx)
		So(errors.Is(err, ErrUnauthenticated), ShouldBeTrue)
	})
}

func TestCredentialBundle(t *testing.T) {
	ctx := context.Background()

	Convey("Token mode bundle carries the access token", t, func() {
		clk := &fakeClock{t: time.Date(2015, time.March, 14, 9, 26, 0, 0, time.UTC)}
		s := newTokenState(clk, &stubTokenSource{clk: clk, ttl: time.Hour})

		b, err := s.CredentialBundle(ctx)
		So(err, ShouldBeNil)
		So(b.AccessToken, ShouldEqual, "tok-1")
		So(b.APIKey, ShouldEqual, "")
	})
}

func TestAuthorizedClient(t *testing.T) {
	Convey("Token mode sets the Authorization header", t, func() {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
		}))
		defer srv.Close()

		clk := &fakeClock{t: time.Date(2015, time.March, 14, 9, 26, 0, 0, time.UTC)}
		s := newTokenState(clk, &stubTokenSource{clk: clk, ttl: time.Hour})

		resp, err := s.AuthorizedClient(nil).Get(srv.URL)
		So(err, ShouldBeNil)
		resp.Body.Close()
		So(gotAuth, ShouldEqual, "Bearer tok-1")
	})

	Convey("API-key mode appends the key query parameter", t, func() {
		var gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.URL.Query().Get("key")
		}))
		defer srv.Close()

		s := &State{mode: ModeAPIKey, source: internal.NewAPIKeyTokenSource("XYZ"), now: time.Now}

		resp, err := s.AuthorizedClient(nil).Get(srv.URL + "/v1/readsets?pageSize=10")
		So(err, ShouldBeNil)
		resp.Body.Close()
		So(gotKey, ShouldEqual, "XYZ")
	})

	Convey("Unauthenticated client fails outright", t, func() {
		s := &State{now: time.Now}
		_, err := s.AuthorizedClient(nil).Get("http://localhost/never-reached")
		So(err, ShouldNotBeNil)
	})
}
