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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/googlegenomics/gauth/internal"
)

// tierResult is the tri-state outcome of evaluating one precedence tier.
type tierResult int

const (
	// tierMatched: the tier installed a credential, resolution stops.
	tierMatched tierResult = iota
	// tierNotApplicable: the tier's preconditions are not met, try the next.
	tierNotApplicable
	// tierFailed: the tier matched but could not be set up. Resolution
	// aborts; later tiers are never consulted.
	tierFailed
)

type tier struct {
	name string
	eval func(ctx context.Context, opts *Options, s *State) (tierResult, error)
}

// tiers is the fixed precedence order. First determination wins: once a tier
// matches, even a subsequent setup error does not fall through to the next.
var tiers = []tier{
	{"gce-metadata", evalGCEMetadata},
	{"gcloud-credentials", evalGcloudCredentials},
	{"api-key", evalAPIKey},
	{"credentials-file", evalCredentialsFile},
	{"client-pair", evalClientPair},
}

// Resolve picks exactly one authentication method and returns a State
// holding it.
//
// When no tier applies, the returned State is simply unauthenticated; that
// is not an error. Any error aborts resolution and no State is installed.
//
// Resolve runs once at startup (or once per explicit reconfiguration) and
// builds the State from scratch each time, so re-resolving never carries
// anything over from a previous credential. It must not be called
// concurrently with itself or with methods of a State still in use.
func Resolve(ctx context.Context, opts Options) (*State, error) {
	s := newState(&opts)
	for _, t := range tiers {
		res, err := t.eval(ctx, &opts, s)
		switch res {
		case tierMatched:
			log.WithField("method", t.name).Debug("credentials resolved")
			return s, nil
		case tierFailed:
			return nil, fmt.Errorf("resolving %s credentials: %w", t.name, err)
		}
	}
	log.Debug("no credentials configured, continuing unauthenticated")
	return s, nil
}

// Tier 1: a service account of the GCE instance this process runs on, if
// one is scoped widely enough.
func evalGCEMetadata(ctx context.Context, opts *Options, s *State) (tierResult, error) {
	if opts.DisableGCEMetadata {
		return tierNotApplicable, nil
	}
	src, err := internal.NewGCETokenSource(ctx, opts.MetadataClient, opts.scope(), opts.Now)
	if err != nil {
		return tierFailed, err
	}
	if src == nil {
		return tierNotApplicable, nil
	}
	s.install(ModeToken, src)
	return tierMatched, nil
}

// Tier 2: the gcloud application-default credentials file. Existing but
// unusable content is fatal, not a fallthrough.
func evalGcloudCredentials(ctx context.Context, opts *Options, s *State) (tierResult, error) {
	path := opts.gcloudCredsPath()
	if path == "" {
		return tierNotApplicable, nil
	}
	if _, err := os.Stat(path); err != nil {
		return tierNotApplicable, nil
	}

	creds, err := internal.ReadCredentialsFile(path)
	if err != nil {
		return tierFailed, err
	}
	var src internal.TokenSource
	switch creds.Kind {
	case internal.AuthorizedUser:
		src, err = internal.NewAuthorizedUserTokenSource(creds, opts.scope())
	case internal.ServiceAccount:
		src, err = internal.NewServiceAccountTokenSource(creds, opts.scope())
	default:
		return tierFailed, fmt.Errorf("%w: a %s file cannot serve as application-default credentials", ErrInvalidCredentialFile, creds.Kind)
	}
	if err != nil {
		return tierFailed, err
	}
	s.install(ModeToken, src)
	return tierMatched, nil
}

// Tier 3: a public API key, explicit or from the environment.
func evalAPIKey(ctx context.Context, opts *Options, s *State) (tierResult, error) {
	key := opts.apiKey()
	if key == "" {
		return tierNotApplicable, nil
	}
	if opts.PreferGRPC {
		log.Warn("API keys cannot authenticate the gRPC transport, falling back to REST")
		s.preferGRPC = false
	}
	s.install(ModeAPIKey, internal.NewAPIKeyTokenSource(key))
	return tierMatched, nil
}

// Tier 4: an explicitly named credentials file. Service account keys are
// used directly; anything else is treated as installed-app secrets and
// handled like tier 5, with the client pair taken from the file or from
// the options.
func evalCredentialsFile(ctx context.Context, opts *Options, s *State) (tierResult, error) {
	if opts.CredentialsFile == "" {
		return tierNotApplicable, nil
	}

	creds, err := internal.ReadCredentialsFile(opts.CredentialsFile)
	if err != nil {
		return tierFailed, err
	}
	if creds.Kind == internal.ServiceAccount {
		src, err := internal.NewServiceAccountTokenSource(creds, opts.scope())
		if err != nil {
			return tierFailed, err
		}
		s.install(ModeToken, src)
		return tierMatched, nil
	}

	id, secret, err := creds.NativeAppClient()
	if err != nil {
		return tierFailed, err
	}
	if id == "" || secret == "" {
		id, secret = opts.ClientID, opts.ClientSecret
	}
	if id == "" || secret == "" {
		return tierFailed, fmt.Errorf("%w: no OAuth client pair in %s and none passed explicitly", ErrInvalidCredentialFile, opts.CredentialsFile)
	}
	s.install(ModeToken, internal.NewNativeAppTokenSource(id, secret, opts.LoginPrompt, opts.scope()))
	return tierMatched, nil
}

// Tier 5: an explicit OAuth client pair. The source it installs performs an
// interactive grant on first refresh.
func evalClientPair(ctx context.Context, opts *Options, s *State) (tierResult, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return tierNotApplicable, nil
	}
	s.install(ModeToken, internal.NewNativeAppTokenSource(opts.ClientID, opts.ClientSecret, opts.LoginPrompt, opts.scope()))
	return tierMatched, nil
}
