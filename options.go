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
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/compute/metadata"

	"github.com/googlegenomics/gauth/internal"
)

// OAuth scopes commonly requested by Genomics API clients.
const (
	// ScopeGenomics grants read/write access to the Genomics API.
	ScopeGenomics = internal.ScopeGenomics

	// ScopeCloudPlatform is the universal scope covering every Cloud API.
	ScopeCloudPlatform = internal.ScopeCloudPlatform
)

// Environment variables consulted by Resolve.
const (
	// CredentialsEnvVar overrides the well-known path of the gcloud
	// application-default credentials file.
	CredentialsEnvVar = "GOOGLE_APPLICATION_CREDENTIALS"

	// APIKeyEnvVar supplies a public API key when Options.APIKey is empty.
	APIKeyEnvVar = "GOOGLE_API_KEY"
)

// LoginPrompt obtains an authorization code during an interactive login
// flow. See internal.StdinLoginPrompt for the default behavior.
type LoginPrompt = internal.LoginPrompt

// Options tells Resolve which authentication inputs are available.
//
// The zero value is valid: try the GCE metadata server, then the gcloud
// application-default credentials file, then stay unauthenticated.
type Options struct {
	// Scope is the OAuth scope to request. Defaults to ScopeGenomics.
	Scope string

	// CredentialsFile names an explicit service-account key or installed-app
	// secrets file (precedence tier 4).
	CredentialsFile string

	// ClientID and ClientSecret identify a native application (tier 5).
	// They are also consulted when CredentialsFile turns out to be an
	// installed-app secrets file with the pair missing.
	ClientID     string
	ClientSecret string

	// APIKey is a public API key (tier 3). When empty, APIKeyEnvVar is
	// consulted.
	APIKey string

	// GcloudCredsPath overrides the application-default credentials path
	// (tier 2). When empty, CredentialsEnvVar and then the platform
	// well-known path are used.
	GcloudCredsPath string

	// DisableGCEMetadata skips the instance-metadata tier entirely.
	DisableGCEMetadata bool

	// PreferGRPC records that the caller wants the gRPC transport. API-key
	// auth cannot serve that transport, so resolving to an API key forces
	// this preference off, with a warning.
	PreferGRPC bool

	// LoginPrompt overrides how the interactive native-app flow asks the
	// user for an authorization code. Defaults to a stdin prompt.
	LoginPrompt LoginPrompt

	// MetadataClient overrides the instance-metadata client. Tests point it
	// at a fake server.
	MetadataClient *metadata.Client

	// Now overrides the time source used by the refresh policy of the
	// returned State. Defaults to time.Now.
	Now func() time.Time
}

func (o *Options) scope() string {
	if o.Scope != "" {
		return o.Scope
	}
	return ScopeGenomics
}

func (o *Options) apiKey() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	return os.Getenv(APIKeyEnvVar)
}

func (o *Options) gcloudCredsPath() string {
	if o.GcloudCredsPath != "" {
		return o.GcloudCredsPath
	}
	if p := os.Getenv(CredentialsEnvVar); p != "" {
		return p
	}
	return wellKnownCredsPath()
}

// wellKnownCredsPath is where `gcloud auth application-default login` puts
// its credentials: the gcloud subdirectory of the user config dir (APPDATA
// on Windows, ~/.config elsewhere).
func wellKnownCredsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gcloud", "application_default_credentials.json")
}
