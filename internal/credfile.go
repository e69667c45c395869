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
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidCredentialFile means a credential file exists but its content is
// not something the resolver recognizes. It is fatal: the resolver must not
// silently fall back to another authentication method.
var ErrInvalidCredentialFile = errors.New("invalid credential file")

// Kind classifies a parsed credential file.
type Kind string

const (
	// AuthorizedUser is a gcloud-style file holding a user refresh token.
	AuthorizedUser Kind = "authorized_user"
	// ServiceAccount is a service account key file.
	ServiceAccount Kind = "service_account"
	// NativeApp is a legacy installed-app secrets file from the API console.
	NativeApp Kind = "native_app"
)

// Credentials is a parsed credential file. It is immutable once parsed.
//
// Kind is derived from the "type" field or, when that field is absent, from
// the presence of an "installed" section.
type Credentials struct {
	Kind Kind

	ClientID     string
	ClientSecret string
	RefreshToken string
	ClientEmail  string

	// Raw is the original file content, kept around because JWT configs are
	// built from the whole blob rather than individual fields.
	Raw []byte
}

// ReadCredentialsFile reads and classifies a JSON credential file.
func ReadCredentialsFile(path string) (*Credentials, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	creds, err := ParseCredentials(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return creds, nil
}

// ParseCredentials classifies a credential blob.
//
// Unparseable JSON or an unrecognized "type" value yields
// ErrInvalidCredentialFile.
func ParseCredentials(blob []byte) (*Credentials, error) {
	var raw struct {
		Type         string `json:"type"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		RefreshToken string `json:"refresh_token"`
		ClientEmail  string `json:"client_email"`
		Installed    *struct {
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
		} `json:"installed"`
	}
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentialFile, err)
	}

	creds := &Credentials{
		ClientID:     raw.ClientID,
		ClientSecret: raw.ClientSecret,
		RefreshToken: raw.RefreshToken,
		ClientEmail:  raw.ClientEmail,
		Raw:          blob,
	}
	switch {
	case raw.Type == string(AuthorizedUser):
		creds.Kind = AuthorizedUser
	case raw.Type == string(ServiceAccount):
		creds.Kind = ServiceAccount
	case raw.Type == "" && raw.Installed != nil:
		creds.Kind = NativeApp
		creds.ClientID = raw.Installed.ClientID
		creds.ClientSecret = raw.Installed.ClientSecret
	case raw.Type == "":
		return nil, fmt.Errorf("%w: no \"type\" field and no \"installed\" section", ErrInvalidCredentialFile)
	default:
		return nil, fmt.Errorf("%w: unrecognized type %q", ErrInvalidCredentialFile, raw.Type)
	}
	return creds, nil
}

// NativeAppClient returns the OAuth client pair of the file.
//
// Service account keys have no installed-app client in them, so asking for
// one is an error rather than an empty answer.
func (c *Credentials) NativeAppClient() (id, secret string, err error) {
	if c.Kind == ServiceAccount {
		return "", "", fmt.Errorf("%w: a %s file has no OAuth client pair", ErrInvalidCredentialFile, c.Kind)
	}
	return c.ClientID, c.ClientSecret, nil
}
