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
	"errors"

	"github.com/googlegenomics/gauth/internal"
)

var (
	// ErrUnauthenticated is returned by authenticated operations when no
	// credential is configured. Call Resolve first.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrRefreshSuspended is returned when a token is needed but refreshing
	// was suspended by an earlier failure and no usable token is cached.
	ErrRefreshSuspended = errors.New("token refresh suspended after a failed attempt")

	// ErrInvalidCredentialFile means a credential file exists but holds
	// something the resolver does not recognize. It aborts resolution: a
	// malformed file never silently falls back to another method.
	ErrInvalidCredentialFile = internal.ErrInvalidCredentialFile

	// ErrBadRefreshToken means the token endpoint rejected the stored
	// refresh token, e.g. after the user revoked the grant.
	ErrBadRefreshToken = internal.ErrBadRefreshToken

	// ErrUserCancelled means the user abandoned the interactive login flow.
	ErrUserCancelled = internal.ErrUserCancelled
)
