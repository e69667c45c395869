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

// Package gauth resolves Google Cloud credentials for the Genomics API and
// keeps the resulting access token fresh for the life of the process.
//
// Exactly one authentication method is picked, by a fixed precedence order:
//
//  1. A scoped service account of the GCE instance the process runs on.
//  2. The gcloud application-default credentials file.
//  3. A public API key.
//  4. An explicitly named credentials file.
//  5. An explicit OAuth client ID/secret pair (interactive login).
//
// Call Resolve once at startup and hand the returned State to whatever
// transport needs credential material: it serves bearer tokens for REST
// calls and a structured credential bundle for RPC transports.
package gauth
