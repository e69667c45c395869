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

// Command gauth exercises Genomics API credential resolution from the
// command line: it resolves credentials exactly the way a client process
// would at startup and prints the outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/googlegenomics/gauth"
	"github.com/googlegenomics/gauth/googleoauth"
)

var (
	opts    gauth.Options
	verbose bool
	timeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:          "gauth",
		Short:        "Inspect Google Genomics credential resolution",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.Scope, "scope", gauth.ScopeGenomics, "OAuth scope to request")
	pf.StringVar(&opts.CredentialsFile, "credentials-file", "", "path to a service-account key or installed-app secrets JSON file")
	pf.StringVar(&opts.ClientID, "client-id", "", "OAuth client ID of a native application")
	pf.StringVar(&opts.ClientSecret, "client-secret", "", "OAuth client secret of a native application")
	pf.StringVar(&opts.APIKey, "api-key", "", "public API key (also "+gauth.APIKeyEnvVar+")")
	pf.StringVar(&opts.GcloudCredsPath, "adc-file", "", "override the application-default credentials path")
	pf.BoolVar(&opts.DisableGCEMetadata, "no-gce", false, "do not probe the GCE metadata server")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline, interactive login included")

	root.AddCommand(
		&cobra.Command{
			Use:   "token",
			Short: "Resolve credentials and print an access token (or the API key)",
			RunE:  runToken,
		},
		&cobra.Command{
			Use:   "info",
			Short: "Resolve credentials and show who they belong to",
			RunE:  runInfo,
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolve(ctx context.Context) (*gauth.State, error) {
	state, err := gauth.Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	if !state.IsAuthenticated() {
		return nil, errors.New("no credentials configured")
	}
	return state, nil
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	state, err := resolve(ctx)
	if err != nil {
		return err
	}
	if key := state.APIKey(); key != "" {
		fmt.Println(key)
		return nil
	}
	tok, err := state.BearerToken(ctx)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	state, err := resolve(ctx)
	if err != nil {
		return err
	}
	if state.Mode() == gauth.ModeAPIKey {
		fmt.Println("authenticated with an API key; no token to introspect")
		return nil
	}
	tok, err := state.BearerToken(ctx)
	if err != nil {
		return err
	}
	info, err := googleoauth.GetTokenInfo(ctx, googleoauth.TokenInfoParams{AccessToken: tok})
	if err != nil {
		return err
	}
	if info.Email != "" {
		fmt.Printf("Email:      %s\n", info.Email)
	}
	fmt.Printf("Scopes:     %s\n", info.Scope)
	fmt.Printf("Expires in: %ds\n", info.ExpiresIn)
	return nil
}
