package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/yashgoel75/cleit-cdc/internal/gate"
	"github.com/yashgoel75/cleit-cdc/internal/profile"
	"github.com/yashgoel75/cleit-cdc/internal/token"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gatectl",
		Short:        "Inspect how the session gate treats a visitor",
		SilenceUsage: true,
	}
	root.AddCommand(newCheckCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gatectl version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "gatectl", version)
		},
	}
}

type checkOptions struct {
	api          string
	email        string
	path         string
	kind         string
	token        string
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string
	timeout      time.Duration
	onError      string
}

func newCheckCmd() *cobra.Command {
	o := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve a visitor once and print the gate state and decision",
		Example: `  gatectl check --api http://localhost:8080 --email a@x.com --path /jobs --token $TOKEN
  gatectl check --api http://localhost:8080 --email a@x.com --token-url https://idp/token --client-id gate --client-secret s3cret`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.api, "api", "http://localhost:8080", "profile API base URL")
	f.StringVar(&o.email, "email", "", "visitor email; empty means signed out")
	f.StringVar(&o.path, "path", "/dashboard", "location the visitor is at")
	f.StringVar(&o.kind, "kind", gate.KindLayout, "surface kind: layout or greeting")
	f.StringVar(&o.token, "token", "", "bearer token for the profile API")
	f.StringVar(&o.tokenURL, "token-url", "", "OAuth2 token endpoint for client credentials")
	f.StringVar(&o.clientID, "client-id", "", "OAuth2 client id")
	f.StringVar(&o.clientSecret, "client-secret", "", "OAuth2 client secret")
	f.StringSliceVar(&o.scopes, "scope", nil, "OAuth2 scopes")
	f.DurationVar(&o.timeout, "timeout", gate.DefaultResolveTimeout, "resolution timeout")
	f.StringVar(&o.onError, "on-error", "incomplete", "treat credential and fetch failures as incomplete or signed_out")
	cmd.MarkFlagsMutuallyExclusive("token", "token-url")
	cmd.MarkFlagsRequiredTogether("token-url", "client-id", "client-secret")
	return cmd
}

type staticToken gate.Credential

func (t staticToken) Credential(context.Context) (gate.Credential, error) {
	if t == "" {
		return "", errors.New("no token given")
	}
	return gate.Credential(t), nil
}

type checkResult struct {
	Kind        string `json:"kind"`
	Location    string `json:"location"`
	SignedIn    bool   `json:"signedIn"`
	Email       string `json:"email,omitempty"`
	Profile     string `json:"profile"`
	Greeting    string `json:"greeting,omitempty"`
	Redirect    string `json:"redirect,omitempty"`
	ResolveTime string `json:"resolveTime"`
	Error       string `json:"error,omitempty"`
}

func runCheck(ctx context.Context, out io.Writer, o *checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var opts gate.Options
	switch o.kind {
	case gate.KindLayout:
		opts = gate.LayoutOptions(nil, nil, nil)
	case gate.KindGreeting:
		opts = gate.GreetingOptions(nil, nil, nil, nil)
	default:
		return fmt.Errorf("unknown kind %q", o.kind)
	}

	var tokens gate.TokenProvider = staticToken(o.token)
	if o.tokenURL != "" {
		tokens = token.NewClientCredentials(ctx, o.tokenURL, o.clientID, o.clientSecret, o.scopes...)
	}
	mode := gate.ParseFailureMode(o.onError)
	res := &gate.Resolver{
		Tokens:       tokens,
		Profiles:     profile.NewFetcher(o.api, &http.Client{Timeout: o.timeout}),
		Timeout:      o.timeout,
		OnTokenError: mode,
		OnFetchError: mode,
	}

	st, took, err := resolveOnce(ctx, res, o.email)
	d := opts.Policy.Decide(st, o.path)

	r := checkResult{
		Kind:        o.kind,
		Location:    gate.CleanLocation(o.path),
		SignedIn:    st.SignedIn(),
		Profile:     st.Profile.String(),
		Greeting:    gate.Greeting(st),
		Redirect:    d.Redirect,
		ResolveTime: took.Round(time.Millisecond).String(),
	}
	if st.Identity != nil {
		r.Email = st.Identity.Email
	}
	if err != nil {
		r.Error = err.Error()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// resolveOnce builds the state a freshly mounted surface would settle on.
func resolveOnce(ctx context.Context, res *gate.Resolver, email string) (gate.GateState, time.Duration, error) {
	if email == "" {
		return gate.GateState{AuthChecked: true, Generation: 1}, 0, nil
	}

	start := time.Now()
	id := gate.Identity{Email: email}
	out := res.Resolve(ctx, id)
	took := time.Since(start)
	if out.SignedOut {
		return gate.GateState{AuthChecked: true, Generation: 1}, took, out.Err
	}
	return gate.GateState{
		AuthChecked: true,
		Identity:    &id,
		Profile:     out.Profile,
		DisplayName: out.DisplayName,
		Generation:  1,
	}, took, out.Err
}
