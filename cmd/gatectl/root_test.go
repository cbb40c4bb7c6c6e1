package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func profileAPI(t *testing.T, complete bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"name": "Ada", "isProfileComplete": complete},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) checkResult {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var r checkResult
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatalf("output %q: %v", out.String(), err)
	}
	return r
}

func TestCheckIncompleteRedirectsToAccount(t *testing.T) {
	api := profileAPI(t, false)
	r := execute(t, "check", "--api", api.URL, "--email", "a@x.com", "--path", "/jobs?tab=1", "--token", "tok")

	if !r.SignedIn || r.Profile != "incomplete" || r.Redirect != "/account" || r.Location != "/jobs" {
		t.Fatalf("result = %+v", r)
	}
}

func TestCheckCompleteStays(t *testing.T) {
	api := profileAPI(t, true)
	r := execute(t, "check", "--api", api.URL, "--email", "a@x.com", "--path", "/jobs", "--token", "tok")

	if r.Profile != "complete" || r.Redirect != "" || r.Greeting != "Welcome, Ada" {
		t.Fatalf("result = %+v", r)
	}
}

func TestCheckSignedOut(t *testing.T) {
	r := execute(t, "check", "--email", "", "--path", "/dashboard")
	if r.SignedIn || r.Redirect != "/auth/login" {
		t.Fatalf("result = %+v", r)
	}

	r = execute(t, "check", "--kind", "greeting", "--path", "/dashboard")
	if r.Redirect != "/" {
		t.Fatalf("greeting result = %+v", r)
	}
}

func TestCheckFailureModes(t *testing.T) {
	api := profileAPI(t, true)

	r := execute(t, "check", "--api", api.URL, "--email", "a@x.com", "--path", "/jobs", "--token", "wrong")
	if r.Profile != "incomplete" || r.Redirect != "/account" || r.Error == "" {
		t.Fatalf("incomplete mode = %+v", r)
	}

	r = execute(t, "check", "--api", api.URL, "--email", "a@x.com", "--path", "/jobs", "--on-error", "signed_out")
	if r.SignedIn || r.Redirect != "/auth/login" || r.Error == "" {
		t.Fatalf("signed_out mode = %+v", r)
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "gatectl ") {
		t.Fatalf("version output %q", out.String())
	}
}
