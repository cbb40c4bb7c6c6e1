package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yashgoel75/cleit-cdc/internal/gate"
)

const maxBody = 1 << 20

// Fetcher calls GET /api/user on a profile API.
type Fetcher struct {
	base   string
	client *http.Client
}

// NewFetcher returns a fetcher for baseURL. A nil client gets a 10s timeout.
func NewFetcher(baseURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Fetcher{base: strings.TrimRight(baseURL, "/"), client: client}
}

type userEnvelope struct {
	User *struct {
		Name              string `json:"name"`
		IsProfileComplete *bool  `json:"isProfileComplete"`
	} `json:"user"`
}

func (f *Fetcher) FetchProfile(ctx context.Context, email string, cred gate.Credential) (gate.ProfileRecord, error) {
	u := f.base + "/api/user?email=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return gate.ProfileRecord{}, &gate.ProfileFetchError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+string(cred))
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return gate.ProfileRecord{}, &gate.ProfileFetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return gate.ProfileRecord{}, &gate.ProfileFetchError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var env userEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&env); err != nil {
		return gate.ProfileRecord{}, &gate.ProfileFetchError{Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	if env.User == nil {
		return gate.ProfileRecord{}, &gate.ProfileFetchError{Status: resp.StatusCode, Err: errors.New("response has no user")}
	}

	return gate.ProfileRecord{
		Name:              env.User.Name,
		IsProfileComplete: env.User.IsProfileComplete,
	}, nil
}
