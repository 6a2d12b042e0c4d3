package ota

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/powerdock-io/powerdock/pkg/log"
)

// FetchKind classifies a failed release fetch so callers can surface a
// distinct user-visible message per cause.
type FetchKind int

const (
	// FetchConnectionFailed covers transport-level failures: DNS, timeout,
	// refused connections, TLS handshake errors.
	FetchConnectionFailed FetchKind = iota

	// FetchAuthFailed is HTTP 401.
	FetchAuthFailed

	// FetchNotFound is HTTP 404. Several causes collapse here: no releases
	// published, private repo without token, misconfigured repo name.
	FetchNotFound

	// FetchAPIError is any other non-200 status.
	FetchAPIError

	// FetchInvalidResponse is a 200 whose body is unparsable or lacks tag_name.
	FetchInvalidResponse
)

func (k FetchKind) String() string {
	switch k {
	case FetchConnectionFailed:
		return "connection_failed"
	case FetchAuthFailed:
		return "auth_failed"
	case FetchNotFound:
		return "not_found"
	case FetchAPIError:
		return "api_error"
	case FetchInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// FetchError is the classified failure of a release fetch.
type FetchError struct {
	Kind       FetchKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("release fetch %s: %v", e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("release fetch %s: HTTP %d", e.Kind, e.StatusCode)
	default:
		return fmt.Sprintf("release fetch %s", e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ReleaseInfo describes the newest published release. It exists only long
// enough for the comparison decision and is never persisted.
type ReleaseInfo struct {
	Version Version
	RawTag  string
}

const (
	fetchTimeout = 10 * time.Second
	userAgent    = "PowerDock-OTA/1.0"

	// maxReleaseBody bounds the response read; the latest-release payload is
	// a few KB in practice.
	maxReleaseBody = 1 << 20
)

// ReleaseClient fetches latest-release metadata from a GitHub-style API.
type ReleaseClient struct {
	endpoint string
	client   *http.Client
}

// NewReleaseClient builds a client for GET {baseURL}/repos/{owner}/{repo}/releases/latest.
// Certificate verification is on unless insecureSkipVerify explicitly opts
// out, which is logged loudly because it invites man-in-the-middle attacks.
func NewReleaseClient(baseURL, owner, repo string, insecureSkipVerify bool) *ReleaseClient {
	transport := http.DefaultTransport
	if insecureSkipVerify {
		log.Warn("TLS certificate verification DISABLED for release API; use only against trusted networks")
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &ReleaseClient{
		endpoint: fmt.Sprintf("%s/repos/%s/%s/releases/latest", strings.TrimRight(baseURL, "/"), owner, repo),
		client: &http.Client{
			Timeout:   fetchTimeout,
			Transport: transport,
		},
	}
}

// FetchLatestRelease issues one bounded GET against the release endpoint,
// optionally authenticated, and classifies the outcome. It never retries;
// retrying is the caller's decision.
func (c *ReleaseClient) FetchLatestRelease(ctx context.Context, token string) (ReleaseInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return ReleaseInfo{}, &FetchError{Kind: FetchConnectionFailed, Err: err}
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ReleaseInfo{}, &FetchError{Kind: FetchConnectionFailed, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReleaseBody))
	if err != nil {
		return ReleaseInfo{}, &FetchError{Kind: FetchConnectionFailed, Err: err}
	}

	log.Debug("Release API response", "status", resp.StatusCode, "bytes", len(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ReleaseInfo{}, &FetchError{Kind: FetchAuthFailed, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return ReleaseInfo{}, &FetchError{Kind: FetchNotFound, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return ReleaseInfo{}, &FetchError{Kind: FetchAPIError, StatusCode: resp.StatusCode}
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.Unmarshal(body, &release); err != nil {
		return ReleaseInfo{}, &FetchError{Kind: FetchInvalidResponse, Err: err}
	}
	if release.TagName == "" {
		return ReleaseInfo{}, &FetchError{Kind: FetchInvalidResponse, Err: fmt.Errorf("tag_name missing from response")}
	}

	tag := strings.TrimPrefix(release.TagName, "v")

	return ReleaseInfo{
		Version: ParseVersion(tag),
		RawTag:  release.TagName,
	}, nil
}
