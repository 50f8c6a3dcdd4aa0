package photo

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const defaultMaxBytes = 15 << 20

// Store is a blob store that may resolve some references directly without
// going over HTTP.
type Store interface {
	Owns(ref string) bool
	Get(ctx context.Context, ref string) ([]byte, error)
}

// FetchError describes a photo that could not be retrieved.
type FetchError struct {
	Ref    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Ref, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher loads photo bytes by reference. References owned by the configured
// store are read from it; absolute URLs are fetched over HTTP and relative
// ones are resolved against baseURL.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	store      Store
	maxBytes   int64
}

func NewFetcher(baseURL string, store Store, timeout time.Duration) (*Fetcher, error) {
	var normalized string
	if strings.TrimSpace(baseURL) != "" {
		var err error
		normalized, err = normalizeBaseURL(baseURL)
		if err != nil {
			return nil, err
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Fetcher{
		baseURL:    normalized,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		maxBytes:   defaultMaxBytes,
	}, nil
}

// WithHTTPClient overrides the default http.Client. Primarily useful for testing.
func (f *Fetcher) WithHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		f.httpClient = httpClient
	}
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &FetchError{Ref: ref, Err: errors.New("empty reference")}
	}

	if f.store != nil && f.store.Owns(ref) {
		data, err := f.store.Get(ctx, ref)
		if err != nil {
			return nil, &FetchError{Ref: ref, Err: err}
		}
		return data, nil
	}

	target, err := f.resolve(ref)
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, &FetchError{Ref: ref, Err: errors.Wrapf(err, "network error contacting %s", req.URL.Hostname())}
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, &FetchError{Ref: ref, Err: urlErr.Err}
		}
		return nil, &FetchError{Ref: ref, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &FetchError{Ref: ref, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: errors.Wrap(err, "read body")}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{Ref: ref, Err: errors.Newf("photo exceeds %d bytes", f.maxBytes)}
	}
	return data, nil
}

func (f *Fetcher) resolve(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	if f.baseURL == "" {
		return "", errors.Newf("relative reference %q without a base URL", ref)
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return f.baseURL + ref, nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", errors.Wrap(err, "invalid photo base URL")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.Newf("invalid photo base URL: %s", raw)
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""

	return strings.TrimSuffix(parsed.String(), "/"), nil
}
