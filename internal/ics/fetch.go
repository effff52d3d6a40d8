package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "shiftwage/internal/log"
)

// ErrNotModifiedUncached means the server answered 304 for a calendar this
// machine has no copy of, usually because the cache directory was wiped.
var ErrNotModifiedUncached = errors.New("ics: 304 Not Modified without a cached copy")

// StatusError is a non-OK HTTP answer for which no cached copy existed.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "ics: server answered " + e.Status
}

// Origin says where the bytes returned by Fetch came from.
type Origin string

const (
	OriginNetwork     Origin = "network"
	OriginNotModified Origin = "not_modified"
	// OriginStale is a cached copy served because the server failed.
	OriginStale Origin = "stale"
)

// Download is a fetched calendar body.
type Download struct {
	Body   []byte
	Origin Origin
}

// validators are the conditional-request headers remembered for a URL.
type validators struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Fetcher downloads published shift calendars. Each URL is cached as a
// pair of files, <key>.ics and <key>.json, directly under dir.
type Fetcher struct {
	client *http.Client
	dir    string
}

// NewFetcher returns a Fetcher caching under dir.
func NewFetcher(dir string) *Fetcher {
	if dir == "" {
		dir = "./cache/ics-cache"
	}
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		dir:    dir,
	}
}

// Fetch downloads rawURL with a conditional GET. When the server cannot be
// reached or answers with an error, the last good copy is served as
// OriginStale; without one the failure is returned (*StatusError for HTTP
// errors).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Download, error) {
	if rawURL == "" {
		return Download{}, errors.New("ics: empty calendar URL")
	}
	key := cacheKey(rawURL)
	safe := redactURL(rawURL)

	cached, _ := os.ReadFile(f.bodyPath(key))
	v := f.readValidators(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Download{}, err
	}
	if len(cached) > 0 {
		if v.ETag != "" {
			req.Header.Set("If-None-Match", v.ETag)
		}
		if v.LastModified != "" {
			req.Header.Set("If-Modified-Since", v.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) == 0 {
			return Download{}, err
		}
		appLog.Error("calendar server unreachable; using cached copy", err, "url", safe)
		return Download{Body: cached, Origin: OriginStale}, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Download{}, err
		}
		next := validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
		}
		if err := f.store(key, next, body); err != nil {
			appLog.Error("calendar cache write failed", err, "url", safe)
		}
		return Download{Body: body, Origin: OriginNetwork}, nil

	case resp.StatusCode == http.StatusNotModified:
		if len(cached) == 0 {
			return Download{}, ErrNotModifiedUncached
		}
		return Download{Body: cached, Origin: OriginNotModified}, nil

	case len(cached) > 0:
		appLog.Error("calendar server failed; using cached copy",
			&StatusError{Code: resp.StatusCode, Status: resp.Status},
			"url", safe,
		)
		return Download{Body: cached, Origin: OriginStale}, nil

	default:
		return Download{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:8])
}

func (f *Fetcher) bodyPath(key string) string {
	return filepath.Join(f.dir, key+".ics")
}

func (f *Fetcher) validatorsPath(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// readValidators returns the zero value when nothing usable is cached.
func (f *Fetcher) readValidators(key string) validators {
	var v validators
	data, err := os.ReadFile(f.validatorsPath(key))
	if err != nil {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return validators{}
	}
	return v
}

// store writes the body before its validators so that validators never
// describe a body that is not on disk.
func (f *Fetcher) store(key string, v validators, body []byte) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(f.bodyPath(key), body, 0o600); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(f.validatorsPath(key), data, 0o600)
}

// redactURL keeps only scheme and host: published calendar URLs usually
// carry a private token in the path or query.
//
//	https://example.com/private/abcd.ics?token=x -> https://example.com/...(redacted)
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "ics://...(redacted)"
	}
	return fmt.Sprintf("%s://%s/...(redacted)", u.Scheme, u.Host)
}
