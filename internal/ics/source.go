package ics

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	appLog "shiftwage/internal/log"
)

// IsURL reports whether input names a remote calendar rather than a file.
func IsURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Load returns the raw calendar bytes for input, a local path or an
// http(s) URL. A nil fetcher is only valid for local paths. Every failure is
// wrapped with ErrIO; fetch failures keep their cause (*StatusError,
// ErrNotModifiedUncached) reachable through errors.As and errors.Is.
func Load(ctx context.Context, input string, fetcher *Fetcher) ([]byte, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: no input configured", ErrIO)
	}

	if IsURL(input) {
		if fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher for %s", ErrIO, redactURL(input))
		}
		dl, err := fetcher.Fetch(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrIO, redactURL(input), err)
		}
		if dl.Origin == OriginStale {
			appLog.Info("reporting on a stale calendar copy", "url", redactURL(input))
		}
		appLog.Debug("calendar fetched", "url", redactURL(input), "origin", dl.Origin, "bytes", len(dl.Body))
		return dl.Body, nil
	}

	return readFile(input)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}
	return body, nil
}
