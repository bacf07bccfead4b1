// Package download resolves document source fields into retrievable
// locations. Three modes exist: a download API that serves batches of
// paths, direct S3 object keys, and files mounted on the local filesystem.
package download

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Modes.
const (
	ModeAPI   = "api"
	ModeS3    = "s3"
	ModeLocal = "local"
)

// Resolver turns document path-field values into download targets.
type Resolver struct {
	Mode        string
	APIURL      string
	RawFileRoot string
	S3Bucket    string
}

// Target is one resolved download location.
type Target struct {
	// URL is set in api mode: one batch URL covering all requested paths.
	URL string `json:"url,omitempty"`
	// Key is set in s3 mode: bucket-relative object key.
	Key string `json:"key,omitempty"`
	// Bucket accompanies Key in s3 mode.
	Bucket string `json:"bucket,omitempty"`
	// Path is set in local mode: absolute filesystem path.
	Path string `json:"path,omitempty"`
}

// Resolve maps the given document paths to download targets. In api mode
// the result is a single target whose URL carries every path as a repeated
// query parameter; in s3 and local modes there is one target per path.
func (r *Resolver) Resolve(paths []string) ([]Target, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	switch r.Mode {
	case ModeAPI:
		if r.APIURL == "" {
			return nil, fmt.Errorf("api download mode requires an api url")
		}
		u, err := url.Parse(r.APIURL)
		if err != nil {
			return nil, fmt.Errorf("parse download api url: %w", err)
		}
		q := u.Query()
		for _, p := range paths {
			q.Add("paths", p)
		}
		u.RawQuery = q.Encode()
		return []Target{{URL: u.String()}}, nil

	case ModeS3:
		if r.S3Bucket == "" {
			return nil, fmt.Errorf("s3 download mode requires a bucket")
		}
		targets := make([]Target, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, Target{
				Bucket: r.S3Bucket,
				Key:    strings.TrimPrefix(p, "/"),
			})
		}
		return targets, nil

	case ModeLocal:
		targets := make([]Target, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, Target{
				Path: filepath.Join(r.RawFileRoot, filepath.FromSlash(p)),
			})
		}
		return targets, nil

	default:
		return nil, fmt.Errorf("unknown download mode %q", r.Mode)
	}
}
