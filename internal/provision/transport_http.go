// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

type (
	// HTTPTransport fetches with GET and uploads with PUT, which is what
	// pre-signed object storage URLs expect.
	HTTPTransport struct {
		Client *http.Client
	}

	// StatusError is returned for unexpected HTTP response codes.
	StatusError struct {
		Method string
		URL    string
		Code   int
		Status string
	}
)

// Stat issues a HEAD request. The version tag is the ETag, falling back to
// Last-Modified.
func (t *HTTPTransport) Stat(ctx context.Context, loc Location) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, loc.Raw, http.NoBody)
	if err != nil {
		return Info{}, err
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return Info{}, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Info{}, &StatusError{Method: http.MethodHead, URL: loc.Raw, Code: resp.StatusCode, Status: resp.Status}
	}
	version := resp.Header.Get("ETag")
	if version == "" {
		version = resp.Header.Get("Last-Modified")
	}
	return Info{Version: version, Size: resp.ContentLength}, nil
}

// Fetch downloads loc into dst.
func (t *HTTPTransport) Fetch(ctx context.Context, loc Location, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.Raw, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Method: http.MethodGet, URL: loc.Raw, Code: resp.StatusCode, Status: resp.Status}
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", loc.Raw, err)
	}
	return f.Close()
}

// Put uploads src with its size and a Content-Type derived from the file
// extension.
func (t *HTTPTransport) Put(ctx context.Context, src string, loc Location) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, loc.Raw, f)
	if err != nil {
		return err
	}
	contentType := mime.TypeByExtension(filepath.Ext(src))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	resp, err := t.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		return &StatusError{Method: http.MethodPut, URL: loc.Raw, Code: resp.StatusCode, Status: resp.Status}
	}
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}
