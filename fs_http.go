package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

type HTTP struct {
	// Client defaults to http.DefaultClient
	Client *http.Client
}

func (f HTTP) client() *http.Client {
	if f.Client == nil {
		return http.DefaultClient
	}
	return f.Client
}

func (f HTTP) List(dir string) ([]Info, error) {
	u := uri(dir)
	return []Info{{URL: &u}}, nil
}

// newHTTPRequest applies the -A and -H flags to a new request.
func newHTTPRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if *agent != "" {
		req.Header.Set("User-Agent", *agent)
	}
	if *header != "" {
		kv := strings.SplitN(*header, ":", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, fmt.Errorf("bad header %q: want key: value", *header)
		}
		req.Header.Set(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]))
	}
	return req, nil
}

// Open holds a slot in sema until the returned body is closed.
func (f HTTP) Open(ctx context.Context, file string) (*Object, error) {
	req, err := newHTTPRequest(ctx, "GET", file)
	if err != nil {
		return nil, &FetchError{URL: file, Err: err}
	}
	release := func() {}
	if sema != nil {
		select {
		case sema <- true:
		case <-ctx.Done():
			return nil, &FetchError{URL: file, Err: ctx.Err()}
		}
		var once sync.Once
		release = func() { once.Do(func() { <-sema }) }
	}
	resp, err := f.client().Do(req)
	if *debug {
		logopen("open", file, resp, err)
	}
	if err != nil {
		release()
		return nil, &FetchError{URL: file, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		release()
		return nil, &FetchError{URL: file, Status: resp.StatusCode}
	}
	body := &slotBody{ReadCloser: resp.Body, release: release}
	return &Object{ReadCloser: body, Type: resp.Header.Get("Content-Type")}, nil
}

type slotBody struct {
	io.ReadCloser
	release func()
}

func (b *slotBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

func (f HTTP) Create(ctx context.Context, file, kind string) (io.WriteCloser, error) {
	return nil, fmt.Errorf("http: create: %w", errNotImplemented)
}

func (f HTTP) Close() error { return nil }
