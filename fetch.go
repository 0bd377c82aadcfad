package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/as/log"
)

// FetchError is the only error Fetch returns. Status is the upstream
// status code, or zero when the request never got a response.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: failed", e.URL)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Resource is a fetched body held in memory along with its resolved label.
type Resource struct {
	URL      string
	Declared string // content type claimed by the origin, may be empty
	Format   Format
	Kind     string
	Body     *Block
}

func (r *Resource) Len() int { return r.Body.Len() }

// Reader returns a seekable view of the body.
func (r *Resource) Reader() *io.SectionReader {
	return io.NewSectionReader(r.Body, 0, int64(r.Body.Len()))
}

// ResolveKind picks the label a player should be given: the detected
// format, else the declared type if it is audio, else kindDefault. A
// declared type comes back normalized with its parameters kept.
func ResolveKind(f Format, declared string) string {
	if k := f.Kind(); k != "" {
		return k
	}
	mt, params, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(mt, "audio/") {
		return kindDefault
	}
	if kind := mime.FormatMediaType(mt, params); kind != "" {
		return kind
	}
	return mt
}

// Fetch retrieves addr once through the driver for its scheme and labels
// the body by its leading bytes. It does not retry.
func Fetch(ctx context.Context, addr string) (res *Resource, err error) {
	start := time.Now()
	fetchStarted.Inc()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			fetchFailed.Inc()
			log.Error.Add("action", "fetch", "src", addr, "err", err).Printf("")
		}
	}()

	fs := driver[uri(addr).Scheme]
	if fs == nil {
		return nil, &FetchError{URL: addr, Err: errScheme}
	}
	obj, err := fs.Open(ctx, addr)
	if err != nil {
		return nil, asFetchError(addr, err)
	}
	defer obj.Close()

	body := &Block{}
	body.Init()
	if _, err := io.Copy(body, rx{obj}); err != nil {
		body.Close()
		return nil, &FetchError{URL: addr, Err: fmt.Errorf("read body: %w", err)}
	}
	body.Fin()

	f := Detect(body.Head(HeadLen))
	res = &Resource{
		URL:      addr,
		Declared: obj.Type,
		Format:   f,
		Kind:     ResolveKind(f, obj.Type),
		Body:     body,
	}
	detected.WithLabelValues(f.String()).Inc()
	log.Debug.Add("src", addr, "declared", obj.Type, "format", f, "kind", res.Kind, "size", res.Len()).Printf("fetched")
	return res, nil
}

// Rewrap fetches addr and mints a handle for it in st. Nothing is minted
// when the fetch fails. The caller owns the handle and must revoke it.
func Rewrap(ctx context.Context, st *Store, addr string) (Handle, string, error) {
	res, err := Fetch(ctx, addr)
	if err != nil {
		return Handle{}, "", err
	}
	h := st.Mint(res)
	return h, h.Kind, nil
}

func asFetchError(addr string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.URL == "" {
			fe.URL = addr
		}
		return fe
	}
	return &FetchError{URL: addr, Status: statusOf(err), Err: err}
}
