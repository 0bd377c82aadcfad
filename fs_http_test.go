package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSema(t *testing.T) {
	defer func(s chan bool) { sema = s }(sema)
	ts := origin(t, http.StatusOK, "audio/ogg", oggBody)

	sema = make(chan bool, 1)
	obj, err := HTTP{}.Open(context.Background(), ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(sema) != 1 {
		t.Fatalf("slot released before the body was read: %d held", len(sema))
	}
	io.Copy(io.Discard, obj)
	obj.Close()
	obj.Close()
	if len(sema) != 0 {
		t.Fatalf("have %d slots held after close", len(sema))
	}

	if _, err := Fetch(context.Background(), ts.URL); err != nil {
		t.Fatal(err)
	}
	bad := origin(t, http.StatusNotFound, "", "")
	Fetch(context.Background(), bad.URL)
	if len(sema) != 0 {
		t.Fatalf("have %d slots held after fetch", len(sema))
	}

	sema = make(chan bool)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = Fetch(ctx, ts.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("have %v, want deadline FetchError", err)
	}
}

func TestHTTPHeaders(t *testing.T) {
	defer func(a, h string) { *agent, *header = a, h }(*agent, *header)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" || r.UserAgent() != "rewrap-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, oggBody)
	}))
	defer ts.Close()

	_, err := Fetch(context.Background(), ts.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusUnauthorized {
		t.Fatalf("have %v, want 401", err)
	}

	*agent, *header = "rewrap-test", "Authorization: Bearer abc"
	res, err := Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != "audio/ogg" {
		t.Fatalf("have kind %q", res.Kind)
	}

	*header = "no colon here"
	if _, err := Fetch(context.Background(), ts.URL); !errors.As(err, &fe) || fe.Status != 0 {
		t.Fatalf("have %v, want header FetchError", err)
	}
}
