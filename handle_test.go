package main

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func resource(body string) *Resource {
	b := &Block{}
	b.Init()
	b.Write([]byte(body))
	b.Fin()
	f := Detect(b.Head(HeadLen))
	return &Resource{URL: "mem://" + body, Format: f, Kind: ResolveKind(f, ""), Body: b}
}

func TestStoreMintRevoke(t *testing.T) {
	st := NewStore("http://localhost:8080/blob")
	h := st.Mint(resource(oggBody))
	if !strings.HasPrefix(h.URL, "http://localhost:8080/blob/") || !strings.HasSuffix(h.URL, h.ID) {
		t.Fatalf("bad url: %q", h.URL)
	}
	if h.Kind != "audio/ogg" || h.Size != len(oggBody) {
		t.Fatalf("bad handle: %+v", h)
	}
	res, ok := st.Lookup(h.ID)
	if !ok || res.Len() != len(oggBody) {
		t.Fatalf("lookup: have %v %v", res, ok)
	}
	if st.Bytes() != len(oggBody) {
		t.Fatalf("have %d bytes held", st.Bytes())
	}

	if err := st.Revoke(h.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Lookup(h.ID); ok {
		t.Fatal("revoked handle still resolves")
	}
	if res.Len() != 0 {
		t.Fatal("revoked handle still holds memory")
	}
	if err := st.Revoke(h.ID); !errors.Is(err, ErrNoHandle) {
		t.Fatalf("second revoke: have %v want ErrNoHandle", err)
	}
	if err := st.Revoke("nope"); !errors.Is(err, ErrNoHandle) {
		t.Fatalf("unknown revoke: have %v want ErrNoHandle", err)
	}
}

// Minting the same resource twice yields two independent handles.
func TestStoreIndependentHandles(t *testing.T) {
	st := NewStore("")
	a := st.Mint(resource(webmBody))
	b := st.Mint(resource(webmBody))
	if a.ID == b.ID {
		t.Fatal("duplicate handle id")
	}
	st.Revoke(a.ID)
	if _, ok := st.Lookup(b.ID); !ok {
		t.Fatal("revoking one handle released the other")
	}
}

func TestStoreClose(t *testing.T) {
	st := NewStore("")
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Mint(resource(mp4Body))
		}()
	}
	wg.Wait()
	if st.Len() != 32 {
		t.Fatalf("have %d handles want 32", st.Len())
	}
	st.Close()
	if st.Len() != 0 || st.Bytes() != 0 {
		t.Fatalf("have %d handles, %d bytes after close", st.Len(), st.Bytes())
	}
}
