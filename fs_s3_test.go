package main

import (
	"sync"
	"testing"
)

func TestS3EnsureConcurrent(t *testing.T) {
	g := &S3{}
	ok := make([]bool, 8)
	var wg sync.WaitGroup
	for i := range ok {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok[i] = g.ensure()
		}(i)
	}
	wg.Wait()
	for i := range ok {
		if ok[i] != ok[0] {
			t.Fatalf("goroutine %d: have %v want %v", i, ok[i], ok[0])
		}
	}
	if ok[0] && (g.c == nil || g.u == nil) {
		t.Fatal("ensure succeeded without a client")
	}
}

func TestUploadInput(t *testing.T) {
	defer func(a string) { *acl = a }(*acl)

	*acl = ""
	in := uploadInput(nil, "b", "rec/a.ogg", "audio/ogg")
	if in.ACL != nil || *in.ContentType != "audio/ogg" || *in.Bucket != "b" || *in.Key != "rec/a.ogg" {
		t.Fatalf("bad input: %v", in)
	}

	*acl = "public-read"
	in = uploadInput(nil, "b", "rec/a.ogg", "audio/ogg")
	*acl = "private"
	if in.ACL == nil || *in.ACL != "public-read" {
		t.Fatalf("bad acl: %v", in.ACL)
	}
}
