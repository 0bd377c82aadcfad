package main

import (
	"errors"
	"io"
	"testing"
)

func TestBlockReadAt(t *testing.T) {
	b := &Block{}
	b.Init()
	if !b.Ready() {
		t.Fatal("block not ready after init")
	}
	b.Write([]byte("0123"))
	b.Write([]byte("4567"))

	p := make([]byte, 6)
	n, err := b.ReadAt(p, 4)
	if n != 4 || err != nil {
		t.Fatalf("unfinished read past end: have %d %v want 4 <nil>", n, err)
	}

	b.Fin()
	n, err = b.ReadAt(p, 4)
	if n != 4 || err != io.EOF {
		t.Fatalf("final read past end: have %d %v want 4 EOF", n, err)
	}
	if string(p[:n]) != "4567" {
		t.Fatalf("have %q", p[:n])
	}
	if n, err = b.ReadAt(p[:2], 0); n != 2 || err != nil {
		t.Fatalf("have %d %v want 2 <nil>", n, err)
	}
	if n, err = b.ReadAt(p, 100); n != 0 || err != io.EOF {
		t.Fatalf("have %d %v want 0 EOF", n, err)
	}
	if string(b.Head(HeadLen)) != "01234567" || string(b.Head(3)) != "012" {
		t.Fatalf("bad head: %q", b.Head(HeadLen))
	}
}

func TestBlockClose(t *testing.T) {
	b := &Block{}
	b.Init()
	b.Write([]byte("OggS"))
	b.Fin()
	b.Close()
	if b.Len() != 0 {
		t.Fatalf("released block holds %d bytes", b.Len())
	}
	if _, err := b.ReadAt(make([]byte, 4), 0); !errors.Is(err, ErrReleased) {
		t.Fatalf("have %v want ErrReleased", err)
	}
	if _, err := b.Write([]byte("x")); !errors.Is(err, ErrReleased) {
		t.Fatalf("have %v want ErrReleased", err)
	}
}
