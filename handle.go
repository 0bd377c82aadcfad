package main

import (
	"errors"
	"strings"
	"sync"

	"github.com/as/log"
	"github.com/google/uuid"
)

// ErrNoHandle is returned for handles that were never minted or are
// already revoked.
var ErrNoHandle = errors.New("no such handle")

// Handle is a revocable reference to a resource held in memory.
type Handle struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Kind string `json:"type"`
	Size int    `json:"size"`
}

// Store hands out handles for fetched resources and frees their memory
// when they are revoked. It does not deduplicate: every Mint holds its
// own copy, even for the same address.
type Store struct {
	base string
	m    sync.Map // id -> *Resource
}

// NewStore returns a store whose handle URLs start with base. An empty
// base yields "blob:" URLs.
func NewStore(base string) *Store {
	if base == "" {
		base = "blob:"
	} else if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Store{base: base}
}

func (s *Store) Mint(res *Resource) Handle {
	id := uuid.NewString()
	s.m.Store(id, res)
	liveHandles.Inc()
	heldBytes.Add(float64(res.Len()))
	h := Handle{ID: id, URL: s.base + id, Kind: res.Kind, Size: res.Len()}
	log.Debug.Add("id", id, "kind", h.Kind, "size", h.Size).Printf("mint")
	return h
}

func (s *Store) Lookup(id string) (*Resource, bool) {
	v, ok := s.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Resource), true
}

// Revoke invalidates id and releases its memory.
func (s *Store) Revoke(id string) error {
	v, ok := s.m.LoadAndDelete(id)
	if !ok {
		return ErrNoHandle
	}
	res := v.(*Resource)
	liveHandles.Dec()
	heldBytes.Sub(float64(res.Len()))
	log.Debug.Add("id", id, "size", res.Len()).Printf("revoke")
	return res.Body.Close()
}

func (s *Store) Len() (n int) {
	s.m.Range(func(key, value interface{}) bool {
		n++
		return true
	})
	return n
}

// Bytes is the memory held by live handles.
func (s *Store) Bytes() (n int) {
	s.m.Range(func(key, value interface{}) bool {
		n += value.(*Resource).Len()
		return true
	})
	return n
}

// Close revokes every live handle.
func (s *Store) Close() error {
	var ids []string
	s.m.Range(func(key, value interface{}) bool {
		ids = append(ids, key.(string))
		return true
	})
	for _, id := range ids {
		s.Revoke(id)
	}
	if len(ids) > 0 {
		log.Info.Add("handles", len(ids)).Printf("revoked remaining handles")
	}
	return nil
}
