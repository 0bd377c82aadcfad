package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/as/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

type GS struct {
	once sync.Once
	c    *storage.Client
	err  error
}

func (g *GS) ensure() bool {
	g.once.Do(func() {
		g.c, g.err = storage.NewClient(context.Background())
	})
	return g.err == nil
}

func (g *GS) List(dir string) (file []Info, err error) {
	if !g.ensure() {
		return nil, g.err
	}
	u := uri(dir)
	dir = strings.TrimPrefix(u.Path, "/")

	it := g.c.Bucket(u.Host).Objects(context.Background(), &storage.Query{Prefix: dir})
	for {
		attr, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return file, err
		}
		u := u
		u.Path = "/" + attr.Name
		file = append(file, Info{URL: &u, Size: int(attr.Size)})
	}
	return file, nil
}

func (g *GS) Open(ctx context.Context, file string) (*Object, error) {
	if !g.ensure() {
		return nil, g.err
	}
	u := uri(file)
	u.Path = strings.TrimPrefix(u.Path, "/")
	log.Debug.Add("host", u.Host, "path", u.Path).Printf("open")
	r, err := g.c.Bucket(u.Host).Object(u.Path).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return &Object{ReadCloser: r, Type: r.Attrs.ContentType}, nil
}

// Create writes an object labelled with kind.
func (g *GS) Create(ctx context.Context, file, kind string) (io.WriteCloser, error) {
	if !g.ensure() {
		return nil, g.err
	}
	u := uri(file)
	u.Path = strings.TrimPrefix(u.Path, "/")
	log.Debug.Add("host", u.Host, "path", u.Path, "kind", kind).Printf("create")
	w := g.c.Bucket(u.Host).Object(u.Path).NewWriter(ctx)
	w.ContentType = kind
	return w, nil
}

func (g *GS) Close() error {
	if g.c != nil {
		return g.c.Close()
	}
	return nil
}

func gsstatus(err error) int {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return http.StatusNotFound
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return 0
}
