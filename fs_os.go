package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

type OS struct {
}

func (f OS) List(dir string) (file []Info, err error) {
	root := uri(dir).Path
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		u := uri(path)
		file = append(file, Info{URL: &u, Size: int(fi.Size())})
		return nil
	})
	return file, err
}

// Open labels local files by extension; the detector still has the last word.
func (f OS) Open(ctx context.Context, file string) (*Object, error) {
	path := uri(file).Path
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Object{ReadCloser: fd, Type: mime.TypeByExtension(filepath.Ext(path))}, nil
}

func (f OS) Create(ctx context.Context, file, kind string) (io.WriteCloser, error) {
	return os.Create(uri(file).Path)
}

func (f OS) Close() error { return nil }

func osstatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	}
	return 0
}
