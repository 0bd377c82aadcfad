package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/as/log"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	s3 "github.com/aws/aws-sdk-go/service/s3"
	s3m "github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type S3 struct {
	once sync.Once
	c    *s3.S3
	u    *s3m.Uploader
	ctr  int64 // how many uploaders are uploading
	err  error
}

func (g *S3) ensure() bool {
	g.once.Do(func() {
		s, err := session.NewSession()
		g.err = err
		if err == nil {
			g.c = s3.New(s)
			g.u = s3m.NewUploader(s)
		}
	})
	return g.err == nil
}

func (g *S3) List(dir string) (file []Info, err error) {
	if !g.ensure() {
		return nil, g.err
	}
	u := uri(dir)
	dir = strings.TrimPrefix(u.Path, "/")
	o, err := g.c.ListObjects(&s3.ListObjectsInput{
		Bucket: &u.Host,
		Prefix: &dir,
	})
	if err != nil {
		return nil, err
	}
	for _, v := range o.Contents {
		u := u
		u.Path = "/" + *v.Key
		file = append(file,
			Info{URL: &u, Size: int(*v.Size)},
		)
	}
	return file, nil
}

func (g *S3) Open(ctx context.Context, file string) (*Object, error) {
	if !g.ensure() {
		return nil, g.err
	}
	u := uri(file)
	key := strings.TrimPrefix(u.Path, "/")
	o, err := g.c.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &u.Host,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	obj := &Object{ReadCloser: o.Body}
	if o.ContentType != nil {
		obj.Type = *o.ContentType
	}
	return obj, nil
}

type pipeline struct {
	wait chan error
	err  error
	io.WriteCloser
}

func (p *pipeline) Close() error {
	p.WriteCloser.Close()
	err, first := <-p.wait
	if first {
		p.err = err
		close(p.wait)
	}
	return p.err
}

// Create streams into an upload labelled with kind.
func (g *S3) Create(ctx context.Context, file, kind string) (io.WriteCloser, error) {
	if !g.ensure() {
		return nil, g.err
	}
	u := uri(file)
	key := strings.TrimPrefix(u.Path, "/")
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	pipectl := &pipeline{
		wait:        make(chan error),
		WriteCloser: pw,
	}
	go func() {
		atomic.AddInt64(&g.ctr, +1)
		defer atomic.AddInt64(&g.ctr, -1)
		_, err := g.u.UploadWithContext(ctx, uploadInput(bufio.NewReader(pr), u.Host, key, kind))
		pr.Close()
		pipectl.wait <- err
	}()
	return pipectl, nil
}

func uploadInput(body io.Reader, bucket, key, kind string) *s3m.UploadInput {
	in := &s3m.UploadInput{
		Body:        body,
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &kind,
	}
	if a := *acl; a != "" {
		in.ACL = &a
	}
	return in
}

func (g *S3) Close() error {
	for atomic.LoadInt64(&g.ctr) > 0 {
		log.Info.Add("uploaders", atomic.LoadInt64(&g.ctr)).Printf("s3: waiting for uploads")
		time.Sleep(time.Second)
	}
	return nil
}

func s3status(err error) int {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) {
		return rf.StatusCode()
	}
	return 0
}
