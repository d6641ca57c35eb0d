// Package storage opens input tables and creates export files on the local
// filesystem or in S3, addressed by path or s3:// URI.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/storage/s3"
)

const s3Scheme = "s3://"

// Location is a parsed storage address.
type Location struct {
	// Bucket is set for s3:// locations only.
	Bucket string

	// Path is the object key for S3 or the filesystem path otherwise.
	Path string
}

// Remote reports whether the location is in S3.
func (l Location) Remote() bool { return l.Bucket != "" }

// String returns the location in the form it was given.
func (l Location) String() string {
	if l.Remote() {
		return s3Scheme + l.Bucket + "/" + l.Path
	}
	return l.Path
}

// Parse splits uri into a Location. Anything without the s3:// prefix is a
// local path.
func Parse(uri string) (Location, error) {
	if !strings.HasPrefix(strings.ToLower(uri), s3Scheme) {
		if uri == "" {
			return Location{}, fmt.Errorf("empty path")
		}
		return Location{Path: uri}, nil
	}

	rest := uri[len(s3Scheme):]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, fmt.Errorf("invalid S3 URI %q: want s3://bucket/key", uri)
	}
	return Location{Bucket: bucket, Path: key}, nil
}

// Store resolves locations to readers and writers. The S3 client is created
// on first use.
type Store struct {
	s3cfg s3.Config

	mu     sync.Mutex
	client *s3.Client
}

// New creates a Store using s3cfg for s3:// locations.
func New(s3cfg s3.Config) *Store {
	return &Store{s3cfg: s3cfg}
}

// NewWithClient creates a Store with a preconfigured S3 client.
func NewWithClient(client *s3.Client) *Store {
	return &Store{client: client}
}

func (s *Store) s3Client(ctx context.Context) (*s3.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	c, err := s3.NewClient(ctx, s.s3cfg)
	if err != nil {
		return nil, err
	}
	s.client = c
	return c, nil
}

// Open returns a reader for uri. Local .gz files are decompressed; S3 objects
// are returned as stored. Failures are LoadFailure errors.
func (s *Store) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, amerrors.LoadFailure(uri, err)
	}

	if !loc.Remote() {
		rc, err := OpenLocal(loc.Path)
		if err != nil {
			return nil, amerrors.LoadFailure(uri, err)
		}
		return rc, nil
	}

	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, amerrors.LoadFailure(uri, err)
	}
	rc, err := client.Reader(ctx, loc.Bucket, loc.Path)
	if err != nil {
		return nil, amerrors.LoadFailure(uri, err)
	}
	return rc, nil
}

// Create returns a writer for uri. Local .gz paths are compressed; S3
// objects are uploaded on Close. Failures are WriteFailed errors.
func (s *Store) Create(ctx context.Context, uri, contentType string) (io.WriteCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, amerrors.WriteFailed(uri, err)
	}

	if !loc.Remote() {
		wc, err := CreateLocal(loc.Path)
		if err != nil {
			return nil, amerrors.WriteFailed(uri, err)
		}
		return wc, nil
	}

	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, amerrors.WriteFailed(uri, err)
	}
	return client.Writer(ctx, loc.Bucket, loc.Path, contentType), nil
}
