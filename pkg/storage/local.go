package storage

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// OpenLocal opens a file, automatically decompressing if it's gzip-compressed.
// Closing the returned reader closes every underlying resource.
func OpenLocal(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !IsGzipFile(path) {
		return file, nil
	}

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &stackCloser{Reader: gzReader, closers: []io.Closer{gzReader, file}}, nil
}

// CreateLocal creates a file and its parent directories, compressing the
// output when the path ends in .gz.
func CreateLocal(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	if !IsGzipFile(path) {
		return file, nil
	}

	gzWriter := gzip.NewWriter(file)
	return &stackCloser{Writer: gzWriter, closers: []io.Closer{gzWriter, file}}, nil
}

// IsGzipFile returns true if the file path indicates gzip compression.
func IsGzipFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// stackCloser closes its closers in order and returns the first error.
type stackCloser struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (s *stackCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
