package adapter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

var ErrObjectNotFound = goerr.New("object not found")

// Storage is the interface for exported email objects
type Storage interface {
	// Put returns a writer that saves the object at key. The object is
	// committed when the writer is closed.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens the object at key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Location describes where key is stored, for display
	Location(key string) string
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

type StorageOption func(*storageClient)

// WithPrefix prepends prefix to every object key.
func WithPrefix(prefix string) StorageOption {
	return func(s *storageClient) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string, opts ...StorageOption) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	s := &storageClient{
		bucketName: bucketName,
		client:     client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *storageClient) object(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	writer := s.client.Bucket(s.bucketName).Object(s.object(key)).NewWriter(ctx)
	writer.ContentType = "text/plain; charset=utf-8"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(s.object(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, goerr.Wrap(ErrObjectNotFound, "object does not exist", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}

	return reader, nil
}

func (s *storageClient) Location(key string) string {
	return "gs://" + s.bucketName + "/" + s.object(key)
}

// localStorage keeps objects as files under a directory
type localStorage struct {
	dir string
}

// NewLocalStorage stores objects under dir, creating it when needed.
func NewLocalStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create export directory", goerr.V("dir", dir))
	}
	return &localStorage{dir: dir}, nil
}

func (s *localStorage) path(key string) (string, error) {
	p := filepath.Join(s.dir, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", goerr.New("object key escapes the export directory", goerr.V("key", key))
	}
	return p, nil
}

func (s *localStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create object directory", goerr.V("key", key))
	}

	f, err := os.Create(p)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create object file", goerr.V("key", key))
	}
	return f, nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, goerr.Wrap(ErrObjectNotFound, "object does not exist", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open object file", goerr.V("key", key))
	}
	return f, nil
}

func (s *localStorage) Location(key string) string {
	p, err := s.path(key)
	if err != nil {
		return key
	}
	return p
}
