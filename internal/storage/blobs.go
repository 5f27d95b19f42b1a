package storage

import (
	"context"
	"errors"
	"strings"
)

// BlobStore persists generated media and returns a retrieval URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Blobs is a BlobStore backed by a FileStore sub-directory that is served
// over HTTP at BaseURL.
type Blobs struct {
	files   *FileStore
	prefix  string
	baseURL string
}

// NewBlobs returns a blob store writing under files/prefix and producing URLs
// beneath baseURL.
func NewBlobs(files *FileStore, prefix, baseURL string) *Blobs {
	return &Blobs{
		files:   files,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Put stores data under key and returns its public URL.
func (b *Blobs) Put(ctx context.Context, key string, data []byte) (string, error) {
	if b == nil || b.files == nil {
		return "", errors.New("storage: blob store not configured")
	}
	if len(data) == 0 {
		return "", errors.New("storage: empty blob")
	}
	stored, err := b.files.Write(ctx, b.prefix+"/"+strings.TrimLeft(key, "/"), data)
	if err != nil {
		return "", err
	}
	return b.baseURL + "/" + strings.TrimPrefix(stored, b.prefix+"/"), nil
}

// LocalPath maps a URL produced by Put back to its file, when it is one of ours.
func (b *Blobs) LocalPath(url string) (string, bool) {
	if b == nil || b.baseURL == "" || !strings.HasPrefix(url, b.baseURL+"/") {
		return "", false
	}
	path, err := b.files.Path(b.prefix + "/" + strings.TrimPrefix(url, b.baseURL+"/"))
	if err != nil {
		return "", false
	}
	return path, true
}

// Dir returns the directory served as static content.
func (b *Blobs) Dir() string {
	path, _ := b.files.Path(b.prefix)
	return path
}
