package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

type memoryBlob struct {
	body    []byte
	version string
	seq     int
}

// MemoryBlobClient is a process-local BlobClient with the same version semantics as the
// Valkey client.
type MemoryBlobClient struct {
	mu    sync.Mutex
	blobs map[string]*memoryBlob
}

func NewMemoryBlobClient() *MemoryBlobClient {
	return &MemoryBlobClient{blobs: make(map[string]*memoryBlob)}
}

func (m *MemoryBlobClient) Get(_ context.Context, path string) (Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, ok := m.blobs[path]
	if !ok {
		return Blob{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return Blob{Body: append([]byte(nil), blob.body...), Version: blob.version}, nil
}

func (m *MemoryBlobClient) Put(_ context.Context, path string, body []byte, version string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, ok := m.blobs[path]
	current := ""
	if ok {
		current = blob.version
	} else {
		blob = &memoryBlob{}
	}
	if current != version {
		return "", fmt.Errorf("%w: %s expected version %q", ErrConflict, path, version)
	}

	blob.seq++
	blob.body = append([]byte(nil), body...)
	blob.version = strconv.Itoa(blob.seq)
	m.blobs[path] = blob
	return blob.version, nil
}

func (m *MemoryBlobClient) Ping(context.Context) error {
	return nil
}

var _ BlobClient = (*MemoryBlobClient)(nil)
