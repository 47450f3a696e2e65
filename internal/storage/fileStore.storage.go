package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

const FILE_STORE_NAME = "file"

// Blob is one stored document and the opaque version token of that exact content.
type Blob struct {
	Body    []byte
	Version string
}

// BlobClient is a versioned document store. Put with an empty version only creates; with a
// version it replaces only if the stored version still matches, else ErrConflict.
type BlobClient interface {
	Get(ctx context.Context, path string) (Blob, error)
	Put(ctx context.Context, path string, body []byte, version string) (string, error)
	Ping(ctx context.Context) error
}

type FileStore struct {
	client  BlobClient
	prefix  string
	onWrite func(collection models.Collection)
	log     logger.Logger
}

func NewFileStore(client BlobClient, prefix string) *FileStore {
	return &FileStore{
		client: client,
		prefix: strings.Trim(prefix, "/"),
		log:    logger.New("storage").File("fileStore.storage"),
	}
}

// OnWrite registers a callback fired after every accepted write.
func (f *FileStore) OnWrite(fn func(collection models.Collection)) {
	f.onWrite = fn
}

func (f *FileStore) Name() string {
	return FILE_STORE_NAME
}

func (f *FileStore) Path(collection models.Collection) string {
	name := string(collection) + ".json"
	if f.prefix == "" {
		return name
	}
	return f.prefix + "/" + name
}

func (f *FileStore) Probe(ctx context.Context) error {
	return f.client.Ping(ctx)
}

func (f *FileStore) Read(ctx context.Context, collection models.Collection) (json.RawMessage, error) {
	blob, err := f.client.Get(ctx, f.Path(collection))
	if err != nil {
		return nil, err
	}
	if !json.Valid(blob.Body) {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, f.Path(collection))
	}
	return blob.Body, nil
}

// Write replaces the whole document. The version token is fetched right before writing; a
// conflict is retried once with a fresh token and then dropped.
func (f *FileStore) Write(ctx context.Context, req WriteRequest) error {
	log := f.log.Function("Write")

	if len(req.Snapshot) == 0 {
		return fmt.Errorf("%w: empty snapshot for %s", ErrUnsupported, req.Collection)
	}
	path := f.Path(req.Collection)

	err := f.put(ctx, path, req.Snapshot)
	if errors.Is(err, ErrConflict) {
		log.Warn("version conflict, retrying with fresh token", "path", path)
		err = f.put(ctx, path, req.Snapshot)
		if errors.Is(err, ErrConflict) {
			log.Warn("dropping write after repeated version conflict", "path", path)
		}
	}
	if err != nil {
		return err
	}

	if f.onWrite != nil {
		f.onWrite(req.Collection)
	}
	return nil
}

func (f *FileStore) put(ctx context.Context, path string, body []byte) error {
	version, err := f.currentVersion(ctx, path)
	if err != nil {
		f.log.Function("put").Warn("version lookup failed, writing without token", "path", path, "error", err)
	}

	_, err = f.client.Put(ctx, path, body, version)
	return err
}

func (f *FileStore) currentVersion(ctx context.Context, path string) (string, error) {
	blob, err := f.client.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return blob.Version, nil
}

var _ CollectionStore = (*FileStore)(nil)
