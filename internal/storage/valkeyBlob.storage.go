package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/valkey-io/valkey-go"
)

const (
	BLOB_BODY_FIELD    = "body"
	BLOB_VERSION_FIELD = "version"
	BLOB_SEQ_FIELD     = "seq"
)

// casScript replaces body only when the caller saw the current version. The version is a
// per-blob counter so a token never repeats for the same path.
var casScript = valkey.NewLuaScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current == false then current = '' end
if current ~= ARGV[2] then
  return redis.error_reply('CONFLICT ' .. current)
end
local seq = redis.call('HINCRBY', KEYS[1], 'seq', 1)
local version = tostring(seq)
redis.call('HSET', KEYS[1], 'body', ARGV[1], 'version', version)
return version
`)

// ValkeyBlobClient keeps each blob in a hash holding body, version and seq fields.
type ValkeyBlobClient struct {
	client    valkey.Client
	keyPrefix string
}

func NewValkeyBlobClient(client valkey.Client, keyPrefix string) *ValkeyBlobClient {
	return &ValkeyBlobClient{client: client, keyPrefix: keyPrefix}
}

func (v *ValkeyBlobClient) key(path string) string {
	if v.keyPrefix == "" {
		return "blob:" + path
	}
	return v.keyPrefix + ":blob:" + path
}

func (v *ValkeyBlobClient) Get(ctx context.Context, path string) (Blob, error) {
	fields, err := v.client.Do(ctx, v.client.B().Hgetall().Key(v.key(path)).Build()).AsStrMap()
	if err != nil {
		return Blob{}, fmt.Errorf("%w: get %s: %w", ErrUnreachable, path, err)
	}
	body, ok := fields[BLOB_BODY_FIELD]
	if !ok {
		return Blob{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return Blob{Body: []byte(body), Version: fields[BLOB_VERSION_FIELD]}, nil
}

func (v *ValkeyBlobClient) Put(ctx context.Context, path string, body []byte, version string) (string, error) {
	next, err := casScript.Exec(ctx, v.client, []string{v.key(path)}, []string{string(body), version}).ToString()
	if err != nil {
		if strings.HasPrefix(err.Error(), "CONFLICT") {
			return "", fmt.Errorf("%w: %s expected version %q", ErrConflict, path, version)
		}
		return "", fmt.Errorf("%w: put %s: %w", ErrUnreachable, path, err)
	}
	return next, nil
}

func (v *ValkeyBlobClient) Ping(ctx context.Context) error {
	if err := v.client.Do(ctx, v.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return nil
}

var _ BlobClient = (*ValkeyBlobClient)(nil)
