package blob

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps payloads as plain string values. It shares the client
// with the record store when both live in Redis.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Put(ctx context.Context, data []byte, ext string) (string, error) {
	ref, err := ContentName(ext)
	if err != nil {
		return "", err
	}
	ok, err := r.client.SetNX(ctx, blobKey(ref), data, 0).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("content name collision")
	}
	return ref, nil
}

func (r *RedisStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, blobKey(ref)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r *RedisStore) Delete(ctx context.Context, ref string) error {
	if err := ValidateRef(ref); err != nil {
		return err
	}
	return r.client.Del(ctx, blobKey(ref)).Err()
}

// Close is a no-op; the client is owned by whoever created it.
func (r *RedisStore) Close() error {
	return nil
}

func blobKey(ref string) string {
	return "blob:" + ref
}
