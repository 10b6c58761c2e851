// redis.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"image.share/internal/models"
)

var _ Store = (*RedisStore)(nil)

const expiryIndexKey = "links:expiry"

// RedisStore keeps one hash per link plus a sorted set of ids scored by
// expiry. Timestamps are stored as Unix microseconds so Lua can compare them
// exactly.
type RedisStore struct {
	client redis.UniversalClient
	owned  bool
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client, owned: true}, nil
}

// NewRedisStoreWithClient uses an existing client; Close leaves it open.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Client() redis.UniversalClient {
	return r.client
}

func (r *RedisStore) Save(ctx context.Context, link *models.ShareLink) error {
	key := linkKey(link.ID)

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicate
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encode(link))
			pipe.ZAdd(ctx, expiryIndexKey, redis.Z{
				Score:  float64(link.ExpiresAt.UnixMicro()),
				Member: link.ID,
			})
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.ShareLink, error) {
	fields, err := r.client.HGetAll(ctx, linkKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decode(fields)
}

// incrementViewsScript checks expiry and bumps the counter in one step.
// Returns -1 when the key is missing, -2 when expired, otherwise the hash.
var incrementViewsScript = redis.NewScript(`
	local key = KEYS[1]
	local exp = redis.call('HGET', key, 'expires_at')
	if not exp then
		return -1
	end
	if tonumber(ARGV[1]) > tonumber(exp) then
		return -2
	end
	redis.call('HINCRBY', key, 'view_count', 1)
	return redis.call('HGETALL', key)
`)

func (r *RedisStore) IncrementViews(ctx context.Context, id string, now time.Time) (*models.ShareLink, error) {
	res, err := incrementViewsScript.Run(ctx, r.client, []string{linkKey(id)}, ceilMicro(now)).Result()
	if err != nil {
		return nil, err
	}

	switch v := res.(type) {
	case int64:
		if v == -1 {
			return nil, ErrNotFound
		}
		return nil, ErrExpired
	case []any:
		fields := make(map[string]string, len(v)/2)
		for i := 0; i+1 < len(v); i += 2 {
			k, _ := v[i].(string)
			val, _ := v[i+1].(string)
			fields[k] = val
		}
		return decode(fields)
	default:
		return nil, fmt.Errorf("unexpected script result %T", res)
	}
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, linkKey(id))
		pipe.ZRem(ctx, expiryIndexKey, id)
		return nil
	})
	return err
}

func (r *RedisStore) Expired(ctx context.Context, now time.Time) ([]string, error) {
	return r.client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(ceilMicro(now), 10),
	}).Result()
}

func (r *RedisStore) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

// Helpers

func linkKey(id string) string {
	return "link:" + id
}

// ceilMicro rounds up so that "now > expires_at" keeps its meaning when
// expires_at is stored at microsecond precision.
func ceilMicro(t time.Time) int64 {
	us := t.UnixMicro()
	if t.Sub(time.UnixMicro(us)) > 0 {
		us++
	}
	return us
}

func encode(link *models.ShareLink) map[string]any {
	return map[string]any{
		"id":           link.ID,
		"ref":          link.StoredObjectRef,
		"filename":     link.OriginalFilename,
		"class":        link.DurationClass,
		"content_type": link.ContentType,
		"size":         link.SizeBytes,
		"created_at":   link.CreatedAt.UnixMicro(),
		"expires_at":   link.ExpiresAt.UnixMicro(),
		"view_count":   link.ViewCount,
	}
}

func decode(fields map[string]string) (*models.ShareLink, error) {
	ints := make(map[string]int64, 4)
	for _, k := range []string{"size", "created_at", "expires_at", "view_count"} {
		v, err := strconv.ParseInt(fields[k], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", k, err)
		}
		ints[k] = v
	}

	return &models.ShareLink{
		ID:               fields["id"],
		StoredObjectRef:  fields["ref"],
		OriginalFilename: fields["filename"],
		DurationClass:    fields["class"],
		ContentType:      fields["content_type"],
		SizeBytes:        ints["size"],
		CreatedAt:        time.UnixMicro(ints["created_at"]).UTC(),
		ExpiresAt:        time.UnixMicro(ints["expires_at"]).UTC(),
		ViewCount:        ints["view_count"],
	}, nil
}
