// Package redis stores short links as one hash per code.
//
// Layout of a link hash at <prefix><code>:
//
//	original_url      absolute URL
//	visit_count       integer, HINCRBY'd on expand
//	created_at        RFC 3339 timestamp
//	last_accessed_at  RFC 3339 timestamp, absent until the first expand
//
// Multi-step operations run as Lua scripts so each one is atomic on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/short-link/internal/entity"
)

const DefaultKeyPrefix = "short-link:"

const (
	fieldOriginalURL    = "original_url"
	fieldVisitCount     = "visit_count"
	fieldCreatedAt      = "created_at"
	fieldLastAccessedAt = "last_accessed_at"
)

var errMalformedLink = errors.New("malformed link hash")

// KEYS[1] link key; ARGV[1] original url, ARGV[2] created at.
var saveScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
redis.call('HSET', KEYS[1], 'original_url', ARGV[1], 'visit_count', 0, 'created_at', ARGV[2])
return 1
`)

// KEYS[1] link key; ARGV[1] accessed at.
var expandScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return false
end
redis.call('HINCRBY', KEYS[1], 'visit_count', 1)
redis.call('HSET', KEYS[1], 'last_accessed_at', ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

// KEYS[1] link key.
var removeScript = goredis.NewScript(`
local fields = redis.call('HGETALL', KEYS[1])
if #fields == 0 then
    return false
end
redis.call('DEL', KEYS[1])
return fields
`)

type LinkRepository struct {
	client    goredis.Cmdable
	keyPrefix string
	now       func() time.Time
}

type Option func(*LinkRepository)

func WithKeyPrefix(prefix string) Option {
	return func(r *LinkRepository) {
		r.keyPrefix = prefix
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *LinkRepository) {
		r.now = now
	}
}

func NewLinkRepository(client goredis.Cmdable, opts ...Option) *LinkRepository {
	r := &LinkRepository{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *LinkRepository) key(code string) string {
	return r.keyPrefix + code
}

func (r *LinkRepository) Save(ctx context.Context, code, originalURL string) (*entity.ShortLink, error) {
	const op = "adapter.repository.redis.LinkRepository.Save"

	createdAt := r.now().UTC()

	created, err := saveScript.Run(ctx, r.client, []string{r.key(code)},
		originalURL, createdAt.Format(time.RFC3339Nano)).Int()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
	}

	if created == 0 {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrCodeExists)
	}

	return &entity.ShortLink{
		Code:        code,
		OriginalURL: originalURL,
		CreatedAt:   createdAt,
	}, nil
}

func (r *LinkRepository) RetrieveByCode(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.redis.LinkRepository.RetrieveByCode"

	fields, err := r.client.HGetAll(ctx, r.key(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	link, err := linkFromFields(code, fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return link, nil
}

func (r *LinkRepository) RetrieveAndUpdateStats(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.redis.LinkRepository.RetrieveAndUpdateStats"

	accessedAt := r.now().UTC().Format(time.RFC3339Nano)

	reply, err := expandScript.Run(ctx, r.client, []string{r.key(code)}, accessedAt).Slice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update link stats: %w", op, err)
	}

	link, err := linkFromReply(code, reply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return link, nil
}

func (r *LinkRepository) Remove(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.redis.LinkRepository.Remove"

	reply, err := removeScript.Run(ctx, r.client, []string{r.key(code)}).Slice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to remove link: %w", op, err)
	}

	link, err := linkFromReply(code, reply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return link, nil
}

// linkFromReply decodes a flat HGETALL reply returned by a script.
func linkFromReply(code string, reply []any) (*entity.ShortLink, error) {
	if len(reply)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of elements", errMalformedLink)
	}

	fields := make(map[string]string, len(reply)/2)
	for i := 0; i < len(reply); i += 2 {
		k, ok := reply[i].(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected field %v", errMalformedLink, reply[i])
		}
		v, ok := reply[i+1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected value of %s", errMalformedLink, k)
		}
		fields[k] = v
	}

	return linkFromFields(code, fields)
}

func linkFromFields(code string, fields map[string]string) (*entity.ShortLink, error) {
	visitCount, err := strconv.ParseInt(fields[fieldVisitCount], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errMalformedLink, fieldVisitCount, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errMalformedLink, fieldCreatedAt, err)
	}

	link := &entity.ShortLink{
		Code:        code,
		OriginalURL: fields[fieldOriginalURL],
		VisitCount:  visitCount,
		CreatedAt:   createdAt.UTC(),
	}

	if raw, ok := fields[fieldLastAccessedAt]; ok {
		accessedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errMalformedLink, fieldLastAccessedAt, err)
		}
		accessedAt = accessedAt.UTC()
		link.LastAccessedAt = &accessedAt
	}

	return link, nil
}
