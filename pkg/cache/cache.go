// Package cache is a read-through response cache keyed by request path.
//
// A body is stored only after it decodes into the expected shape, so a
// failed or rate-limited fetch is retried on the next run instead of being
// replayed from a poisoned entry.
package cache

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	errs "cinodeharvest/pkg/errors"
	"cinodeharvest/pkg/logger"
)

// Store persists raw response bodies by key
type Store interface {
	// Get returns the stored body and whether the key was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte) error
}

// Validator is implemented by response shapes with required fields. A
// decoded value that fails validation is treated like a body that did
// not decode.
type Validator interface {
	Validate() error
}

// Fetcher performs the network call behind a cache miss
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Cache combines a Store with a Fetcher
type Cache struct {
	store   Store
	fetcher Fetcher
	logger  logger.Logger
}

// New creates a Cache
func New(store Store, fetcher Fetcher, log logger.Logger) *Cache {
	return &Cache{
		store:   store,
		fetcher: fetcher,
		logger:  logger.OrGlobal(log),
	}
}

// Key returns the md5 hex digest of path, used unmodified
func Key(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// GetOrFetch returns the value for path, decoding a cached body when one
// exists and fetching otherwise.
//
// A cached body that does not decode is a fatal cache_corrupt error. A
// fetched body that does not decode yields a quota error when it carries
// the quota phrase, and otherwise the zero T with a nil error. A JSON null
// or a value failing Validate counts as not decoding, so error objects
// returned by the API are never stored.
func GetOrFetch[T any](ctx context.Context, c *Cache, path string) (T, error) {
	var zero T
	key := Key(path)

	cached, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, errs.Wrap(errs.ErrorTypeIO, err, "cache read failed for "+path)
	}
	if ok {
		value, err := decode[T](cached)
		if err != nil {
			return zero, errs.Wrap(errs.ErrorTypeCacheCorrupt, err, "cached entry "+key+" for "+path)
		}
		c.logger.DebugWithFields("cache hit", map[string]interface{}{"path": path, "key": key})
		return value, nil
	}

	body, err := c.fetcher.FetchText(ctx, path)
	if err != nil {
		return zero, err
	}

	value, err := decode[T]([]byte(body))
	if err != nil {
		if strings.Contains(body, errs.QuotaPhrase) {
			logger.LogQuotaExhausted(c.logger, path)
			return zero, errs.Quota(0, errs.QuotaPhrase)
		}
		c.logger.WithError(err).WithField("path", path).Warn("Response did not decode, treating it as empty")
		return zero, nil
	}

	if err := c.store.Put(ctx, key, []byte(body)); err != nil {
		return zero, errs.Wrap(errs.ErrorTypeIO, err, "cache write failed for "+path)
	}
	c.logger.DebugWithFields("cache stored", map[string]interface{}{"path": path, "key": key})
	return value, nil
}

func decode[T any](body []byte) (T, error) {
	var value T
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return value, errors.New("response is null")
	}
	if err := json.Unmarshal(body, &value); err != nil {
		return value, err
	}
	if v, ok := any(&value).(Validator); ok {
		if err := v.Validate(); err != nil {
			var zero T
			return zero, err
		}
	}
	return value, nil
}
