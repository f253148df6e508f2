package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// ResolveCache fronts the (scheme, other id) -> master org lookup, the
// hottest read in every ingest feed. Entries are invalidated whenever a
// correlation closes or changes master. Nil-safe: a nil cache is a miss.
type ResolveCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewResolveCache returns (nil, nil) when REDIS_ADDR is unset so the
// resolver can run uncached.
func NewResolveCache(log *logger.Logger) (*ResolveCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	ttl := 5 * time.Minute
	if v := strings.TrimSpace(os.Getenv("REDIS_RESOLVE_TTL_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			ttl = time.Duration(parsed) * time.Second
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &ResolveCache{
		log: log.With("client", "ResolveCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func resolveKey(schemeID int64, otherID string) string {
	return fmt.Sprintf("orgmaster:resolve:%d:%s", schemeID, otherID)
}

// Get returns the cached master org id, or (0, false) on miss.
func (c *ResolveCache) Get(ctx context.Context, schemeID int64, otherID string) (int64, bool) {
	if c == nil || c.rdb == nil {
		return 0, false
	}
	raw, err := c.rdb.Get(ctx, resolveKey(schemeID, otherID)).Result()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("resolve cache read failed", "error", err)
		}
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (c *ResolveCache) Set(ctx context.Context, schemeID int64, otherID string, masterID int64) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, resolveKey(schemeID, otherID), strconv.FormatInt(masterID, 10), c.ttl).Err(); err != nil {
		c.log.Warn("resolve cache write failed", "error", err)
	}
}

// InvalidateCorrelation implements the aggregate cache hook.
func (c *ResolveCache) InvalidateCorrelation(ctx context.Context, schemeID int64, otherID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, resolveKey(schemeID, otherID)).Err(); err != nil {
		c.log.Warn("resolve cache invalidate failed", "error", err)
	}
}

func (c *ResolveCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
