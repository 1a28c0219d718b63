package middleware

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/moodyoga/studio-api/internal/service"
)

const cacheKeyPrefix = "studio:http:"

type cachedWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cachedWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Cache serves GET responses from Redis when a fresh copy exists, and stores
// successful responses on miss. Anything but a 200 bypasses the cache.
func Cache(client *redis.Client, ttl time.Duration, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	return func(c *gin.Context) {
		if client == nil || c.Request.Method != "GET" {
			c.Next()
			return
		}

		key := cacheKeyPrefix + c.Request.URL.RequestURI()
		cached, err := client.Get(c.Request.Context(), key).Bytes()
		if err == nil {
			metrics.RecordCacheOperation(true)
			c.Header("X-Cache", "HIT")
			c.Data(200, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}
		if !errors.Is(err, redis.Nil) {
			logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheOperation(false)

		writer := &cachedWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Next()

		if c.Writer.Status() != 200 || writer.body.Len() == 0 {
			return
		}
		if err := client.Set(c.Request.Context(), key, writer.body.Bytes(), ttl).Err(); err != nil {
			logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// InvalidateCache drops every cached response. Mutating catalog handlers call
// this so list and detail reads never serve stale offerings.
func InvalidateCache(ctx context.Context, client *redis.Client, logger *zap.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	iter := client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn("cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("cache invalidate failed", zap.Error(err))
	}
}
