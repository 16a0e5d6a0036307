package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	metaKey      = "response_meta"
	metaStartKey = "response_meta_start"
)

// WithResponseMeta starts the request clock and gives handlers a place to
// annotate the response envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartKey, time.Now())
		c.Set(metaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetMeta records one meta field.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta := metaOf(c)
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(metaKey, meta)
	}
	meta[key] = value
}

// SetCacheHit marks whether the payload came from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// ResponseMeta returns a copy of the recorded fields plus the elapsed
// processing time. It is nil when nothing was recorded.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	recorded := metaOf(c)
	if len(recorded) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(recorded)+1)
	for k, v := range recorded {
		out[k] = v
	}
	if start, ok := c.Get(metaStartKey); ok {
		if t, ok := start.(time.Time); ok {
			out["processing_time_ms"] = time.Since(t).Milliseconds()
		}
	}
	return out
}

func metaOf(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(metaKey); ok {
		if meta, ok := v.(map[string]interface{}); ok {
			return meta
		}
	}
	return nil
}
