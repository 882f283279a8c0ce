package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cajapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ── API rate limiter ──────────────────────────────────────────────────────────
// Fixed window per client IP. With Redis the counter is shared by every
// replica behind the load balancer; without it each process counts alone.

// rateEntry tracks request counts per IP for the in-process limiter.
type rateEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

var (
	apiRateMap   = make(map[string]*rateEntry)
	apiRateMapMu sync.Mutex
)

// RateLimiter allows limit requests per window per IP. A Redis failure lets
// the request through: losing the limiter must not stop the register.
func RateLimiter(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		var (
			count   int64
			resetIn time.Duration
		)
		if rdb != nil {
			var err error
			count, resetIn, err = redisHit(c, rdb, ip, window)
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter: redis unavailable, allowing request")
				c.Next()
				return
			}
		} else {
			count, resetIn = memoryHit(ip, window)
		}

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(resetIn.Round(time.Second).Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				apierror.New(apierror.KindRateLimited, "demasiadas solicitudes, intente nuevamente en un momento"))
			return
		}
		c.Next()
	}
}

func redisHit(c *gin.Context, rdb *redis.Client, ip string, window time.Duration) (int64, time.Duration, error) {
	slot := time.Now().UnixNano() / int64(window)
	key := fmt.Sprintf("ratelimit:%s:%d", ip, slot)

	pipe := rdb.TxPipeline()
	incr := pipe.Incr(c.Request.Context(), key)
	pipe.Expire(c.Request.Context(), key, window)
	if _, err := pipe.Exec(c.Request.Context()); err != nil {
		return 0, 0, err
	}
	resetIn := time.Duration((slot+1)*int64(window) - time.Now().UnixNano())
	return incr.Val(), resetIn, nil
}

func memoryHit(ip string, window time.Duration) (int64, time.Duration) {
	apiRateMapMu.Lock()
	entry, exists := apiRateMap[ip]
	if !exists {
		entry = &rateEntry{}
		apiRateMap[ip] = entry
	}
	apiRateMapMu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	if now.After(entry.windowEnd) {
		entry.count = 0
		entry.windowEnd = now.Add(window)
	}
	entry.count++
	return int64(entry.count), entry.windowEnd.Sub(now)
}

// ── Purge goroutine ───────────────────────────────────────────────────────────
// Periodically removes expired entries from the in-process map so IPs that
// never return do not accumulate.

const purgeInterval = 5 * time.Minute

func init() {
	go purgeExpiredEntries()
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		apiRateMapMu.Lock()
		purged := 0
		for ip, entry := range apiRateMap {
			entry.mu.Lock()
			if now.After(entry.windowEnd) {
				delete(apiRateMap, ip)
				purged++
			}
			entry.mu.Unlock()
		}
		remaining := len(apiRateMap)
		apiRateMapMu.Unlock()

		if purged > 0 {
			log.Debug().
				Int("entries_purged", purged).
				Int("entries_remaining", remaining).
				Msg("rate limiter map purged")
		}
	}
}
