package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"ImageLabelViewer/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "too many requests")
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than idleTTL are dropped on a later call, so the map tracks only recent
// clients.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(reqRate rate.Limit, burst int, idleTTL time.Duration) *rateLimiter {
	// an evicted client comes back with a full bucket, which is only
	// equivalent if the bucket had time to refill
	if reqRate > 0 {
		refill := time.Duration(float64(burst) / float64(reqRate) * float64(time.Second))
		if idleTTL < refill {
			idleTTL = refill
		}
	}

	return &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     reqRate,
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// allow reports whether ip may make a request now and returns how long to
// wait otherwise.
func (r *rateLimiter) allow(ip string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.idleTTL {
		for key, v := range r.visitors {
			if now.Sub(v.lastSeen) >= r.idleTTL {
				delete(r.visitors, key)
			}
		}
		r.lastSweep = now
	}

	v, ok := r.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burst)}
		r.visitors[ip] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (r *rateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()

	allowed, wait := m.rateLimitter.allow(clientIP)
	if !allowed {
		m.log.Warnf("too many requests for IP %s", clientIP)
		if wait > 0 {
			ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(wait.Seconds())+1))
		}
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": ErrTooManyRequests.Error(),
			"code":  "TOO_MANY_REQUESTS",
		})
	}

	return ctx.Next()
}
