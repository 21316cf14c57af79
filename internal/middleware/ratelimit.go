package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/simp-lee/hrdesk/internal/pkg"
)

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per client IP.
type limiterSet struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	return &limiterSet{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// reserve takes a token for key. When none is available it returns false and
// how long until one will be.
func (s *limiterSet) reserve(key string) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > limiterIdleTTL {
		for k, cl := range s.clients {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(s.clients, k)
			}
		}
		s.lastSweep = now
	}

	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.clients[key] = cl
	}
	cl.lastSeen = now

	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RateLimit returns a gin middleware that limits each client IP to rps
// requests per second with bursts of up to burst requests. Rejected requests
// get 429 with a Retry-After header.
func RateLimit(rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	set := newLimiterSet(rps, burst)

	return func(c *gin.Context) {
		ok, wait := set.reserve(c.ClientIP())
		if ok {
			c.Next()
			return
		}

		retry := int(math.Ceil(wait.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			slog.String("client_ip", c.ClientIP()),
			slog.String("path", c.Request.URL.Path),
		)

		if IsHTMX(c) {
			AbortHTMX(c, http.StatusTooManyRequests, "Too many requests, slow down")
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, pkg.Response{
			Code:    http.StatusTooManyRequests,
			Message: "too many requests",
		})
	}
}
