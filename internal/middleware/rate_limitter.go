package middleware

import (
	"VisionPredictor/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterSweepSize = 1024
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many prediction requests")
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than limiterIdleTTL are dropped once the table grows past limiterSweepSize.
type rateLimiter struct {
	clients   map[string]*clientLimiter
	rate      rate.Limit
	burstSize int
	mutex     sync.Mutex
	now       func() time.Time
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		clients:   make(map[string]*clientLimiter),
		rate:      reqRate,
		burstSize: burstSize,
		now:       time.Now,
	}
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if len(r.clients) >= limiterSweepSize {
		for key, c := range r.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(r.clients, key)
			}
		}
	}

	c, exist := r.clients[ip]
	if !exist {
		c = &clientLimiter{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.clients[ip] = c
	}
	c.lastSeen = now

	return c.limiter
}

// retryAfter is the whole number of seconds until one token is available.
func (r *rateLimiter) retryAfter() int {
	if r.rate <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(r.rate))))
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()

	if !m.rateLimitter.limiterFor(clientIP).Allow() {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"ip":         clientIP,
			"path":       ctx.Path(),
		}).Warn("Prediction rate limit exceeded")

		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(m.rateLimitter.retryAfter()))
		return ctx.Status(response.StatusCode(ErrTooManyRequests)).JSON(fiber.Map{
			"error": ErrTooManyRequests.Error(),
			"code":  "RATE_LIMITED",
		})
	}

	return ctx.Next()
}
