package middleware

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewTokenMiddleware(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type middleware struct {
	rateLimitter        *rateLimiter
	requestIDMiddleware fiber.Handler
	loggingMiddleware   fiber.Handler
	log                 *logrus.Logger
}

// New builds the middleware set. RATE_LIMIT_RPS, RATE_LIMIT_BURST and
// RATE_LIMIT_IDLE_SECONDS tune the per-IP limiter.
func New(logger *logrus.Logger) Middleware {
	rps := envInt("RATE_LIMIT_RPS", 50)
	burst := envInt("RATE_LIMIT_BURST", 100)
	idle := time.Duration(envInt("RATE_LIMIT_IDLE_SECONDS", 300)) * time.Second

	return &middleware{
		rateLimitter:        newRateLimiter(rate.Limit(rps), burst, idle),
		requestIDMiddleware: NewRequestIDMiddleware(),
		loggingMiddleware:   LoggerConfig(logger),
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return m.loggingMiddleware
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
