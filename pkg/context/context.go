package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestIDKey = "request_id"
	headerKey    = "X-Request-ID"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx builds a request-scoped context from a fiber request. It is
// detached from fasthttp's context, which is reused after the handler returns.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := context.Background()

	requestID, ok := c.Locals(headerKey).(string)
	if !ok || requestID == "" {
		requestID = c.Get(headerKey)

		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(ctx, requestID)
}
