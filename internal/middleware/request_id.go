package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
)

const (
	RequestIDKey       = "X-Request-ID"
	maxRequestIDLength = 128
)

// NewRequestIDMiddleware tags every request with the ID that handlers, logs
// and error bodies share. A client supplied X-Request-ID is kept only when it
// is short visible ASCII; otherwise a fresh ULID is minted.
func NewRequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)
		if !validRequestID(requestID) {
			requestID = ulid.Make().String()
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}
