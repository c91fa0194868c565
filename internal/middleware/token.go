package middleware

import (
	"ImageLabelViewer/internal/entity"
	jwtPkg "ImageLabelViewer/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const unauthorizedMessage = "Unauthorized, access token invalid or expired"

// NewTokenMiddleware verifies the bearer token and stores the caller as
// entity.UserLoginData under the "user" local.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	requestID := m.GetRequestID(ctx)

	userToken, err := jwtPkg.VerifyTokenHeader(ctx, jwtPkg.AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"client_ip":  ctx.IP(),
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return unauthorized(ctx)
	}

	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      "Invalid token claims",
		}).Warn("Token claims check")
		return unauthorized(ctx)
	}

	id, _ := claims["id"].(string)
	if id == "" {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      "Token claims are missing required fields",
		}).Warn("Token claims check")
		return unauthorized(ctx)
	}

	email, _ := claims["email"].(string)
	username, _ := claims["username"].(string)

	ctx.Locals("user", entity.UserLoginData{
		ID:       id,
		Email:    email,
		Username: username,
	})

	m.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"user_id":    id,
	}).Debug("Authentication successful")

	return ctx.Next()
}

func unauthorized(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": unauthorizedMessage,
		"code":  "UNAUTHORIZED",
	})
}
