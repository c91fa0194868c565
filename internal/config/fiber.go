package config

import (
	"ImageLabelViewer/pkg/handlerUtil"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Image Label Viewer",
			BodyLimit:         20 * 1024 * 1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: true,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				requestID, _ := c.Locals("X-Request-ID").(string)
				return handlerUtil.New(logger).Handle(c, requestID, err, c.Path(), "fiber")
			},
		})

	return app
}
