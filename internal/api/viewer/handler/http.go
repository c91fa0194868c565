package viewerHandler

import (
	"time"

	viewerService "ImageLabelViewer/internal/api/viewer/service"
	"ImageLabelViewer/internal/middleware"
	"ImageLabelViewer/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const requestTimeout = 10 * time.Second

type ViewerHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	viewerService  viewerService.IViewerService
	utils          utils.IUtils
	processTimeout time.Duration
}

// New wires the viewer routes. processTimeout bounds a labeling request and
// should be longer than the service's own labeling timeout.
func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	vs viewerService.IViewerService,
	utils utils.IUtils,
	processTimeout time.Duration,
) *ViewerHandler {
	return &ViewerHandler{
		log:            log,
		validator:      validator,
		middleware:     middleware,
		viewerService:  vs,
		utils:          utils,
		processTimeout: processTimeout,
	}
}

func (h *ViewerHandler) Start(srv fiber.Router) {
	viewer := srv.Group("/viewer", h.middleware.NewRateLimiter, h.middleware.NewTokenMiddleware)

	viewer.Post("/gallery", h.UploadImage)

	viewer.Post("/screens", h.CreateScreen)
	viewer.Get("/screens/:id", h.GetScreen)
	viewer.Delete("/screens/:id", h.DestroyScreen)
	viewer.Post("/screens/:id/pause", h.PauseScreen)

	viewer.Post("/screens/:id/picker", h.OpenPicker)
	viewer.Post("/screens/:id/permission", h.ResolvePermission)
	viewer.Post("/screens/:id/image", h.SelectImage)
	viewer.Get("/screens/:id/image", h.GetImage)

	viewer.Get("/screens/:id/menu", h.GetMenu)
	viewer.Post("/screens/:id/menu/:item", h.SelectMenuItem)
	viewer.Post("/screens/:id/process", h.Process)

	viewer.Get("/screens/:id/ws", h.upgradeEventStream, websocket.New(h.handleEventStream))
}
