package viewerHandler

import (
	"context"
	"errors"

	"ImageLabelViewer/internal/api/viewer"
	contextPkg "ImageLabelViewer/pkg/context"
	"ImageLabelViewer/pkg/handlerUtil"
	jwtPkg "ImageLabelViewer/pkg/jwt"
	"ImageLabelViewer/pkg/log"
	"ImageLabelViewer/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

func (h *ViewerHandler) CreateScreen(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	screen, err := h.viewerService.CreateScreen(c, userData.ID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "create_screen")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, viewer.NewScreenResponse(screen))
	}
}

func (h *ViewerHandler) GetScreen(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	screen, err := h.viewerService.GetScreen(c, userData.ID, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_screen")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, viewer.NewScreenResponse(screen))
	}
}

func (h *ViewerHandler) PauseScreen(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	if err := h.viewerService.Pause(c, userData.ID, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "pause_screen")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *ViewerHandler) DestroyScreen(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	if err := h.viewerService.Destroy(c, userData.ID, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "destroy_screen")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *ViewerHandler) OpenPicker(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	result, err := h.viewerService.OpenPicker(c, userData.ID, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_picker")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *ViewerHandler) ResolvePermission(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var req viewer.PermissionResultRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	result, err := h.viewerService.ResolvePermission(c, userData.ID, ctx.Params("id"), *req.Granted)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "resolve_permission")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *ViewerHandler) SelectImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var req viewer.SelectImageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	screen, selected, err := h.viewerService.SelectImage(c, userData.ID, ctx.Params("id"), req.Ref)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "select_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, viewer.SelectImageResponse{
			Selected: selected,
			Screen:   viewer.NewScreenResponse(screen),
		})
	}
}

func (h *ViewerHandler) GetImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	data, err := h.viewerService.GetImage(c, userData.ID, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_image")
	}

	ctx.Set(fiber.HeaderContentType, "image/jpeg")
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.Status(fiber.StatusOK).Send(data)
}

func (h *ViewerHandler) UploadImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID, utils.ErrNoFile, ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing gallery upload")

	if err := h.utils.ValidateImageFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, invalidImage(err), ctx.Path(), "validate_image_file")
	}

	data, contentType, err := h.utils.ReadImageFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, invalidImage(err), ctx.Path(), "read_image_file")
	}

	item, err := h.viewerService.UploadImage(c, userData.ID, file.Filename, data, contentType)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, viewer.UploadResponse{Item: item})
	}
}

func (h *ViewerHandler) GetMenu(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	if _, err := h.viewerService.GetScreen(c, userData.ID, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_menu")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{
		"items": viewer.OptionsMenu,
	})
}

func (h *ViewerHandler) SelectMenuItem(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.processTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	result, err := h.viewerService.SelectMenuItem(c, userData.ID, ctx.Params("id"), ctx.Params("item"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "select_menu_item")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
	}

	if result == nil {
		return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
	}
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

func (h *ViewerHandler) Process(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.processTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing labeling request")

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	result, err := h.viewerService.Process(c, userData.ID, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func invalidImage(err error) error {
	if errors.Is(err, utils.ErrNoFile) || errors.Is(err, utils.ErrFileTooLarge) || errors.Is(err, utils.ErrNotAnImage) {
		return viewer.ErrInvalidImageFile
	}
	return err
}
