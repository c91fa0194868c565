package viewerHandler

import (
	"context"
	"time"

	"ImageLabelViewer/internal/entity"
	"ImageLabelViewer/internal/middleware"
	contextPkg "ImageLabelViewer/pkg/context"
	"ImageLabelViewer/pkg/handlerUtil"
	"ImageLabelViewer/pkg/hub"
	jwtPkg "ImageLabelViewer/pkg/jwt"
	"ImageLabelViewer/pkg/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	eventWriteTimeout = 10 * time.Second
	eventReadTimeout  = 60 * time.Second
	eventPingInterval = 25 * time.Second
)

// upgradeEventStream checks ownership over plain HTTP so a foreign or
// missing screen is refused before the upgrade.
func (h *ViewerHandler) upgradeEventStream(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userData, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	if _, err := h.viewerService.GetScreen(c, userData.ID, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_event_stream")
	}

	return ctx.Next()
}

func (h *ViewerHandler) handleEventStream(c *websocket.Conn) {
	user, _ := c.Locals("user").(entity.UserLoginData)
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	screenID := c.Params("id")

	fields := log.Fields{
		"request_id": requestID,
		"screen_id":  screenID,
	}

	events, unsubscribe, err := h.viewerService.Subscribe(contextPkg.WithRequestID(context.Background(), requestID), user.ID, screenID)
	if err != nil {
		h.log.WithFields(fields).WithError(err).Warn("Event stream subscription refused")
		_ = c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer unsubscribe()

	h.log.WithFields(fields).Info("Event stream client connected")
	defer h.log.WithFields(fields).Info("Event stream client disconnected")

	_ = c.SetReadDeadline(time.Now().Add(eventReadTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(eventReadTimeout))
	})

	// clients only ever send control frames, reading keeps pongs flowing
	// and tells us when they go away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.WithFields(fields).Debugf("Event stream read error: %v", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				h.log.WithFields(fields).Errorf("Error writing event: %v", err)
				return
			}
			if ev.Type == hub.EventClosed {
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "screen closed"),
					time.Now().Add(eventWriteTimeout))
				return
			}
		}
	}
}
