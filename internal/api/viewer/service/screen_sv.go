package viewerService

import (
	"context"
	"errors"

	"ImageLabelViewer/internal/api/viewer"
	"ImageLabelViewer/internal/entity"
	contextPkg "ImageLabelViewer/pkg/context"
	"ImageLabelViewer/pkg/hub"
	"ImageLabelViewer/pkg/redis"

	"github.com/sirupsen/logrus"
)

func (s *viewerService) CreateScreen(ctx context.Context, userID string) (entity.Screen, error) {
	requestID := contextPkg.GetRequestID(ctx)

	now := s.now()
	id, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return entity.Screen{}, err
	}

	screen := entity.Screen{
		ID:        id,
		UserID:    userID,
		State:     entity.ScreenNoImage,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.SaveScreen(ctx, screen); err != nil {
		return entity.Screen{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"screen_id":  id,
		"user_id":    userID,
	}).Info("Screen created")

	return screen, nil
}

func (s *viewerService) GetScreen(ctx context.Context, userID, screenID string) (entity.Screen, error) {
	return s.loadScreen(ctx, userID, screenID)
}

func (s *viewerService) GetImage(ctx context.Context, userID, screenID string) ([]byte, error) {
	screen, err := s.loadScreen(ctx, userID, screenID)
	if err != nil {
		return nil, err
	}
	if !screen.HasImage() {
		return nil, viewer.ErrImageNotFound
	}

	data, err := s.store.GetImage(ctx, screenID)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, viewer.ErrImageNotFound
	}
	return data, err
}

// Pause stops any labeling in flight for the screen. The screen itself,
// including its image, stays available.
func (s *viewerService) Pause(ctx context.Context, userID, screenID string) error {
	if _, err := s.loadScreen(ctx, userID, screenID); err != nil {
		return err
	}

	if s.cancelInflight(screenID, errScreenPaused) {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"screen_id":  screenID,
		}).Info("Cancelled in-flight labeling on pause")
	}

	return nil
}

func (s *viewerService) Destroy(ctx context.Context, userID, screenID string) error {
	if _, err := s.loadScreen(ctx, userID, screenID); err != nil {
		return err
	}

	s.cancelInflight(screenID, errScreenClosed)

	if err := s.store.DeleteScreen(ctx, screenID); err != nil {
		return err
	}
	s.hub.Close(screenID)

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"screen_id":  screenID,
	}).Info("Screen destroyed")

	return nil
}

func (s *viewerService) Subscribe(ctx context.Context, userID, screenID string) (<-chan hub.Event, func(), error) {
	if _, err := s.loadScreen(ctx, userID, screenID); err != nil {
		return nil, nil, err
	}

	events, cancel := s.hub.Subscribe(screenID)
	return events, cancel, nil
}

func (s *viewerService) loadScreen(ctx context.Context, userID, screenID string) (entity.Screen, error) {
	screen, err := s.store.GetScreen(ctx, screenID)
	if errors.Is(err, redis.ErrNotFound) {
		return entity.Screen{}, viewer.ErrScreenNotFound
	}
	if err != nil {
		return entity.Screen{}, err
	}

	if screen.UserID != userID {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"screen_id":  screenID,
			"user_id":    userID,
		}).Warn("Screen accessed by another user")
		return entity.Screen{}, viewer.ErrScreenNotOwned
	}

	return screen, nil
}

// updateScreen runs fn against the latest stored screen. New image bytes,
// when given, are written in the same transaction.
func (s *viewerService) updateScreen(ctx context.Context, screenID string, image []byte, fn redis.UpdateFunc) (entity.Screen, error) {
	apply := func(screen *entity.Screen) error {
		if err := fn(screen); err != nil {
			return err
		}
		screen.UpdatedAt = s.now()
		return nil
	}

	var (
		screen entity.Screen
		err    error
	)
	if image != nil {
		screen, err = s.store.ReplaceImage(ctx, screenID, image, apply)
	} else {
		screen, err = s.store.UpdateScreen(ctx, screenID, apply)
	}
	if errors.Is(err, redis.ErrNotFound) {
		return entity.Screen{}, viewer.ErrScreenNotFound
	}
	return screen, err
}

// sameGeneration guards a write against an image selected in the meantime.
func sameGeneration(generation int64, fn func(*entity.Screen)) redis.UpdateFunc {
	return func(screen *entity.Screen) error {
		if screen.Generation != generation {
			return viewer.ErrImageSuperseded
		}
		fn(screen)
		return nil
	}
}

func (s *viewerService) publish(screenID string, eventType hub.EventType, data interface{}) {
	s.hub.Publish(hub.Event{Type: eventType, ScreenID: screenID, Data: data, At: s.now()})
}
