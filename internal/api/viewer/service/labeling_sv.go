package viewerService

import (
	"context"
	"errors"
	"time"

	"ImageLabelViewer/internal/api/viewer"
	"ImageLabelViewer/internal/entity"
	contextPkg "ImageLabelViewer/pkg/context"
	"ImageLabelViewer/pkg/hub"
	"ImageLabelViewer/pkg/labeler"
	"ImageLabelViewer/pkg/redis"

	"github.com/sirupsen/logrus"
)

// Process submits the displayed image for labeling and waits for the
// outcome. Only one labeling runs per screen at a time.
func (s *viewerService) Process(ctx context.Context, userID, screenID string) (viewer.ProcessResult, error) {
	requestID := contextPkg.GetRequestID(ctx)
	fields := logrus.Fields{
		"request_id": requestID,
		"screen_id":  screenID,
		"detector":   s.labeler.Name(),
	}

	screen, err := s.loadScreen(ctx, userID, screenID)
	if err != nil {
		return viewer.ProcessResult{}, err
	}

	if !screen.HasImage() {
		return viewer.ProcessResult{}, s.noticeNoImage(ctx, screenID)
	}

	acquired, err := s.store.AcquireLabelLock(ctx, screenID, s.cfg.LabelingTimeout+5*time.Second)
	if err != nil {
		return viewer.ProcessResult{}, err
	}
	if !acquired {
		s.log.WithFields(fields).Warn("Labeling already in progress")
		return viewer.ProcessResult{}, viewer.ErrLabelingInProgress
	}
	defer s.releaseLock(screenID)

	// re-read under the lock, a new image may have landed since the check above
	screen, data, err := s.store.GetScreenImage(ctx, screenID)
	if errors.Is(err, redis.ErrNotFound) {
		return viewer.ProcessResult{}, viewer.ErrScreenNotFound
	}
	if err != nil {
		return viewer.ProcessResult{}, err
	}
	if !screen.HasImage() || data == nil {
		return viewer.ProcessResult{}, s.noticeNoImage(ctx, screenID)
	}

	generation := screen.Generation
	previousState := screen.State
	_, err = s.updateScreen(ctx, screenID, nil, sameGeneration(generation, func(cur *entity.Screen) {
		cur.State = entity.ScreenLabeling
		cur.Notice = ""
	}))
	if err != nil {
		return viewer.ProcessResult{}, err
	}
	s.publish(screenID, hub.EventLabeling, nil)

	labelCtx, stop := s.trackInflight(ctx, screenID)
	defer stop()

	var res labeler.Result
	select {
	case res = <-labeler.Submit(labelCtx, s.labeler, labeler.Image{Data: data, ContentType: "image/jpeg"}, s.log):
	case <-labelCtx.Done():
		res = labeler.Result{Err: context.Cause(labelCtx)}
	}

	cause := context.Cause(labelCtx)
	if errors.Is(cause, errScreenClosed) {
		s.log.WithFields(fields).Info("Screen closed while labeling, dropping result")
		return viewer.ProcessResult{}, viewer.ErrLabelingCancelled
	}
	if res.Err != nil {
		return viewer.ProcessResult{}, s.labelingFailed(ctx, screenID, generation, previousState, cause, res.Err, fields)
	}

	text := labeler.Render(res.Labels)
	current, err := s.finishLabeling(ctx, screenID, generation, fields, func(cur *entity.Screen) {
		cur.ResultText = text
		cur.State = entity.ScreenLabelsShown
	})
	if err != nil {
		return viewer.ProcessResult{}, err
	}

	labels := res.Labels
	if labels == nil {
		labels = []entity.Label{}
	}
	s.publish(screenID, hub.EventLabels, map[string]interface{}{"text": current.ResultText, "labels": labels})

	fields["labels"] = len(labels)
	s.log.WithFields(fields).Info("Image labeling successful")

	return viewer.ProcessResult{
		Text:   current.ResultText,
		Labels: labels,
		Screen: viewer.NewScreenResponse(current),
	}, nil
}

// labelingFailed keeps the result text untouched. A pause puts the screen
// back where it was. A timeout or detector error marks the screen failed and
// is surfaced to the caller.
func (s *viewerService) labelingFailed(ctx context.Context, screenID string, generation int64, previous entity.ScreenState, cause, detectErr error, fields logrus.Fields) error {
	fields["error"] = detectErr.Error()

	if errors.Is(cause, errScreenPaused) {
		if _, err := s.finishLabeling(ctx, screenID, generation, fields, func(cur *entity.Screen) {
			cur.State = previous
		}); err != nil {
			return err
		}
		s.log.WithFields(fields).Info("Image labeling cancelled")
		return viewer.ErrLabelingCancelled
	}

	failure := viewer.ErrLabelingFailed
	if errors.Is(cause, context.DeadlineExceeded) {
		failure = viewer.ErrLabelingTimeout
		s.log.WithFields(fields).Warn("Image labeling timed out")
	} else {
		s.log.WithFields(fields).Error("Image labelling failed")
	}

	if _, err := s.finishLabeling(ctx, screenID, generation, fields, func(cur *entity.Screen) {
		cur.State = entity.ScreenLabelFailed
	}); err != nil {
		return err
	}
	s.publish(screenID, hub.EventLabelFailed, map[string]interface{}{"error": failure.Error()})

	return failure
}

// finishLabeling records an outcome only while the screen still shows the
// image that was labeled.
func (s *viewerService) finishLabeling(ctx context.Context, screenID string, generation int64, fields logrus.Fields, fn func(*entity.Screen)) (entity.Screen, error) {
	screen, err := s.updateScreen(context.WithoutCancel(ctx), screenID, nil, sameGeneration(generation, fn))
	switch {
	case errors.Is(err, viewer.ErrScreenNotFound):
		s.log.WithFields(fields).Info("Screen closed while labeling, dropping result")
		return entity.Screen{}, viewer.ErrLabelingCancelled
	case errors.Is(err, viewer.ErrImageSuperseded):
		s.log.WithFields(fields).Info("Image replaced while labeling, dropping stale result")
	}
	return screen, err
}

func (s *viewerService) noticeNoImage(ctx context.Context, screenID string) error {
	_, err := s.updateScreen(ctx, screenID, nil, func(cur *entity.Screen) error {
		cur.Notice = viewer.NoticeSelectImage
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(screenID, hub.EventNotice, viewer.NoticeSelectImage)
	return viewer.ErrNoImageSelected
}

func (s *viewerService) SelectMenuItem(ctx context.Context, userID, screenID, item string) (*viewer.ProcessResult, error) {
	switch item {
	case viewer.MenuItemSettings:
		if _, err := s.loadScreen(ctx, userID, screenID); err != nil {
			return nil, err
		}
		return nil, nil
	case viewer.MenuItemProcess:
		res, err := s.Process(ctx, userID, screenID)
		if err != nil {
			return nil, err
		}
		return &res, nil
	default:
		return nil, viewer.ErrUnknownMenuItem
	}
}

// trackInflight derives the labeling context: bounded by the labeling
// timeout and cancellable from Pause or Destroy.
func (s *viewerService) trackInflight(ctx context.Context, screenID string) (context.Context, func()) {
	cancelCtx, cancel := context.WithCancelCause(ctx)
	labelCtx, cancelTimeout := context.WithTimeout(cancelCtx, s.cfg.LabelingTimeout)

	s.mu.Lock()
	s.inflight[screenID] = cancel
	s.mu.Unlock()

	return labelCtx, func() {
		s.mu.Lock()
		delete(s.inflight, screenID)
		s.mu.Unlock()
		cancelTimeout()
		cancel(nil)
	}
}

func (s *viewerService) cancelInflight(screenID string, cause error) bool {
	s.mu.Lock()
	cancel, ok := s.inflight[screenID]
	s.mu.Unlock()

	if ok {
		cancel(cause)
	}
	return ok
}

func (s *viewerService) releaseLock(screenID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.ReleaseLabelLock(ctx, screenID); err != nil {
		s.log.WithFields(logrus.Fields{
			"screen_id": screenID,
			"error":     err.Error(),
		}).Error("Failed to release labeling lock")
	}
}
