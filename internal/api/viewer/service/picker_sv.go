package viewerService

import (
	"context"
	"io"

	"ImageLabelViewer/internal/api/viewer"
	"ImageLabelViewer/internal/entity"
	contextPkg "ImageLabelViewer/pkg/context"
	"ImageLabelViewer/pkg/hub"

	"github.com/sirupsen/logrus"
)

// OpenPicker opens the gallery when storage read permission is already
// granted. Otherwise it reports that the permission must be requested,
// with a rationale if the user turned it down before.
func (s *viewerService) OpenPicker(ctx context.Context, userID, screenID string) (viewer.PickerResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := s.loadScreen(ctx, userID, screenID); err != nil {
		return viewer.PickerResult{}, err
	}

	repo, err := s.repository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return viewer.PickerResult{}, err
	}

	grant, err := repo.Permission.GetGrant(ctx, userID, entity.PermissionReadExternalStorage)
	if err != nil {
		return viewer.PickerResult{}, err
	}

	if grant.IsGranted() {
		return s.openGallery(ctx)
	}

	result := viewer.PickerResult{
		PermissionRequired: true,
		ShowRationale:      grant.ShouldShowRationale(),
		Permission:         entity.PermissionReadExternalStorage,
		Items:              []entity.GalleryItem{},
	}
	if result.ShowRationale {
		result.Rationale = viewer.RationaleStorageRead
	}

	return result, nil
}

// ResolvePermission records the user's answer. A grant opens the gallery;
// a denial changes nothing else.
func (s *viewerService) ResolvePermission(ctx context.Context, userID, screenID string, granted bool) (viewer.PickerResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := s.loadScreen(ctx, userID, screenID); err != nil {
		return viewer.PickerResult{}, err
	}

	repo, err := s.repository.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return viewer.PickerResult{}, err
	}
	defer func() {
		_ = repo.Rollback()
	}()

	grant, err := repo.Permission.GetGrant(ctx, userID, entity.PermissionReadExternalStorage)
	if err != nil {
		return viewer.PickerResult{}, err
	}

	if granted {
		grant.Status = entity.PermissionGranted
	} else {
		grant.Status = entity.PermissionDenied
		grant.DenialCount++
	}
	grant.UpdatedAt = s.now()

	if err := repo.Permission.SaveGrant(ctx, grant); err != nil {
		return viewer.PickerResult{}, err
	}
	if err := repo.Commit(); err != nil {
		return viewer.PickerResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"user_id":    userID,
		"granted":    granted,
	}).Info("Storage permission answered")

	if !granted {
		return viewer.PickerResult{
			Permission: entity.PermissionReadExternalStorage,
			Items:      []entity.GalleryItem{},
		}, nil
	}

	return s.openGallery(ctx)
}

func (s *viewerService) openGallery(ctx context.Context) (viewer.PickerResult, error) {
	items, err := s.gallery.List(ctx, s.cfg.PickerPageSize)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Error("Failed to list gallery")
		return viewer.PickerResult{}, viewer.ErrGalleryUnavailable
	}
	if items == nil {
		items = []entity.GalleryItem{}
	}

	return viewer.PickerResult{
		Opened:     true,
		Permission: entity.PermissionReadExternalStorage,
		Items:      items,
	}, nil
}

// SelectImage shows the referenced gallery image on the screen and clears
// the previous result. A read or decode failure is logged and leaves the
// screen as it was; the bool reports whether the selection took effect.
func (s *viewerService) SelectImage(ctx context.Context, userID, screenID, ref string) (entity.Screen, bool, error) {
	requestID := contextPkg.GetRequestID(ctx)

	screen, err := s.loadScreen(ctx, userID, screenID)
	if err != nil {
		return entity.Screen{}, false, err
	}

	repo, err := s.repository.NewClient(false)
	if err != nil {
		return entity.Screen{}, false, err
	}
	grant, err := repo.Permission.GetGrant(ctx, userID, entity.PermissionReadExternalStorage)
	if err != nil {
		return entity.Screen{}, false, err
	}
	if !grant.IsGranted() {
		return entity.Screen{}, false, viewer.ErrPermissionRequired
	}

	rc, err := s.gallery.Open(ctx, ref)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"screen_id":  screenID,
			"ref":        ref,
			"error":      err.Error(),
		}).Error("Failed to read selected image")
		return screen, false, nil
	}
	defer rc.Close()

	prepared, err := s.utils.PrepareImage(io.LimitReader(rc, s.cfg.MaxImageBytes), s.cfg.MaxImageWidth, s.cfg.MaxImageHeight, s.cfg.JPEGQuality)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"screen_id":  screenID,
			"ref":        ref,
			"error":      err.Error(),
		}).Error("Failed to decode selected image")
		return screen, false, nil
	}

	screen, err = s.updateScreen(ctx, screenID, prepared.Data, func(cur *entity.Screen) error {
		cur.ImageRef = ref
		cur.ImageWidth = prepared.Width
		cur.ImageHeight = prepared.Height
		cur.Generation++
		cur.ResultText = ""
		cur.Notice = ""
		cur.State = entity.ScreenImageSelected
		return nil
	})
	if err != nil {
		return entity.Screen{}, false, err
	}

	s.publish(screenID, hub.EventImageSelected, viewer.NewScreenResponse(screen))

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"screen_id":  screenID,
		"ref":        ref,
		"width":      prepared.Width,
		"height":     prepared.Height,
	}).Info("Image selected")

	return screen, true, nil
}

func (s *viewerService) UploadImage(ctx context.Context, userID, name string, data []byte, contentType string) (entity.GalleryItem, error) {
	item, err := s.gallery.Upload(ctx, name, contentType, data)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"user_id":    userID,
			"error":      err.Error(),
		}).Error("Failed to upload image to gallery")
		return entity.GalleryItem{}, viewer.ErrGalleryUnavailable
	}

	return item, nil
}
