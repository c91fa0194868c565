package viewer

import (
	"net/http"

	"ImageLabelViewer/pkg/response"
)

var (
	ErrScreenNotFound      = response.NewError(http.StatusNotFound, "SCREEN_NOT_FOUND", "screen not found")
	ErrScreenNotOwned      = response.NewError(http.StatusForbidden, "SCREEN_NOT_OWNED", "screen does not belong to user")
	ErrPermissionRequired  = response.NewError(http.StatusForbidden, "STORAGE_PERMISSION_REQUIRED", "storage read permission is required")
	ErrNoImageSelected     = response.NewError(http.StatusBadRequest, "NO_IMAGE_SELECTED", NoticeSelectImage)
	ErrLabelingInProgress  = response.NewError(http.StatusConflict, "LABELING_IN_PROGRESS", "labeling is already in progress for this screen")
	ErrLabelingFailed      = response.NewError(http.StatusBadGateway, "LABELING_FAILED", "image labeling failed")
	ErrLabelingTimeout     = response.NewError(http.StatusRequestTimeout, "LABELING_TIMEOUT", "image labeling timed out")
	ErrLabelingCancelled   = response.NewError(http.StatusConflict, "LABELING_CANCELLED", "labeling was cancelled because the screen was paused or closed")
	ErrImageSuperseded     = response.NewError(http.StatusConflict, "IMAGE_SUPERSEDED", "a newer image was selected while labeling")
	ErrUnknownMenuItem     = response.NewError(http.StatusNotFound, "UNKNOWN_MENU_ITEM", "unknown menu item")
	ErrInvalidImageFile    = response.NewError(http.StatusBadRequest, "INVALID_IMAGE_FILE", "invalid image file")
	ErrGalleryUnavailable  = response.NewError(http.StatusBadGateway, "GALLERY_UNAVAILABLE", "gallery is unavailable")
	ErrImageNotFound       = response.NewError(http.StatusNotFound, "IMAGE_NOT_FOUND", "no image is displayed on this screen")
)
