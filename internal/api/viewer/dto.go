package viewer

import (
	"time"

	"ImageLabelViewer/internal/entity"
)

const (
	NoticeSelectImage     = "Please select an image first"
	RationaleStorageRead  = "Storage access is required to pick an image from your gallery."
	MenuItemSettings      = "settings"
	MenuItemProcess       = "process"
	DefaultPickerPageSize = 50
)

type ScreenResponse struct {
	ID          string             `json:"id"`
	State       entity.ScreenState `json:"state"`
	ImageRef    string             `json:"image_ref,omitempty"`
	ImageWidth  int                `json:"image_width,omitempty"`
	ImageHeight int                `json:"image_height,omitempty"`
	ResultText  string             `json:"result_text"`
	Notice      string             `json:"notice,omitempty"`
	UpdatedAt   string             `json:"updated_at"`
}

func NewScreenResponse(s entity.Screen) ScreenResponse {
	return ScreenResponse{
		ID:          s.ID,
		State:       s.State,
		ImageRef:    s.ImageRef,
		ImageWidth:  s.ImageWidth,
		ImageHeight: s.ImageHeight,
		ResultText:  s.ResultText,
		Notice:      s.Notice,
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
}

// PickerResult is the answer to "open the picker". When the permission is
// missing, Items is empty and the client is expected to ask the user and
// report back through the permission endpoint.
type PickerResult struct {
	Opened             bool                 `json:"opened"`
	PermissionRequired bool                 `json:"permission_required"`
	ShowRationale      bool                 `json:"show_rationale"`
	Rationale          string               `json:"rationale,omitempty"`
	Permission         string               `json:"permission"`
	Items              []entity.GalleryItem `json:"items"`
}

type PermissionResultRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

type SelectImageRequest struct {
	Ref string `json:"ref" validate:"required,max=1024"`
}

type SelectImageResponse struct {
	Selected bool           `json:"selected"`
	Screen   ScreenResponse `json:"screen"`
}

type ProcessResult struct {
	Text   string         `json:"text"`
	Labels []entity.Label `json:"labels"`
	Screen ScreenResponse `json:"screen"`
}

type UploadResponse struct {
	Item entity.GalleryItem `json:"item"`
}

type MenuItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

var OptionsMenu = []MenuItem{
	{ID: MenuItemSettings, Title: "Settings"},
	{ID: MenuItemProcess, Title: "Process"},
}
