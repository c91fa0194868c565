package entity

import "time"

type ScreenState string

const (
	ScreenNoImage       ScreenState = "NO_IMAGE"
	ScreenImageSelected ScreenState = "IMAGE_SELECTED"
	ScreenLabeling      ScreenState = "LABELING"
	ScreenLabelsShown   ScreenState = "LABELS_SHOWN"
	ScreenLabelFailed   ScreenState = "LABEL_FAILED"
)

// Screen is the server-side state of one viewer screen. The encoded image
// itself is stored next to it in the session store, keyed by ID.
type Screen struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	State       ScreenState `json:"state"`
	ImageRef    string      `json:"image_ref,omitempty"`
	ImageWidth  int         `json:"image_width,omitempty"`
	ImageHeight int         `json:"image_height,omitempty"`
	Generation  int64       `json:"generation"`
	ResultText  string      `json:"result_text"`
	Notice      string      `json:"notice,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (s Screen) HasImage() bool {
	return s.ImageRef != "" && s.State != ScreenNoImage
}

type Label struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	EntityID   string  `json:"entity_id"`
}
