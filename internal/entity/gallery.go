package entity

import "time"

type GalleryItem struct {
	Ref          string    `json:"ref"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}
