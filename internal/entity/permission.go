package entity

import "time"

const PermissionReadExternalStorage = "READ_EXTERNAL_STORAGE"

type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
)

type PermissionGrant struct {
	UserID      string           `json:"user_id"`
	Permission  string           `json:"permission"`
	Status      PermissionStatus `json:"status"`
	DenialCount int              `json:"denial_count"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (g PermissionGrant) IsGranted() bool {
	return g.Status == PermissionGranted
}

// ShouldShowRationale mirrors the platform rule: a rationale is shown once
// the user has turned the request down at least once.
func (g PermissionGrant) ShouldShowRationale() bool {
	return !g.IsGranted() && g.DenialCount > 0
}
