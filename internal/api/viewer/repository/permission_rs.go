package viewerRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ImageLabelViewer/internal/entity"
	contextPkg "ImageLabelViewer/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type PermissionGrantDB struct {
	UserID      string    `db:"user_id"`
	Permission  string    `db:"permission"`
	Status      string    `db:"status"`
	DenialCount int       `db:"denial_count"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// GetGrant returns the stored grant, or a zero-status grant when the user
// was never asked.
func (r *permissionRepository) GetGrant(c context.Context, userID, permission string) (entity.PermissionGrant, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryGetGrant, map[string]interface{}{
		"user_id":    userID,
		"permission": permission,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetGrant named query preparation err")
		return entity.PermissionGrant{}, err
	}
	query = r.q.Rebind(query)

	var row PermissionGrantDB
	if err := r.q.GetContext(c, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.PermissionGrant{UserID: userID, Permission: permission}, nil
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when getting permission grant")
		return entity.PermissionGrant{}, err
	}

	return entity.PermissionGrant{
		UserID:      row.UserID,
		Permission:  row.Permission,
		Status:      entity.PermissionStatus(row.Status),
		DenialCount: row.DenialCount,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (r *permissionRepository) SaveGrant(c context.Context, grant entity.PermissionGrant) error {
	requestID := contextPkg.GetRequestID(c)

	updatedAt := grant.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query, args, err := sqlx.Named(queryUpsertGrant, map[string]interface{}{
		"user_id":      grant.UserID,
		"permission":   grant.Permission,
		"status":       string(grant.Status),
		"denial_count": grant.DenialCount,
		"updated_at":   updatedAt.UTC(),
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for SaveGrant")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when saving permission grant")
		return err
	}

	return nil
}
