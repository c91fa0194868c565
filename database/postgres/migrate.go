package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// the statements are portable between postgres and sqlite3
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS permission_grants (
		user_id      VARCHAR(64)  NOT NULL,
		permission   VARCHAR(64)  NOT NULL,
		status       VARCHAR(16)  NOT NULL,
		denial_count INTEGER      NOT NULL DEFAULT 0,
		updated_at   TIMESTAMP    NOT NULL,
		PRIMARY KEY (user_id, permission)
	)`,
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
