package viewerRepository

const (
	queryGetGrant = `
		SELECT
			user_id,
			permission,
			status,
			denial_count,
			updated_at
		FROM permission_grants
		WHERE user_id = :user_id AND permission = :permission
	`

	queryUpsertGrant = `
		INSERT INTO permission_grants (
			user_id,
			permission,
			status,
			denial_count,
			updated_at
		) VALUES (
			:user_id,
			:permission,
			:status,
			:denial_count,
			:updated_at
		)
		ON CONFLICT (user_id, permission) DO UPDATE SET
			status = EXCLUDED.status,
			denial_count = EXCLUDED.denial_count,
			updated_at = EXCLUDED.updated_at
	`
)
