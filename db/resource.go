package db

import (
	"context"

	"gopkg.in/guregu/null.v4"
)

type ResourceRow struct {
	Id          string      `db:"id"`
	WorkspaceId string      `db:"workspace_id"`
	Path        string      `db:"path"`
	Kind        string      `db:"kind"`
	Checksum    null.String `db:"checksum"`
	Size        int64       `db:"size"`
	UpdatedAt   int64       `db:"updated_at"`
	DeletedAt   null.Int    `db:"deleted_at"`
}

const resourceColumns = "id, workspace_id, path, kind, checksum, size, updated_at, deleted_at"

func UpsertResource(ctx context.Context, db Connections, row ResourceRow) error {
	query := db.upsert(`
		INSERT INTO workspace_resource (`+resourceColumns+`)
		VALUES (:id, :workspace_id, :path, :kind, :checksum, :size, :updated_at, :deleted_at)
		ON DUPLICATE KEY UPDATE
			workspace_id = VALUES(workspace_id),
			path = VALUES(path),
			kind = VALUES(kind),
			checksum = VALUES(checksum),
			size = VALUES(size),
			updated_at = VALUES(updated_at),
			deleted_at = VALUES(deleted_at)`, `
		INSERT INTO workspace_resource (`+resourceColumns+`)
		VALUES (:id, :workspace_id, :path, :kind, :checksum, :size, :updated_at, :deleted_at)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			path = excluded.path,
			kind = excluded.kind,
			checksum = excluded.checksum,
			size = excluded.size,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at`)

	_, err := db.Db.NamedExecContext(ctx, query, row)
	return err
}

// LoadResources returns every resource that is not soft deleted
func LoadResources(ctx context.Context, db Connections) ([]ResourceRow, error) {
	rows := []ResourceRow{}
	if err := db.Db.SelectContext(ctx, &rows, `
		SELECT `+resourceColumns+`
		FROM workspace_resource
		WHERE deleted_at IS NULL`); err != nil {
		return nil, err
	}
	return rows, nil
}

func PurgeDeletedResources(ctx context.Context, db Connections, before int64) (int64, error) {
	result, err := db.Db.ExecContext(ctx, db.Db.Rebind(`
		DELETE FROM workspace_resource
		WHERE deleted_at IS NOT NULL AND deleted_at < ?`), before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
