package db

import (
	"context"

	"gopkg.in/guregu/null.v4"
)

// ConversationRow is the persisted form of a conversation. Messages and
// metadata are JSON documents.
type ConversationRow struct {
	Id        string      `db:"id"`
	Title     null.String `db:"title"`
	Model     string      `db:"model"`
	Pinned    bool        `db:"pinned"`
	Messages  string      `db:"messages"`
	Metadata  string      `db:"metadata"`
	CreatedAt int64       `db:"created_at"`
	UpdatedAt int64       `db:"updated_at"`
	DeletedAt null.Int    `db:"deleted_at"`
}

const conversationColumns = "id, title, model, pinned, messages, metadata, created_at, updated_at, deleted_at"

func UpsertConversation(ctx context.Context, db Connections, row ConversationRow) error {
	query := db.upsert(`
		INSERT INTO conversation (`+conversationColumns+`)
		VALUES (:id, :title, :model, :pinned, :messages, :metadata, :created_at, :updated_at, :deleted_at)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title),
			model = VALUES(model),
			pinned = VALUES(pinned),
			messages = VALUES(messages),
			metadata = VALUES(metadata),
			updated_at = VALUES(updated_at),
			deleted_at = VALUES(deleted_at)`, `
		INSERT INTO conversation (`+conversationColumns+`)
		VALUES (:id, :title, :model, :pinned, :messages, :metadata, :created_at, :updated_at, :deleted_at)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			pinned = excluded.pinned,
			messages = excluded.messages,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at`)

	_, err := db.Db.NamedExecContext(ctx, query, row)
	return err
}

// LoadConversations returns every conversation that is not soft deleted
func LoadConversations(ctx context.Context, db Connections) ([]ConversationRow, error) {
	//goland:noinspection GoPreferNilSlice
	rows := []ConversationRow{}
	err := db.Db.SelectContext(ctx, &rows, `
		SELECT `+conversationColumns+`
		FROM conversation
		WHERE deleted_at IS NULL
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PurgeDeletedConversations removes conversations soft deleted before the
// given unix timestamp
func PurgeDeletedConversations(ctx context.Context, db Connections, before int64) (int64, error) {
	result, err := db.Db.ExecContext(ctx, db.Db.Rebind(`
		DELETE FROM conversation
		WHERE deleted_at IS NOT NULL AND deleted_at < ?`), before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
