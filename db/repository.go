package db

import "context"

// Repository binds the query functions to one set of connections so the
// stores can depend on a narrow interface.
type Repository struct {
	conn Connections
}

func NewRepository(conn Connections) *Repository {
	return &Repository{conn: conn}
}

func (r *Repository) LoadConversations(ctx context.Context) ([]ConversationRow, error) {
	return LoadConversations(ctx, r.conn)
}

func (r *Repository) UpsertConversation(ctx context.Context, row ConversationRow) error {
	return UpsertConversation(ctx, r.conn, row)
}

func (r *Repository) LoadResources(ctx context.Context) ([]ResourceRow, error) {
	return LoadResources(ctx, r.conn)
}

func (r *Repository) UpsertResource(ctx context.Context, row ResourceRow) error {
	return UpsertResource(ctx, r.conn, row)
}
