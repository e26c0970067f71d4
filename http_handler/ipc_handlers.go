package http_handler

import (
	"context"
	"errors"

	"gopkg.in/guregu/null.v4"

	"storesync/ipc"
	"storesync/stores"
)

// RegisterIpcHandlers binds every IPC kind to the stores and the buffer
// manager
func (h *HTTPHandler) RegisterIpcHandlers() {
	r := h.router

	r.Handle(ipc.KindConversationCreate, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.CreateConversation)
		return h.conversations.Create(m.Title, m.Model), nil
	})
	r.Handle(ipc.KindConversationRename, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.RenameConversation)
		return storeResult(h.conversations.Rename(m.Id, m.Title))
	})
	r.Handle(ipc.KindConversationAppendMessage, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.AppendMessage)
		return storeResult(h.conversations.AppendMessage(m.Id, m.Role, m.Content))
	})
	r.Handle(ipc.KindConversationSetPinned, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.SetPinned)
		return storeResult(h.conversations.SetPinned(m.Id, m.Pinned))
	})
	r.Handle(ipc.KindConversationSetMetadata, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.SetMetadata)
		return storeResult(h.conversations.SetMetadata(m.Id, string(m.Metadata)))
	})
	r.Handle(ipc.KindConversationDelete, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.DeleteConversation)
		return nil, storeError(h.conversations.Delete(m.Id))
	})
	r.Handle(ipc.KindConversationGet, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.GetConversation)
		return storeResult(h.conversations.Get(m.Id))
	})
	r.Handle(ipc.KindConversationList, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.ListConversations)
		return h.conversations.List(stores.ListFilter{Query: m.Query, PinnedOnly: m.PinnedOnly}), nil
	})

	r.Handle(ipc.KindWorkspaceSyncResource, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.SyncResource)
		resource := stores.Resource{
			Id:          m.Id,
			WorkspaceId: m.WorkspaceId,
			Path:        m.Path,
			Kind:        m.ResourceKind,
			Checksum:    null.StringFromPtr(m.Checksum),
			Size:        m.Size,
		}
		return storeResult(h.workspace.Sync(resource))
	})
	r.Handle(ipc.KindWorkspaceRemoveResource, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.RemoveResource)
		return nil, storeError(h.workspace.Remove(m.Id))
	})
	r.Handle(ipc.KindWorkspaceListResources, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.ListResources)
		return h.workspace.ByWorkspace(m.WorkspaceId), nil
	})

	r.Handle(ipc.KindStoreFlush, func(ctx context.Context, msg ipc.Message) (any, error) {
		if err := h.manager.FlushAll(ctx); err != nil {
			return nil, ipc.Unavailable(err)
		}
		return h.manager.Statuses(), nil
	})
	r.Handle(ipc.KindStoreStatus, func(ctx context.Context, msg ipc.Message) (any, error) {
		return h.manager.Statuses(), nil
	})
	r.Handle(ipc.KindStoreReset, func(ctx context.Context, msg ipc.Message) (any, error) {
		m := msg.(*ipc.ResetStores)
		if err := stores.ResetAll(ctx, m.Force, h.conversations, h.workspace); err != nil {
			return nil, ipc.Unavailable(err)
		}
		return h.manager.Statuses(), nil
	})
}

func storeResult[T any](value T, err error) (any, error) {
	if err != nil {
		return nil, storeError(err)
	}
	return value, nil
}

func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrConversationNotFound), errors.Is(err, stores.ErrResourceNotFound):
		return ipc.NotFound(err)
	case errors.Is(err, stores.ErrInvalidRole), errors.Is(err, stores.ErrInvalidResource):
		return ipc.Invalid(err)
	default:
		return err
	}
}
