package http_handler

import (
	"storesync/ipc"
	"storesync/stores"
	"storesync/writebehind"
)

type HTTPHandler struct {
	router        *ipc.Router
	conversations *stores.ConversationStore
	workspace     *stores.WorkspaceStore
	manager       *writebehind.Manager
}

func NewHTTPHandler(router *ipc.Router, conversations *stores.ConversationStore, workspace *stores.WorkspaceStore, manager *writebehind.Manager) *HTTPHandler {
	return &HTTPHandler{
		router:        router,
		conversations: conversations,
		workspace:     workspace,
		manager:       manager,
	}
}
