package ipc

// Kind names an IPC channel
type Kind string

const (
	KindConversationCreate        Kind = "conversation:create"
	KindConversationRename        Kind = "conversation:rename"
	KindConversationAppendMessage Kind = "conversation:append-message"
	KindConversationSetPinned     Kind = "conversation:set-pinned"
	KindConversationSetMetadata   Kind = "conversation:set-metadata"
	KindConversationDelete        Kind = "conversation:delete"
	KindConversationGet           Kind = "conversation:get"
	KindConversationList          Kind = "conversation:list"
	KindWorkspaceSyncResource     Kind = "workspace:sync-resource"
	KindWorkspaceRemoveResource   Kind = "workspace:remove-resource"
	KindWorkspaceListResources    Kind = "workspace:list-resources"
	KindStoreFlush                Kind = "store:flush"
	KindStoreStatus               Kind = "store:status"
	KindStoreReset                Kind = "store:reset"
)

// payloads maps every known kind to a constructor for its payload
var payloads = map[Kind]func() Message{
	KindConversationCreate:        func() Message { return &CreateConversation{} },
	KindConversationRename:        func() Message { return &RenameConversation{} },
	KindConversationAppendMessage: func() Message { return &AppendMessage{} },
	KindConversationSetPinned:     func() Message { return &SetPinned{} },
	KindConversationSetMetadata:   func() Message { return &SetMetadata{} },
	KindConversationDelete:        func() Message { return &DeleteConversation{} },
	KindConversationGet:           func() Message { return &GetConversation{} },
	KindConversationList:          func() Message { return &ListConversations{} },
	KindWorkspaceSyncResource:     func() Message { return &SyncResource{} },
	KindWorkspaceRemoveResource:   func() Message { return &RemoveResource{} },
	KindWorkspaceListResources:    func() Message { return &ListResources{} },
	KindStoreFlush:                func() Message { return &FlushStores{} },
	KindStoreStatus:               func() Message { return &StoreStatus{} },
	KindStoreReset:                func() Message { return &ResetStores{} },
}

// Known reports whether kind is a registered channel name
func (k Kind) Known() bool {
	_, ok := payloads[k]
	return ok
}

// Mutates reports whether requests of this kind change state. Only their
// responses are remembered for replay.
func (k Kind) Mutates() bool {
	switch k {
	case KindConversationGet, KindConversationList, KindWorkspaceListResources, KindStoreStatus:
		return false
	}
	return k.Known()
}
