package ipc

import "encoding/json"

// Message is the decoded payload of a request. The set of implementations is
// closed; each one belongs to exactly one Kind.
type Message interface {
	Kind() Kind
	sealed()
}

type CreateConversation struct {
	Title string `json:"title" validate:"max=200"`
	Model string `json:"model" validate:"required,max=100"`
}

type RenameConversation struct {
	Id    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"max=200"`
}

type AppendMessage struct {
	Id      string `json:"id" validate:"required"`
	Role    string `json:"role" validate:"required,oneof=user assistant system tool"`
	Content string `json:"content"`
}

type SetPinned struct {
	Id     string `json:"id" validate:"required"`
	Pinned bool   `json:"pinned"`
}

type SetMetadata struct {
	Id       string          `json:"id" validate:"required"`
	Metadata json.RawMessage `json:"metadata" validate:"required"`
}

type DeleteConversation struct {
	Id string `json:"id" validate:"required"`
}

type GetConversation struct {
	Id string `json:"id" validate:"required"`
}

type ListConversations struct {
	Query      string `json:"query" validate:"max=200"`
	PinnedOnly bool   `json:"pinned_only"`
}

type SyncResource struct {
	Id           string  `json:"id"`
	WorkspaceId  string  `json:"workspace_id" validate:"required"`
	Path         string  `json:"path" validate:"required"`
	ResourceKind string  `json:"kind" validate:"omitempty,oneof=file directory url"`
	Checksum     *string `json:"checksum"`
	Size         int64   `json:"size" validate:"min=0"`
}

type RemoveResource struct {
	Id string `json:"id" validate:"required"`
}

type ListResources struct {
	WorkspaceId string `json:"workspace_id" validate:"required"`
}

type FlushStores struct{}

type StoreStatus struct{}

// ResetStores clears every store. Without Force the reset is refused when
// buffered writes cannot be flushed first.
type ResetStores struct {
	Force bool `json:"force"`
}

func (*CreateConversation) Kind() Kind { return KindConversationCreate }
func (*RenameConversation) Kind() Kind { return KindConversationRename }
func (*AppendMessage) Kind() Kind      { return KindConversationAppendMessage }
func (*SetPinned) Kind() Kind          { return KindConversationSetPinned }
func (*SetMetadata) Kind() Kind        { return KindConversationSetMetadata }
func (*DeleteConversation) Kind() Kind { return KindConversationDelete }
func (*GetConversation) Kind() Kind    { return KindConversationGet }
func (*ListConversations) Kind() Kind  { return KindConversationList }
func (*SyncResource) Kind() Kind       { return KindWorkspaceSyncResource }
func (*RemoveResource) Kind() Kind     { return KindWorkspaceRemoveResource }
func (*ListResources) Kind() Kind      { return KindWorkspaceListResources }
func (*FlushStores) Kind() Kind        { return KindStoreFlush }
func (*StoreStatus) Kind() Kind        { return KindStoreStatus }
func (*ResetStores) Kind() Kind        { return KindStoreReset }

func (*CreateConversation) sealed() {}
func (*RenameConversation) sealed() {}
func (*AppendMessage) sealed()      {}
func (*SetPinned) sealed()          {}
func (*SetMetadata) sealed()        {}
func (*DeleteConversation) sealed() {}
func (*GetConversation) sealed()    {}
func (*ListConversations) sealed()  {}
func (*SyncResource) sealed()       {}
func (*RemoveResource) sealed()     {}
func (*ListResources) sealed()      {}
func (*FlushStores) sealed()        {}
func (*StoreStatus) sealed()        {}
func (*ResetStores) sealed()        {}
