package domain

// NoticeRequestMessage is the payload of one inbound generation message. The
// folder id is mandatory on this path: message-driven items always belong to
// a massive request.
type NoticeRequestMessage struct {
	FolderID   string                       `json:"folderId"`
	NoticeData *NoticeGenerationRequestItem `json:"noticeData"`
	ErrorID    string                       `json:"errorId,omitempty"`
}
