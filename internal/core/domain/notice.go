package domain

import "time"

type NoticeKind string

const (
	NoticeProcessingStarted   NoticeKind = "processing-started"
	NoticeProcessingSucceeded NoticeKind = "processing-succeeded"
	NoticeProcessingFailed    NoticeKind = "processing-failed"
	NoticeSaveSucceeded       NoticeKind = "save-succeeded"
	NoticeDeleteSucceeded     NoticeKind = "delete-succeeded"
	NoticeDeleteUndone        NoticeKind = "delete-undone"
	NoticeCredentialMissing   NoticeKind = "credential-missing"
	NoticeCredentialSaved     NoticeKind = "credential-saved"
	NoticeSignedIn            NoticeKind = "signed-in"
	NoticeSignedOut           NoticeKind = "signed-out"
)

// Notice is a user-visible status update emitted by the lifecycle controller.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	CardID    string     `json:"card_id,omitempty"`
	UndoToken string     `json:"undo_token,omitempty"`
	At        time.Time  `json:"at"`
}

func (n Notice) IsError() bool {
	return n.Kind == NoticeProcessingFailed || n.Kind == NoticeCredentialMissing
}
