package models

import "encoding/json"

// DocStatus is the review state of a document.
type DocStatus string

const (
	DocApproved  DocStatus = "Đã duyệt"
	DocPending   DocStatus = "Chờ duyệt"
	DocNeedsEdit DocStatus = "Cần chỉnh sửa"
)

// Valid reports whether s is a known status.
func (s DocStatus) Valid() bool {
	switch s {
	case DocApproved, DocPending, DocNeedsEdit:
		return true
	}
	return false
}

// DocumentCategories and DocumentTypes are the fixed classification sets.
var (
	DocumentCategories = []string{"Đề cương", "Đề thi", "Chuyên đề"}
	DocumentTypes      = []string{"GKI", "CKI", "GKII", "CKII", "HÈ"}
)

// AnyDocumentType matches every type in listings.
const AnyDocumentType = "Tất cả"

// Document is a file in the department repository.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Type       string    `json:"type"`
	Grade      int       `json:"grade"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Status     DocStatus `json:"status"`
	UploadDate string    `json:"uploadDate"`
	FileURL    string    `json:"fileUrl,omitempty"`
	FileID     string    `json:"fileId,omitempty"`
	FileSize   int64     `json:"fileSize,omitempty"`
	FileMime   string    `json:"fileMime,omitempty"`
	ReviewNote string    `json:"reviewNote,omitempty"`
}

func (d *Document) UnmarshalJSON(b []byte) error {
	type plain Document
	aux := struct {
		*plain
		ID       FlexString `json:"id"`
		AuthorID FlexString `json:"authorId"`
		Grade    FlexInt    `json:"grade"`
		FileSize FlexFloat  `json:"fileSize"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.ID = string(aux.ID)
	d.AuthorID = string(aux.AuthorID)
	d.Grade = int(aux.Grade)
	d.FileSize = int64(aux.FileSize)
	if d.Status == "" {
		d.Status = DocPending
	}
	return nil
}

// DocumentFilter narrows document listings. Empty fields match everything.
type DocumentFilter struct {
	Category string
	Type     string
	Grade    int
	AuthorID string
	Status   DocStatus
	Search   string
	Page     int
	PageSize int
}

// UploadState is the lifecycle of a queued Drive upload.
type UploadState string

const (
	UploadQueued    UploadState = "queued"
	UploadUploading UploadState = "uploading"
	UploadDone      UploadState = "done"
	UploadFailed    UploadState = "failed"
)

// UploadStatus reports the progress of a document upload.
type UploadStatus struct {
	ID         string      `json:"id"`
	State      UploadState `json:"state"`
	Progress   int         `json:"progress"`
	DocumentID string      `json:"documentId,omitempty"`
	FileName   string      `json:"fileName"`
	Error      string      `json:"error,omitempty"`
	OwnerID    string      `json:"-"`
	UpdatedAt  string      `json:"updatedAt"`
}
