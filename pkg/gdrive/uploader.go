// Package gdrive uploads department files to Google Drive and shares them
// by link.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// ProgressFunc receives the number of bytes sent so far and the total size.
type ProgressFunc func(sent, total int64)

// File describes an uploaded Drive file.
type File struct {
	ID   string
	Size int64
	URL  string
}

// Uploader performs chunked uploads into an optional parent folder.
type Uploader struct {
	api       *drive.Service
	folderID  string
	chunkSize int
}

// NewUploader constructs an uploader. A chunk size of zero uses the client
// library default.
func NewUploader(api *drive.Service, folderID string, chunkSize int) *Uploader {
	if chunkSize <= 0 {
		chunkSize = googleapi.DefaultUploadChunkSize
	}
	return &Uploader{api: api, folderID: folderID, chunkSize: chunkSize}
}

// ShareURL is the public view link for a Drive file id.
func ShareURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view?usp=sharing", fileID)
}

// Upload streams content to Drive, then grants anyone-with-link read access.
// Files larger than one chunk go through the resumable protocol.
func (u *Uploader) Upload(ctx context.Context, name, mimeType string, content io.Reader, size int64, progress ProgressFunc) (*File, error) {
	meta := &drive.File{Name: name, MimeType: mimeType}
	if u.folderID != "" {
		meta.Parents = []string{u.folderID}
	}

	call := u.api.Files.Create(meta).
		Media(content, googleapi.ChunkSize(u.chunkSize), googleapi.ContentType(mimeType)).
		Fields("id", "size").
		SupportsAllDrives(true).
		Context(ctx)
	if progress != nil {
		call = call.ProgressUpdater(func(current, _ int64) {
			progress(current, size)
		})
	}

	created, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	if progress != nil {
		progress(size, size)
	}

	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := u.api.Permissions.Create(created.Id, perm).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("share %s: %w", created.Id, err)
	}

	out := &File{ID: created.Id, Size: created.Size, URL: ShareURL(created.Id)}
	if out.Size == 0 {
		out.Size = size
	}
	return out, nil
}

// Delete removes a file. A file that no longer exists is not an error.
func (u *Uploader) Delete(ctx context.Context, fileID string) error {
	err := u.api.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", fileID, err)
	}
	return nil
}
