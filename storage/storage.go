// Package storage holds report attachments. Stores return an opaque URL that is
// saved on the report; nothing else in the service interprets it.
package storage

import (
	"context"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// AttachmentStore saves uploaded report attachments.
type AttachmentStore interface {
	// Save stores the file under key and returns its public URL.
	Save(ctx context.Context, fh *multipart.FileHeader, key string) (string, error)
	// Delete removes a previously saved key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// AttachmentKey builds a collision-free object key for a user's upload,
// e.g. "reports/<user>/sql-injection-in-login-<uuid>.pdf".
func AttachmentKey(userID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if base == "" {
		base = "attachment"
	}
	user := slug.Make(userID)
	if user == "" {
		user = "anonymous"
	}
	return "reports/" + user + "/" + base + "-" + uuid.NewString() + ext
}
