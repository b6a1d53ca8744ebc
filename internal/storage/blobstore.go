// File: internal/storage/blobstore.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

// UploadResult identifies one stored raw file.
type UploadResult struct {
	// FileRef is the durable handle recorded alongside the report row.
	FileRef string
	// StoragePath is where the bytes landed, relative to the blob root.
	StoragePath string
}

// BlobStore archives the raw g-code files that saved reports reference.
// The layout is <root>/<userID>/<fileRef>_<fileName> so a user's uploads
// stay enumerable without a database round trip.
type BlobStore struct {
	root string
	log  *zap.Logger
}

// NewBlobStore creates a blob store rooted at dir.
func NewBlobStore(dir string, logger *zap.Logger) *BlobStore {
	return &BlobStore{
		root: dir,
		log:  logger.Named("blobstore"),
	}
}

// UploadRawFile stores one raw g-code file and returns its reference.
// The content is written to a temp file first and renamed into place so
// a crash never leaves a half-written blob under a valid reference.
func (b *BlobStore) UploadRawFile(ctx context.Context, userID, fileName string, content []byte) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userDir := filepath.Join(b.root, sanitizePathComponent(userID))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, &schemas.PersistenceError{Op: "upload_raw_file", Err: err}
	}

	ref := uuid.NewString()
	blobName := fmt.Sprintf("%s_%s", ref, sanitizePathComponent(filepath.Base(fileName)))
	dest := filepath.Join(userDir, blobName)

	tmp, err := os.CreateTemp(userDir, ".upload-*")
	if err != nil {
		return nil, &schemas.PersistenceError{Op: "upload_raw_file", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, &schemas.PersistenceError{Op: "upload_raw_file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, &schemas.PersistenceError{Op: "upload_raw_file", Err: err}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return nil, &schemas.PersistenceError{Op: "upload_raw_file", Err: err}
	}

	rel, err := filepath.Rel(b.root, dest)
	if err != nil {
		rel = dest
	}

	b.log.Debug("Raw file archived",
		zap.String("user_id", userID),
		zap.String("file_ref", ref),
		zap.String("path", rel))
	return &UploadResult{FileRef: ref, StoragePath: rel}, nil
}

// sanitizePathComponent keeps user-provided names from escaping the
// blob root.
func sanitizePathComponent(s string) string {
	s = strings.ReplaceAll(s, string(os.PathSeparator), "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" {
		return "_"
	}
	return s
}
