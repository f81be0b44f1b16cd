// FilePath: internal/repository/files/files.storage.go
package files

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mailguard/ingest/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

const (
	defaultDirPermissions  = 0755
	defaultFilePermissions = 0644
	fallbackContentType    = "application/octet-stream"
)

// FileRepo is a BlobStore on the local filesystem
type FileRepo struct {
	basePath string
}

// NewFileRepository creates a new file storage repository
func NewFileRepository(basePath string) (*FileRepo, error) {
	if err := createDirectoryIfNotExists(basePath); err != nil {
		return nil, err
	}
	return &FileRepo{basePath: basePath}, nil
}

func (r *FileRepo) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path, err := r.resolve(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", errors.NewInternalError("blob write cancelled", err)
	}
	if err := createDirectoryIfNotExists(filepath.Dir(path)); err != nil {
		return "", err
	}

	// write to a temp file first so readers never see a partial blob
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, defaultFilePermissions); err != nil {
		return "", errors.NewInternalError("failed to write blob", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", errors.NewInternalError("failed to finalize blob", err)
	}

	nuts.L.Debugf("[FileRepo] Stored blob: %s (%d bytes, %s)", key, len(data), contentType)
	return key, nil
}

func (r *FileRepo) Get(ctx context.Context, key string) ([]byte, string, error) {
	path, err := r.resolve(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", errors.NewNotFoundError("blob not found", err)
		}
		return nil, "", errors.NewInternalError("failed to read blob", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = fallbackContentType
	}
	return data, contentType, nil
}

func (r *FileRepo) Delete(ctx context.Context, key string) error {
	path, err := r.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("blob not found", err)
		}
		return errors.NewInternalError("failed to delete blob", err)
	}
	return nil
}

// resolve maps a key below the base path, refusing keys that escape it
func (r *FileRepo) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || strings.Contains(key, "..") {
		return "", errors.NewValidationError("invalid blob key", nil)
	}
	return filepath.Join(r.basePath, clean), nil
}

func createDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err := os.MkdirAll(path, defaultDirPermissions)
		if err != nil {
			return errors.NewInternalError("failed to create directory", err)
		}
	}
	return nil
}
