package events

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ThumbnailStorage persists uploaded thumbnails and returns a reference that
// ResolveThumbnailURL can turn into a public URL.
type ThumbnailStorage interface {
	Save(ctx context.Context, originalName string, body io.Reader) (string, error)
}

// DiskThumbnailStorage writes thumbnails below a local directory that is
// served under publicPrefix.
type DiskThumbnailStorage struct {
	directory    string
	publicPrefix string
}

// NewDiskThumbnailStorage creates the upload directory when missing.
func NewDiskThumbnailStorage(directory string, publicPrefix string) (*DiskThumbnailStorage, error) {
	if strings.TrimSpace(directory) == "" {
		return nil, fmt.Errorf("events.thumbnails.disk: empty directory")
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("events.thumbnails.disk: %w", err)
	}
	return &DiskThumbnailStorage{
		directory:    directory,
		publicPrefix: strings.Trim(publicPrefix, "/"),
	}, nil
}

// Save writes body under a random name keeping the original extension and
// returns "<publicPrefix>/<name>".
func (storage *DiskThumbnailStorage) Save(ctx context.Context, originalName string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fileName := randomThumbnailName(originalName)
	file, err := os.OpenFile(filepath.Join(storage.directory, fileName), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("events.thumbnails.disk.create: %w", err)
	}
	if _, copyErr := io.Copy(file, body); copyErr != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("events.thumbnails.disk.write: %w", copyErr)
	}
	if closeErr := file.Close(); closeErr != nil {
		return "", fmt.Errorf("events.thumbnails.disk.close: %w", closeErr)
	}
	return path.Join(storage.publicPrefix, fileName), nil
}

// thumbnailExtensions lists the raster image formats accepted as thumbnails.
var thumbnailExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// thumbnailExtension returns the lower-cased extension of originalName and
// whether it is an accepted image format.
func thumbnailExtension(originalName string) (string, bool) {
	extension := strings.ToLower(filepath.Ext(filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))))
	_, accepted := thumbnailExtensions[extension]
	return extension, accepted
}

// randomThumbnailName returns 32 hex characters plus the lower-cased original extension.
func randomThumbnailName(originalName string) string {
	extension, _ := thumbnailExtension(originalName)
	return strings.ReplaceAll(uuid.NewString(), "-", "") + extension
}

// ResolveThumbnailURL turns a stored reference into an externally servable URL.
// Absolute http(s) references are returned unchanged.
func ResolveThumbnailURL(publicBaseURL string, reference string) string {
	normalized := strings.ReplaceAll(reference, `\`, "/")
	if strings.HasPrefix(normalized, "http://") || strings.HasPrefix(normalized, "https://") {
		return normalized
	}
	return strings.TrimRight(publicBaseURL, "/") + "/" + strings.TrimLeft(normalized, "/")
}
