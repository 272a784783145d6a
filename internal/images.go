package internal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrImageFormat is returned for payloads that are not a recognized
// base64 image data url.
var ErrImageFormat = errors.New("unsupported image format")

// ErrImageTooLarge is returned when the decoded image exceeds the
// configured limit.
var ErrImageTooLarge = errors.New("image too large")

// imageExtensions maps the accepted media types to the extension the file
// is stored under.
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageStore keeps message images on disk under uuid names and serves them
// back by path. Messages persist only the reference, never the bytes.
type ImageStore struct {
	dir     string
	maxSize int64
}

func NewImageStore(dir string, maxSize int64) *ImageStore {
	return &ImageStore{dir: dir, maxSize: maxSize}
}

// SaveDataURL decodes a payload like "data:image/png;base64,...." and writes
// the bytes under a fresh uuid name. It returns the public path the image
// will be served from.
func (st *ImageStore) SaveDataURL(dataURL string) (string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", ErrImageFormat
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", ErrImageFormat
	}
	mediaType := strings.TrimSuffix(meta, ";base64")
	ext, ok := imageExtensions[mediaType]
	if !ok {
		return "", ErrImageFormat
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > st.maxSize {
		return "", ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrImageFormat
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(st.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return "/images/" + name, nil
}

// ServeHTTP streams a stored image back to the client. The name is reduced
// to its base so the handler cannot be walked out of the upload directory.
func (st *ImageStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	name := filepath.Base(strings.TrimPrefix(r.URL.Path, "/images/"))
	if name == "" || name == "." || strings.HasPrefix(name, ".") {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	path := filepath.Join(st.dir, name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}
