// Package media stores menu item photos and videos and hands back the URL
// they are served from.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	Photo Kind = "photo"
	Video Kind = "video"
)

// MaxSize is the largest accepted upload in bytes.
const MaxSize = 50 << 20

var (
	ErrInvalidExtension = errors.New("invalid file extension")
	ErrInvalidMIME      = errors.New("invalid MIME type")
	ErrFileTooLarge     = errors.New("file size exceeds limit")
	errUnknownKind      = errors.New("unknown media kind")
)

var allowedExtensions = map[Kind][]string{
	Photo: {".jpg", ".jpeg", ".png", ".gif", ".webp"},
	Video: {".mp4", ".mov", ".webm"},
}

var allowedMIMEs = map[Kind][]string{
	Photo: {"image/jpeg", "image/png", "image/gif", "image/webp"},
	Video: {"video/mp4", "video/quicktime", "video/webm"},
}

// subfolders maps a kind to the directory or key prefix it is stored under.
var subfolders = map[Kind]string{
	Photo: "photo",
	Video: "videos",
}

// Upload is one file attached to a new menu item.
type Upload struct {
	Kind Kind
	// Name is the client's file name; only its extension is kept.
	Name        string
	ContentType string
	Body        io.Reader
}

// Store persists uploads.
type Store interface {
	// Upload stores u and returns the URL it can be fetched from.
	Upload(ctx context.Context, u Upload) (string, error)
}

// file is a validated upload read fully into memory.
type file struct {
	kind Kind
	ext  string
	mime string
	data []byte
}

// key is the object name relative to the store root, e.g. "photo/<uuid>.png".
func (f file) key() string {
	return path.Join(subfolders[f.kind], uuid.New().String()+f.ext)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// read checks u's extension and sniffed content type and reads at most
// MaxSize bytes of it.
func read(u Upload) (file, error) {
	if _, ok := subfolders[u.Kind]; !ok {
		return file{}, fmt.Errorf("%w %q", errUnknownKind, u.Kind)
	}
	ext := strings.ToLower(filepath.Ext(u.Name))
	if !contains(allowedExtensions[u.Kind], ext) {
		return file{}, fmt.Errorf("%w: %q for %s", ErrInvalidExtension, ext, u.Kind)
	}

	data, err := io.ReadAll(io.LimitReader(u.Body, MaxSize+1))
	if err != nil {
		return file{}, fmt.Errorf("read %s: %w", u.Name, err)
	}
	if len(data) > MaxSize {
		return file{}, ErrFileTooLarge
	}

	mime := http.DetectContentType(data)
	if mime == "application/octet-stream" && u.ContentType != "" {
		mime = u.ContentType
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !contains(allowedMIMEs[u.Kind], mime) {
		return file{}, fmt.Errorf("%w: %s for %s", ErrInvalidMIME, mime, u.Kind)
	}
	return file{kind: u.Kind, ext: ext, mime: mime, data: data}, nil
}

func (f file) reader() io.Reader {
	return bytes.NewReader(f.data)
}

// Rejected reports whether err means the upload itself was unacceptable,
// as opposed to the store failing.
func Rejected(err error) bool {
	return errors.Is(err, ErrInvalidExtension) || errors.Is(err, ErrInvalidMIME) ||
		errors.Is(err, ErrFileTooLarge) || errors.Is(err, errUnknownKind)
}
