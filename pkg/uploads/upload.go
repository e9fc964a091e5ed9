// Package uploads accepts report attachments and stores them behind a Store.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Common errors.
var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrNotFound        = errors.New("attachment not found")
	ErrInvalidKey      = errors.New("invalid attachment key")
)

// UploadConfig configures upload behavior.
type UploadConfig struct {
	// AllowedExt lists accepted file extensions, lower case and without the dot.
	AllowedExt []string

	// MaxFileSize is the maximum file size in bytes.
	MaxFileSize int64
}

// DefaultUploadConfig returns default upload configuration.
func DefaultUploadConfig() *UploadConfig {
	return &UploadConfig{
		AllowedExt:  []string{"png", "jpg", "jpeg", "gif"},
		MaxFileSize: 10 * 1024 * 1024, // 10MB
	}
}

// Object describes a stored attachment.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Store persists attachment bytes under a key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

// UploadEntry is the result of an accepted upload.
type UploadEntry struct {
	UUID        string    `json:"uuid"`
	Key         string    `json:"key"`
	FileName    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Uploader validates incoming files and writes them to a Store.
type Uploader struct {
	config *UploadConfig
	store  Store
}

// NewUploader creates an uploader backed by store.
func NewUploader(config *UploadConfig, store Store) *Uploader {
	if config == nil {
		config = DefaultUploadConfig()
	}
	return &Uploader{config: config, store: store}
}

// Config returns the upload configuration.
func (u *Uploader) Config() *UploadConfig {
	return u.config
}

// Store returns the backing store.
func (u *Uploader) Store() Store {
	return u.store
}

// Allowed reports whether filename carries an accepted extension.
func (u *Uploader) Allowed(filename string) bool {
	ext, ok := extension(filename)
	return ok && slices.Contains(u.config.AllowedExt, ext)
}

// Check validates a file before it is read.
func (u *Uploader) Check(filename string, size int64) error {
	if !u.Allowed(filename) {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, filename)
	}
	if u.config.MaxFileSize > 0 && size > u.config.MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}
	return nil
}

// Save validates and stores a multipart file.
func (u *Uploader) Save(ctx context.Context, header *multipart.FileHeader) (*UploadEntry, error) {
	if err := u.Check(header.Filename, header.Size); err != nil {
		return nil, err
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := SanitizeFilename(header.Filename)
	id := uuid.NewString()
	entry := &UploadEntry{
		UUID:        id,
		Key:         id + "-" + name,
		FileName:    name,
		Size:        header.Size,
		ContentType: contentType(name, header.Header.Get("Content-Type")),
		CreatedAt:   time.Now(),
	}

	if err := u.store.Put(ctx, entry.Key, src, entry.Size, entry.ContentType); err != nil {
		return nil, fmt.Errorf("store %s: %w", entry.Key, err)
	}
	return entry, nil
}

// Serve streams a stored attachment to the client.
func (u *Uploader) Serve(w http.ResponseWriter, r *http.Request, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	body, obj, err := u.store.Open(r.Context(), key)
	if err != nil {
		return err
	}
	defer body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": key}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, err = io.Copy(w, body)
	return err
}

// ValidateKey rejects keys that could escape the store namespace.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// SanitizeFilename slugifies the stem of a file name and keeps a lower-case extension.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	stem := slug.Make(strings.TrimSuffix(filename, filepath.Ext(filename)))
	if stem == "" {
		stem = "file"
	}
	return stem + ext
}

func extension(filename string) (string, bool) {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return "", false
	}
	return strings.ToLower(filename[i+1:]), true
}

func contentType(name, declared string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
