// Package upload validates multipart file uploads at the transport boundary,
// before any byte reaches a storage backend.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/vitrinecommerce/api/internal/storage"
)

var (
	// ErrInvalidContentType is returned when the declared MIME type is
	// outside the allow-list.
	ErrInvalidContentType = errors.New("invalid content type: only image files are allowed")

	// ErrFileTooLarge is returned when the uploaded file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large: maximum 10MB")

	// ErrInvalidMagicBytes is returned when the file content does not match
	// any supported image format.
	ErrInvalidMagicBytes = errors.New("invalid file: content does not match a supported image format")
)

// DefaultMaxFileSize caps individual uploads at 10 MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Receiver validates incoming multipart files and converts them into
// storage uploads. The zero value uses DefaultMaxFileSize.
type Receiver struct {
	MaxFileSize int64
}

// Open validates a single multipart file and returns it as a storage
// upload. The caller owns the returned closer. Validation covers declared
// size, MIME allow-list, and magic bytes; nothing is written anywhere on
// rejection.
func (rc Receiver) Open(header *multipart.FileHeader) (storage.Upload, io.Closer, error) {
	maxSize := rc.MaxFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}
	if header.Size > maxSize {
		return storage.Upload{}, nil, ErrFileTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	if !allowedContentTypes[contentType] {
		return storage.Upload{}, nil, ErrInvalidContentType
	}

	file, err := header.Open()
	if err != nil {
		return storage.Upload{}, nil, fmt.Errorf("opening multipart file: %w", err)
	}

	if err := checkMagicBytes(file); err != nil {
		file.Close()
		return storage.Upload{}, nil, err
	}

	return storage.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, file, nil
}

// OpenAll validates the whole batch before any storage write: if any file is
// rejected, every already-opened file is closed and the error returned, so
// no partial writes occur for rejected batches. On success the caller must
// invoke the returned close function after persisting.
func (rc Receiver) OpenAll(headers []*multipart.FileHeader) ([]storage.Upload, func(), error) {
	files := make([]storage.Upload, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))

	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	for _, h := range headers {
		f, closer, err := rc.Open(h)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("file %s: %w", h.Filename, err)
		}
		files = append(files, f)
		closers = append(closers, closer)
	}

	return files, closeAll, nil
}

// checkMagicBytes sniffs the first 512 bytes and seeks back to the start.
func checkMagicBytes(file multipart.File) error {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading file header: %w", err)
	}

	if !isValidImageMagicBytes(buf[:n]) {
		return ErrInvalidMagicBytes
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking file: %w", err)
	}
	return nil
}

// isValidImageMagicBytes checks the first bytes of a file against known
// image signatures.
func isValidImageMagicBytes(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}

	// JPEG: FF D8 FF
	if buf[0] == 0xFF && buf[1] == 0xD8 && buf[2] == 0xFF {
		return true
	}

	// PNG: 89 50 4E 47
	if buf[0] == 0x89 && buf[1] == 0x50 && buf[2] == 0x4E && buf[3] == 0x47 {
		return true
	}

	// GIF: "GIF8"
	if buf[0] == 0x47 && buf[1] == 0x49 && buf[2] == 0x46 && buf[3] == 0x38 {
		return true
	}

	// WebP: "RIFF" then 4 bytes then "WEBP"
	if len(buf) >= 12 && string(buf[0:4]) == "RIFF" && string(buf[8:12]) == "WEBP" {
		return true
	}

	return false
}
