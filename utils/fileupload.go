package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// MaxFileSize is 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024
)

// AllowedAttachmentTypes maps permitted extensions to their content type
var AllowedAttachmentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateAttachmentFile checks the size and extension of an uploaded file
func ValidateAttachmentFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}
	if fileHeader.Size == 0 {
		return &FileUploadError{Code: "EMPTY_FILE", Message: "File is empty"}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := AllowedAttachmentTypes[ext]; !ok {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only pdf, png, jpg, jpeg and xlsx files are allowed",
		}
	}
	return nil
}

// ContentTypeFor returns the content type stored with a file of this name
func ContentTypeFor(filename string) string {
	if ct, ok := AllowedAttachmentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AttachmentKey builds the object key for a file attached to an order.
// Format: orders/{orderID}/{unix-nanos}_{sanitized filename}
func AttachmentKey(orderID, filename string, now time.Time) string {
	name := unsafeKeyChars.ReplaceAllString(filepath.Base(filename), "_")
	return fmt.Sprintf("orders/%s/%d_%s", orderID, now.UnixNano(), name)
}

// ReadUploadedFile returns the full content of an uploaded file
func ReadUploadedFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if len(content) > MaxFileSize {
		return nil, &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}
	return content, nil
}
